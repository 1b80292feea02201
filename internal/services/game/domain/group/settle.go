package group

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// conflictAttempts bounds how often settlement re-reads participants whose
// rows changed before the completion committed.
const conflictAttempts = 3

// Reward is one participant's settlement before character updates.
type Reward struct {
	PlayerID        string
	Damage          int
	EventsCompleted int
	Share           float64
	Exp             int
	Gold            int
}

// Rewards splits the base rewards by damage share. Experience is
// floor(baseExp × share × (1 + bonus × events)) and gold floor(baseGold ×
// share); total damage is floored at 1.
func Rewards(ledger []storage.ContributionRecord, baseExp, baseGold, eventBonusPercent int) []Reward {
	total := 0
	for _, c := range ledger {
		total += max(0, c.Damage)
	}
	total = max(1, total)
	out := make([]Reward, 0, len(ledger))
	for _, c := range ledger {
		damage := max(0, c.Damage)
		bonus := 100 + eventBonusPercent*c.EventsCompleted
		out = append(out, Reward{
			PlayerID:        c.PlayerID,
			Damage:          damage,
			EventsCompleted: c.EventsCompleted,
			Share:           float64(damage) / float64(total),
			Exp:             baseExp * damage * bonus / (total * 100),
			Gold:            baseGold * damage / total,
		})
	}
	return out
}

// advance moves a defeated stage forward. Clearing the final stage settles
// the session with a victory and returns the completion rows.
func (c *Coordinator) advance(ctx context.Context, st *roomState, now time.Time) (cleared bool, completions []storage.CompletionRecord, err error) {
	s := &st.session
	if s.CurrentHP > 0 {
		return false, nil, nil
	}
	before := s.Stage
	if s.Stage >= len(s.Stages) {
		settled, err := c.settle(ctx, st, now)
		return true, settled, err
	}
	s.Stage++
	s.CurrentHP = s.StageBase()
	s.Events = nil
	s.Chain = nil
	s.Fired50 = false
	s.Fired10 = false
	if s.Stage == len(s.Stages) {
		if tmpl, ok := c.byID[s.TemplateID]; ok && tmpl.UniqueEventKey != "" {
			rng, _, err := c.source()
			if err != nil {
				return false, nil, apperrors.Transient("seed boss event", err)
			}
			if e, ok := c.pickEvent(rng, storage.TriggerBossUnique, tmpl); ok {
				c.enqueue(s, e, storage.TriggerBossUnique, now)
			}
		}
	}
	st.record(storage.BattleEvent{
		Kind:      storage.BattleGroupStage,
		SessionID: s.ID,
		HPBefore:  0,
		HPAfter:   s.CurrentHP,
		Timestamp: now,
		Payload:   map[string]any{"from": before, "stage": s.Stage},
	})
	return true, nil, nil
}

// payout reads every participant fresh and applies its reward. The
// characters carry the versions they were read at.
func (c *Coordinator) payout(ctx context.Context, sessionID string, ledger []storage.ContributionRecord, now time.Time) ([]storage.CompletionRecord, []character.Character, error) {
	var (
		completions []storage.CompletionRecord
		chars       []character.Character
	)
	for _, reward := range Rewards(ledger, c.cfg.BaseExp, c.cfg.BaseGold, c.cfg.EventBonusPercent) {
		record := storage.CompletionRecord{
			SessionID:       sessionID,
			PlayerID:        reward.PlayerID,
			Damage:          reward.Damage,
			EventsCompleted: reward.EventsCompleted,
			Share:           reward.Share,
			Exp:             reward.Exp,
			Gold:            reward.Gold,
			CompletedAt:     now,
		}
		char, err := c.store.GetCharacter(ctx, reward.PlayerID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, nil, apperrors.Transient("load participant", err)
		default:
			char.Regenerate(now)
			char.Gold += reward.Gold
			record.LevelsGained = char.GainExp(reward.Exp)
			chars = append(chars, char)
		}
		completions = append(completions, record)
	}
	return completions, chars, nil
}

// settle completes the session as a victory, pays every participant, and
// starts the room cooldown.
func (c *Coordinator) settle(ctx context.Context, st *roomState, now time.Time) ([]storage.CompletionRecord, error) {
	s := &st.session
	s.Status = storage.SessionCompleted
	s.Outcome = storage.OutcomeVictory
	s.CompletedAt = &now
	s.Events = nil
	s.Chain = nil

	ledger := st.ledger()
	for i := range ledger {
		ledger[i].Finalized = true
	}
	completion := storage.GroupCompletion{Session: *s, Contributions: ledger}
	var err error
	for attempt := 1; ; attempt++ {
		completion.Completions, completion.Characters, err = c.payout(ctx, s.ID, ledger, now)
		if err != nil {
			return nil, err
		}
		err = c.store.CommitGroupCompletion(ctx, completion)
		if !errors.Is(err, storage.ErrConflict) || attempt >= conflictAttempts {
			break
		}
		log.Printf("group session %s: participant changed during settlement, retrying (attempt %d)", s.ID, attempt)
	}
	if err != nil {
		st.ended = true
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperrors.Wrap(apperrors.CodeNoActiveSession, "session is no longer active", err)
		case errors.Is(err, storage.ErrConflict):
			return nil, err
		}
		return nil, apperrors.Transient("commit group completion", err)
	}
	st.ended = true
	c.setCooldown(ctx, roomCooldownPrefix+s.RoomID, s.ID, c.cfg.RoomCooldown)
	st.record(storage.BattleEvent{
		Kind:      storage.BattleGroupEnded,
		SessionID: s.ID,
		HPBefore:  s.CurrentHP,
		HPAfter:   s.CurrentHP,
		Timestamp: now,
		Payload: map[string]any{
			"outcome":      string(s.Outcome),
			"participants": len(ledger),
			"regressions":  s.RegressionCount,
		},
	})
	log.Printf("group session %s in room %s completed with %d participants", s.ID, s.RoomID, len(ledger))
	return completion.Completions, nil
}
