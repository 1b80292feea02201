package group

import (
	"context"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/platform/i18n/catalog"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// ForceComplete settles the room's session as a victory regardless of the
// monster's HP.
func (c *Coordinator) ForceComplete(ctx context.Context, roomID string) ([]storage.CompletionRecord, error) {
	var completions []storage.CompletionRecord
	err := c.mutate(ctx, roomID, func(st *roomState) error {
		var err error
		completions, err = c.settle(ctx, st, c.clock().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return completions, nil
}

// SkipStage defeats the current monster. Skipping the final stage settles
// the session as a victory.
func (c *Coordinator) SkipStage(ctx context.Context, roomID string) (storage.SessionRecord, error) {
	var out storage.SessionRecord
	err := c.mutate(ctx, roomID, func(st *roomState) error {
		st.session.CurrentHP = 0
		if _, _, err := c.advance(ctx, st, c.clock().UTC()); err != nil {
			return err
		}
		out = st.session
		return nil
	})
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return out, nil
}

// SetMonsterHPPercent sets the current monster to percent (1..100) of its
// stage base HP.
func (c *Coordinator) SetMonsterHPPercent(ctx context.Context, roomID string, percent int) (storage.SessionRecord, error) {
	if percent < 1 || percent > 100 {
		return storage.SessionRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "percent must be between 1 and 100")
	}
	var out storage.SessionRecord
	err := c.mutate(ctx, roomID, func(st *roomState) error {
		s := &st.session
		s.CurrentHP = max(1, s.StageBase()*percent/100)
		s.LastActivityAt = c.clock().UTC()
		out = *s
		return nil
	})
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return out, nil
}

// ForceTriggerEvent queues an event of the given trigger on the room's
// session.
func (c *Coordinator) ForceTriggerEvent(ctx context.Context, roomID string, trigger storage.EventTrigger) (storage.ActiveEvent, error) {
	var out storage.ActiveEvent
	err := c.mutate(ctx, roomID, func(st *roomState) error {
		rng, _, err := c.source()
		if err != nil {
			return apperrors.Transient("seed event", err)
		}
		e, ok := c.pickEvent(rng, trigger, c.byID[st.session.TemplateID])
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeNotFound, "no event template for trigger",
				map[string]string{"Trigger": string(trigger)})
		}
		now := c.clock().UTC()
		out = c.enqueue(&st.session, e, trigger, now)
		st.record(storage.BattleEvent{
			Kind:      storage.BattleGroupEvent,
			Timestamp: now,
			HPAfter:   st.session.CurrentHP,
			Payload:   map[string]any{"event": e.ID, "trigger": string(trigger), "queued": true, "forced": true},
		})
		return nil
	})
	if err != nil {
		return storage.ActiveEvent{}, err
	}
	return out, nil
}

// DebugInfo is an operator view of one session.
type DebugInfo struct {
	SessionID    string
	RoomID       string
	TemplateName string
	Stage        int
	MonsterName  string
	HP           int
	BaseHP       int
	Regressions  int
	ActiveEvent  string
	QueuedEvents int
	ChainStep    int
	ChainLength  int
	Participants int
	TotalDamage  int
	StartedAt    time.Time
	Elapsed      time.Duration
}

// DebugInfo reports the room's active session.
func (c *Coordinator) DebugInfo(ctx context.Context, roomID string) (DebugInfo, error) {
	st, err := c.read(ctx, roomID)
	if err != nil {
		return DebugInfo{}, err
	}
	s := st.session
	info := DebugInfo{
		SessionID:    s.ID,
		RoomID:       s.RoomID,
		TemplateName: c.byID[s.TemplateID].Name,
		Stage:        s.Stage,
		MonsterName:  stageName(s),
		HP:           s.CurrentHP,
		BaseHP:       s.StageBase(),
		Regressions:  s.RegressionCount,
		Participants: len(st.contribs),
		StartedAt:    s.StartedAt,
		Elapsed:      c.clock().Sub(s.StartedAt),
	}
	if len(s.Events) > 0 {
		info.ActiveEvent = s.Events[0].Name
		info.QueuedEvents = len(s.Events) - 1
	}
	if s.Chain != nil {
		info.ChainStep = s.Chain.Next
		info.ChainLength = len(s.Chain.TaskIDs)
	}
	for _, contrib := range st.contribs {
		info.TotalDamage += contrib.Damage
	}
	return info, nil
}

// Format renders the debug view with the catalog messages of locale.
func (d DebugInfo) Format(locale string) string {
	p := catalog.Printer(locale)
	var b strings.Builder
	b.WriteString(p.Sprintf("group.debug.session", d.SessionID, d.TemplateName))
	b.WriteByte('\n')
	b.WriteString(p.Sprintf("group.debug.stage", d.Stage, StageCount, d.MonsterName, d.HP, d.BaseHP))
	b.WriteByte('\n')
	b.WriteString(p.Sprintf("group.debug.damage", d.TotalDamage, d.Participants))
	b.WriteByte('\n')
	b.WriteString(p.Sprintf("group.debug.regressions", d.Regressions))
	if d.ActiveEvent != "" {
		b.WriteByte('\n')
		b.WriteString(p.Sprintf("group.debug.event", d.ActiveEvent, d.QueuedEvents))
	}
	if d.ChainLength > 0 {
		b.WriteByte('\n')
		b.WriteString(p.Sprintf("group.debug.chain", d.ChainStep, d.ChainLength))
	}
	b.WriteByte('\n')
	b.WriteString(p.Sprintf("group.debug.elapsed", int(d.Elapsed.Minutes())))
	return b.String()
}

// PlayerSession summarizes an active session a player contributed to.
type PlayerSession struct {
	SessionID    string
	RoomID       string
	TemplateName string
	Stage        int
	MonsterName  string
	HP           int
	BaseHP       int
	HPPercent    int
	Damage       int
	StageJoined  int
	Elapsed      time.Duration
}

// ActiveSessionsForPlayer lists the active sessions the player contributed
// to, oldest first. Storage failures are logged and read as none.
func (c *Coordinator) ActiveSessionsForPlayer(ctx context.Context, playerID string) []PlayerSession {
	sessions, err := c.store.ActiveSessionsForPlayer(ctx, playerID)
	if err != nil {
		log.Printf("active sessions for %s: %v", playerID, err)
		return nil
	}
	now := c.clock()
	out := make([]PlayerSession, 0, len(sessions))
	for _, s := range sessions {
		entry := PlayerSession{
			SessionID:    s.ID,
			RoomID:       s.RoomID,
			TemplateName: c.byID[s.TemplateID].Name,
			Stage:        s.Stage,
			MonsterName:  stageName(s),
			HP:           s.CurrentHP,
			BaseHP:       s.StageBase(),
			Elapsed:      now.Sub(s.StartedAt),
		}
		if entry.BaseHP > 0 {
			entry.HPPercent = entry.HP * 100 / entry.BaseHP
		}
		rows, err := c.store.ListContributions(ctx, s.ID)
		if err != nil {
			log.Printf("contributions of session %s: %v", s.ID, err)
		}
		for _, row := range rows {
			if row.PlayerID == playerID {
				entry.Damage = row.Damage
				entry.StageJoined = row.StageJoined
			}
		}
		out = append(out, entry)
	}
	return out
}
