package group

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// Outcome classifies a handled room message.
type Outcome string

const (
	OutcomeNoSession    Outcome = "no_session"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeHit          Outcome = "hit"
	OutcomeParticipated Outcome = "participated"
)

// Reasons a message dealt no damage.
const (
	ReasonTooShort    = "too_short"
	ReasonDuplicate   = "duplicate"
	ReasonCooldown    = "cooldown"
	ReasonNoCharacter = "no_character"
)

// MessageResult is the outbound result of one room message.
type MessageResult struct {
	Outcome   Outcome
	Reason    string
	SessionID string
	RoomID    string
	PlayerID  string

	Damage     int
	BaseDamage int
	Crit       bool
	Creativity float64
	Ramp       float64

	Stage     int
	MonsterHP int
	BaseHP    int

	// Triggered lists events queued by thresholds this message crossed.
	Triggered      []storage.ActiveEvent
	EventJoined    bool
	Resolved       *storage.ActiveEvent
	ChainProgress  int
	ChainCompleted bool

	StageCleared bool
	Completed    bool
	Completions  []storage.CompletionRecord
}

var errUnchanged = errors.New("group: session unchanged")

// HandleMessage applies one room message to the room's active session:
// damage, event participation, chain progress, thresholds, and stage
// transitions. A room without a session yields OutcomeNoSession.
func (c *Coordinator) HandleMessage(ctx context.Context, a action.Action) (result MessageResult, err error) {
	ctx, span := tracer.Start(ctx, "group.HandleMessage", trace.WithAttributes(
		attribute.String("room.id", a.RoomID),
		attribute.String("player.id", a.ActorID),
		attribute.String("action.kind", a.Kind.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	if a.RoomID == "" || a.ActorID == "" {
		return MessageResult{}, apperrors.New(apperrors.CodeInvalidArgument, "room id and actor id are required")
	}
	now := a.At
	if now.IsZero() {
		now = c.clock()
	}
	now = now.UTC()
	result = MessageResult{RoomID: a.RoomID, PlayerID: a.ActorID}

	profile, hasCharacter, err := c.profile(ctx, a.ActorID)
	if err != nil {
		return MessageResult{}, err
	}

	err = c.mutate(ctx, a.RoomID, func(st *roomState) error {
		return c.apply(ctx, st, a, profile, hasCharacter, now, &result)
	})
	switch {
	case errors.Is(err, errUnchanged):
		err = nil
	case apperrors.HasCode(err, apperrors.CodeNoActiveSession):
		c.Observe(ctx, a, false)
		return MessageResult{Outcome: OutcomeNoSession, RoomID: a.RoomID, PlayerID: a.ActorID}, nil
	case err != nil:
		return MessageResult{}, err
	}
	c.Observe(ctx, a, result.Damage > 0)
	span.SetAttributes(
		attribute.String("group.outcome", string(result.Outcome)),
		attribute.Int("group.damage", result.Damage),
	)
	return result, nil
}

func (c *Coordinator) apply(ctx context.Context, st *roomState, a action.Action, profile character.Profile, hasCharacter bool, now time.Time, result *MessageResult) error {
	s := &st.session
	result.SessionID = s.ID
	expiredEvents, expiredChain := expire(s, now, c.cfg.ChainDuration)
	changed := expiredEvents > 0 || expiredChain

	rng, seed, err := c.source()
	if err != nil {
		return apperrors.Transient("seed message", err)
	}

	result.Reason = c.filter(st, a, hasCharacter, now)
	if result.Reason == "" {
		contrib := st.contribution(a.ActorID, now)
		dmg := combat.ComputeDamage(rng, profile, a.Kind, a.Length(), "")
		creativity := c.creativity(a)
		ramp := c.ramp(&contrib, now)
		damage := max(1, int(math.Floor(float64(dmg.Total)*creativity*ramp)))

		before := s.CurrentHP
		s.CurrentHP = max(0, s.CurrentHP-damage)
		s.LastActivityAt = now
		contrib.Damage += damage
		contrib.LastDamageAt = now
		if text := a.NormalizedText(); text != "" {
			contrib.LastMessage = text
		}
		st.put(contrib)

		result.Damage = damage
		result.BaseDamage = dmg.Total
		result.Crit = dmg.Crit
		result.Creativity = creativity
		result.Ramp = ramp
		st.record(storage.BattleEvent{
			Kind:        storage.BattleGroupHit,
			CharacterID: a.ActorID,
			HPBefore:    before,
			HPAfter:     s.CurrentHP,
			Timestamp:   now,
			Payload: map[string]any{
				"seed":       seed,
				"stage":      s.Stage,
				"kind":       a.Kind.String(),
				"base":       dmg.Total,
				"crit":       dmg.Crit,
				"creativity": creativity,
				"ramp":       ramp,
				"damage":     damage,
			},
		})
		changed = true
	}

	if resolved, joined := c.participate(st, a, now); joined {
		result.EventJoined = true
		result.Resolved = resolved
		changed = true
		if resolved != nil {
			st.record(storage.BattleEvent{
				Kind:        storage.BattleGroupEvent,
				CharacterID: a.ActorID,
				Timestamp:   now,
				HPAfter:     s.CurrentHP,
				Payload: map[string]any{
					"event":        resolved.TemplateID,
					"trigger":      string(resolved.Trigger),
					"resolved":     true,
					"participants": len(resolved.Participants),
				},
			})
		}
	}
	if progress, done := c.advanceChain(st, a, now); progress > 0 {
		result.ChainProgress = progress
		result.ChainCompleted = done
		changed = true
	}

	tmpl := c.byID[s.TemplateID]
	for _, trigger := range crossedThresholds(s) {
		changed = true
		e, ok := c.pickEvent(rng, trigger, tmpl)
		if !ok {
			continue
		}
		queued := c.enqueue(s, e, trigger, now)
		result.Triggered = append(result.Triggered, queued)
		st.record(storage.BattleEvent{
			Kind:      storage.BattleGroupEvent,
			Timestamp: now,
			HPAfter:   s.CurrentHP,
			Payload:   map[string]any{"event": e.ID, "trigger": string(trigger), "queued": true},
		})
	}

	cleared, completions, err := c.advance(ctx, st, now)
	if err != nil {
		return err
	}
	result.StageCleared = cleared
	result.Completed = st.ended
	result.Completions = completions
	result.Stage = s.Stage
	result.MonsterHP = s.CurrentHP
	result.BaseHP = s.StageBase()

	switch {
	case result.Damage > 0:
		result.Outcome = OutcomeHit
	case result.EventJoined || result.ChainProgress > 0:
		result.Outcome = OutcomeParticipated
	default:
		result.Outcome = OutcomeIgnored
	}
	if !changed && !cleared {
		return errUnchanged
	}
	return nil
}

// filter returns why a deals no damage, or "" when it qualifies.
func (c *Coordinator) filter(st *roomState, a action.Action, hasCharacter bool, now time.Time) string {
	if a.Kind.TextLike() && a.Text != "" && a.DistinctRunes() < c.cfg.MinDistinctRunes {
		return ReasonTooShort
	}
	prev, ok := st.contribs[a.ActorID]
	if ok {
		if text := a.NormalizedText(); text != "" && text == prev.LastMessage {
			return ReasonDuplicate
		}
		if !prev.LastDamageAt.IsZero() && now.Sub(prev.LastDamageAt) < c.cfg.DamageCooldown {
			return ReasonCooldown
		}
	}
	if !hasCharacter {
		return ReasonNoCharacter
	}
	return ""
}

// creativity rewards replies over damage emblems.
func (c *Coordinator) creativity(a action.Action) float64 {
	if a.IsReply {
		return c.cfg.ReplyMultiplier
	}
	if a.ContainsAny(c.cfg.Emblems) {
		return c.cfg.EmblemMultiplier
	}
	return 1
}

// ramp returns the damage multiplier of a contribution and settles it to
// 1.0 once the participant is past the ramp window.
func (c *Coordinator) ramp(contrib *storage.ContributionRecord, now time.Time) float64 {
	if contrib.Finalized {
		return 1
	}
	if now.Sub(contrib.JoinedAt) >= c.cfg.RampWindow {
		contrib.Multiplier = 1
		contrib.Finalized = true
		return 1
	}
	contrib.Multiplier = c.cfg.RampMultiplier
	return contrib.Multiplier
}

// profile loads the combat profile of the player's character.
func (c *Coordinator) profile(ctx context.Context, playerID string) (character.Profile, bool, error) {
	char, err := c.store.GetCharacter(ctx, playerID)
	if errors.Is(err, storage.ErrNotFound) {
		return character.Profile{}, false, nil
	}
	if err != nil {
		return character.Profile{}, false, apperrors.Transient("load character", err)
	}
	equipped, err := c.store.ListEquipped(ctx, playerID)
	if err != nil {
		return character.Profile{}, false, apperrors.Transient("load equipment", err)
	}
	return character.EffectiveProfile(char.Stats, equipped), true, nil
}
