package group

import (
	"context"
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

var defaultStageNames = [StageCount]string{"Dungeon Warden", "Hall Guard", "Portal Sentinel", "Dungeon Lord"}

// Start opens a session in the room. Unless the coordinator runs in debug
// mode, the room and initiator must pass every start gate.
func (c *Coordinator) Start(ctx context.Context, roomID, initiatorID string) (storage.SessionRecord, error) {
	return c.start(ctx, roomID, initiatorID, "", c.cfg.Debug)
}

// StartDebug opens a session without start gates or initiator cooldown.
// An unknown or empty templateID picks a random template.
func (c *Coordinator) StartDebug(ctx context.Context, roomID, initiatorID, templateID string) (storage.SessionRecord, error) {
	return c.start(ctx, roomID, initiatorID, templateID, true)
}

func (c *Coordinator) start(ctx context.Context, roomID, initiatorID, templateID string, debug bool) (storage.SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "group.Start", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("initiator.id", initiatorID),
		attribute.Bool("debug", debug),
	))
	defer span.End()

	if roomID == "" || initiatorID == "" {
		return storage.SessionRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "room id and initiator id are required")
	}
	r := c.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := c.load(ctx, r, roomID)
	if err == nil {
		return storage.SessionRecord{}, apperrors.WithMetadata(apperrors.CodeSessionAlreadyActive, "session already active",
			map[string]string{"SessionID": existing.session.ID, "Monster": stageName(existing.session)})
	}
	if !apperrors.HasCode(err, apperrors.CodeNoActiveSession) {
		return storage.SessionRecord{}, err
	}

	now := c.clock().UTC()
	if !debug {
		if err := c.checkGates(ctx, roomID, initiatorID, now); err != nil {
			return storage.SessionRecord{}, err
		}
	}

	rng, _, err := c.source()
	if err != nil {
		return storage.SessionRecord{}, apperrors.Transient("seed session", err)
	}
	tmpl, ok := c.byID[templateID]
	if !ok {
		tmpl = c.templates[rng.Intn(len(c.templates))]
	}
	sessionID, err := c.newID()
	if err != nil {
		return storage.SessionRecord{}, apperrors.Transient("generate session id", err)
	}
	stages := c.buildStages(tmpl)
	session := storage.SessionRecord{
		ID:               sessionID,
		RoomID:           roomID,
		TemplateID:       tmpl.ID,
		InitiatorID:      initiatorID,
		Stage:            1,
		Stages:           stages,
		CurrentHP:        stages[0].BaseHP,
		StartedAt:        now,
		LastActivityAt:   now,
		LastSavedAt:      now,
		LastRegressionAt: now,
		Status:           storage.SessionActive,
	}
	if err := c.store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, storage.ErrActiveSessionExists) {
			return storage.SessionRecord{}, err
		}
		return storage.SessionRecord{}, apperrors.Transient("create group session", err)
	}
	r.state = &roomState{
		session:  session,
		contribs: map[string]storage.ContributionRecord{},
		dirty:    map[string]struct{}{},
	}
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("template.id", tmpl.ID))

	if !debug {
		c.setCooldown(ctx, initiatorCooldownPrefix+initiatorID, sessionID, c.cfg.InitiatorCooldown)
	}
	if err := c.store.RecordActivity(ctx, storage.RoomActivity{RoomID: roomID, PlayerID: initiatorID, At: now, GameAction: true}); err != nil {
		log.Printf("record start activity for room %s: %v", roomID, err)
	}
	c.emit(ctx, storage.BattleEvent{
		Kind:        storage.BattleGroupStage,
		SessionID:   sessionID,
		CharacterID: initiatorID,
		HPBefore:    session.CurrentHP,
		HPAfter:     session.CurrentHP,
		Timestamp:   now,
		Payload:     map[string]any{"stage": 1, "template": tmpl.ID, "started": true},
	})
	return session, nil
}

// checkGates applies the start rules in order: room cooldown, initiator
// cooldown, room message rate, active players, initiator eligibility.
func (c *Coordinator) checkGates(ctx context.Context, roomID, initiatorID string, now time.Time) error {
	if ttl, ok := c.cooldown(ctx, roomCooldownPrefix+roomID); ok {
		return apperrors.WithMetadata(apperrors.CodeCooldownActive, "room is on cooldown",
			map[string]string{"Scope": "room", "Remaining": ttl.Round(time.Second).String()})
	}
	if ttl, ok := c.cooldown(ctx, initiatorCooldownPrefix+initiatorID); ok {
		return apperrors.WithMetadata(apperrors.CodeCooldownActive, "initiator is on cooldown",
			map[string]string{"Scope": "initiator", "Remaining": ttl.Round(time.Second).String()})
	}

	messages, err := c.store.CountMessages(ctx, roomID, now.Add(-c.cfg.ActivityWindow))
	if err != nil {
		return apperrors.Transient("count room messages", err)
	}
	minutes := c.cfg.ActivityWindow.Minutes()
	if float64(messages) < float64(c.cfg.MinMessagesPerMinute)*minutes {
		return apperrors.WithMetadata(apperrors.CodeActivityTooLow, "room activity is too low",
			map[string]string{"Rate": strconv.FormatFloat(float64(messages)/minutes, 'f', 2, 64),
				"Required": strconv.Itoa(c.cfg.MinMessagesPerMinute)})
	}
	active, err := c.store.CountActivePlayers(ctx, roomID, now.Add(-c.cfg.ActivePlayersWindow), c.cfg.MinGameActions)
	if err != nil {
		return apperrors.Transient("count active players", err)
	}
	if active < c.cfg.MinActivePlayers {
		return apperrors.WithMetadata(apperrors.CodeActivityTooLow, "too few active players",
			map[string]string{"Players": strconv.Itoa(active), "Required": strconv.Itoa(c.cfg.MinActivePlayers)})
	}

	firstSeen, err := c.store.FirstSeen(ctx, roomID, initiatorID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotEligible, "initiator has not been seen in the room")
	}
	if err != nil {
		return apperrors.Transient("load membership", err)
	}
	if now.Sub(firstSeen) < c.cfg.MinMembership {
		return apperrors.WithMetadata(apperrors.CodeNotEligible, "initiator joined the room too recently",
			map[string]string{"Required": c.cfg.MinMembership.String()})
	}
	actions, err := c.store.CountGameActions(ctx, roomID, initiatorID, now.Add(-c.cfg.EligibilityWindow))
	if err != nil {
		return apperrors.Transient("count game actions", err)
	}
	if actions < c.cfg.MinGameActions {
		return apperrors.WithMetadata(apperrors.CodeNotEligible, "initiator has too few recent game actions",
			map[string]string{"Actions": strconv.Itoa(actions), "Required": strconv.Itoa(c.cfg.MinGameActions)})
	}
	return nil
}

// buildStages precomputes the monsters of every stage.
func (c *Coordinator) buildStages(t Template) []storage.StageMonster {
	mult := t.HPMultiplier
	if mult <= 0 {
		mult = 1
	}
	stages := make([]storage.StageMonster, StageCount)
	for i := range stages {
		name := defaultStageNames[i]
		emoji := ""
		if i < len(t.Stages) {
			if t.Stages[i].Name != "" {
				name = t.Stages[i].Name
			}
			emoji = t.Stages[i].Emoji
		}
		stages[i] = storage.StageMonster{
			Name:   name,
			Emoji:  emoji,
			BaseHP: max(1, int(math.Floor(float64(c.cfg.StageBaseHP[i])*mult))),
		}
	}
	return stages
}

func stageName(s storage.SessionRecord) string {
	if s.Stage < 1 || s.Stage > len(s.Stages) {
		return ""
	}
	return s.Stages[s.Stage-1].Name
}
