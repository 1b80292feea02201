package server

import (
	"context"
	"log"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/push"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// publisher delivers results to connected clients.
type publisher interface {
	PublishGroup(ctx context.Context, r group.MessageResult) error
	PublishCombat(ctx context.Context, r combat.ActionResult) error
}

// Dispatcher routes one inbound action or command to the components it
// concerns and publishes what actions produced.
//
// Room messages go to the group coordinator first. The sender's solo run,
// when one is active, also takes the action; in a room its failures never
// fail the dispatch. Actions outside a room go to combat alone.
type Dispatcher struct {
	resolver    *combat.Resolver
	coordinator *group.Coordinator
	publisher   publisher
}

// NewDispatcher returns a dispatcher. pub may be nil.
func NewDispatcher(resolver *combat.Resolver, coordinator *group.Coordinator, pub publisher) *Dispatcher {
	return &Dispatcher{resolver: resolver, coordinator: coordinator, publisher: pub}
}

// Dispatch handles a, publishing results when a publisher is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, a action.Action) (push.Outcome, error) {
	var out push.Outcome
	if a.RoomID != "" && d.coordinator != nil {
		res, err := d.coordinator.HandleMessage(ctx, a)
		if err != nil {
			return push.Outcome{}, err
		}
		out.Group = &res
		if res.Outcome != group.OutcomeNoSession {
			d.publishGroup(ctx, res)
		}
	}
	if d.resolver == nil {
		return out, nil
	}

	res, err := d.resolver.ResolveAction(ctx, a)
	switch {
	case err == nil:
		out.Combat = &res
		d.publishCombat(ctx, res)
	case a.RoomID == "":
		return push.Outcome{}, err
	case !apperrors.HasCode(err, apperrors.CodeNoActiveRun):
		log.Printf("solo action in room %s for %s: %v", a.RoomID, a.ActorID, err)
	}
	return out, nil
}

// Execute runs one command against combat or the group coordinator. Solo
// commands act on the actor's own character.
func (d *Dispatcher) Execute(ctx context.Context, c push.Command) (push.CommandResult, error) {
	if d.resolver == nil || d.coordinator == nil {
		return push.CommandResult{}, apperrors.New(apperrors.CodeInvalidArgument, "commands are not configured")
	}
	var out push.CommandResult
	switch c.Name {
	case push.CommandCreateCharacter:
		char, err := d.resolver.CreateCharacter(ctx, c.ActorID, c.CharacterName)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Character = &char
	case push.CommandStartRun:
		run, err := d.resolver.StartRun(ctx, c.ActorID, c.Act, c.Dungeon, c.Plus)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Run = &run
	case push.CommandAbandonRun:
		run, err := d.resolver.Abandon(ctx, c.ActorID)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Run = &run
	case push.CommandEquip:
		if err := d.resolver.Equip(ctx, c.ActorID, c.ItemID, c.Slot); err != nil {
			return push.CommandResult{}, err
		}
		if status := d.resolver.Status(ctx, c.ActorID); status.Character.ID != "" {
			out.Character = &status.Character
		}
	case push.CommandGroupStart, push.CommandDebugStart:
		var (
			session storage.SessionRecord
			err     error
		)
		if c.Name == push.CommandDebugStart {
			session, err = d.coordinator.StartDebug(ctx, c.RoomID, c.ActorID, c.TemplateID)
		} else {
			session, err = d.coordinator.Start(ctx, c.RoomID, c.ActorID)
		}
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Session = &session
	case push.CommandChainStart:
		chain, err := d.coordinator.StartChain(ctx, c.RoomID)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Chain = &chain
	case push.CommandForceComplete:
		completions, err := d.coordinator.ForceComplete(ctx, c.RoomID)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Completions = completions
	case push.CommandSkipStage:
		session, err := d.coordinator.SkipStage(ctx, c.RoomID)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Session = &session
	case push.CommandSetMonsterHP:
		session, err := d.coordinator.SetMonsterHPPercent(ctx, c.RoomID, c.Percent)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Session = &session
	case push.CommandTriggerEvent:
		event, err := d.coordinator.ForceTriggerEvent(ctx, c.RoomID, c.Trigger)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Event = &event
	case push.CommandDebugInfo:
		info, err := d.coordinator.DebugInfo(ctx, c.RoomID)
		if err != nil {
			return push.CommandResult{}, err
		}
		out.Debug = &info
	default:
		return push.CommandResult{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown command", map[string]string{"name": c.Name})
	}
	return out, nil
}

func (d *Dispatcher) publishGroup(ctx context.Context, res group.MessageResult) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishGroup(ctx, res); err != nil {
		log.Printf("publish group result for room %s: %v", res.RoomID, err)
	}
}

func (d *Dispatcher) publishCombat(ctx context.Context, res combat.ActionResult) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishCombat(ctx, res); err != nil {
		log.Printf("publish combat result for %s: %v", res.CharacterID, err)
	}
}
