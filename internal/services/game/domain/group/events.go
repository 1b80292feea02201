package group

import (
	"context"
	"math/rand"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// crossedThresholds marks and returns the HP thresholds the current stage
// just crossed, 50% before 10%. A threshold fires at most once per stage;
// a defeated monster fires none.
func crossedThresholds(s *storage.SessionRecord) []storage.EventTrigger {
	base := s.StageBase()
	if s.CurrentHP <= 0 || base <= 0 {
		return nil
	}
	var fired []storage.EventTrigger
	if !s.Fired50 && s.CurrentHP*2 <= base {
		s.Fired50 = true
		fired = append(fired, storage.TriggerHP50)
	}
	if !s.Fired10 && s.CurrentHP*10 <= base {
		s.Fired10 = true
		fired = append(fired, storage.TriggerHP10)
	}
	return fired
}

// pickEvent draws a weighted event template for trigger. Boss-unique events
// are matched by the template's unique event key.
func (c *Coordinator) pickEvent(rng *rand.Rand, trigger storage.EventTrigger, tmpl Template) (EventTemplate, bool) {
	var candidates []EventTemplate
	for _, e := range c.events {
		if e.Trigger != trigger {
			continue
		}
		if trigger == storage.TriggerBossUnique && e.DungeonEventKey != tmpl.UniqueEventKey {
			continue
		}
		candidates = append(candidates, e)
	}
	return random.Weighted(rng, candidates, func(e EventTemplate) float64 { return max(e.Weight, 0) })
}

// enqueue appends an event to the session queue. An event reaching the head
// of the queue starts at now.
func (c *Coordinator) enqueue(s *storage.SessionRecord, e EventTemplate, trigger storage.EventTrigger, now time.Time) storage.ActiveEvent {
	queued := e.queued(trigger)
	if queued.HPPercent <= 0 {
		queued.HPPercent = c.cfg.EventHPPercent
	}
	if len(s.Events) == 0 {
		queued.StartedAt = now
	}
	s.Events = append(s.Events, queued)
	return queued
}

// popEvent drops the head of the queue and starts the next one at now.
func popEvent(s *storage.SessionRecord, now time.Time) {
	if len(s.Events) == 0 {
		return
	}
	s.Events = slices.Delete(s.Events, 0, 1)
	if len(s.Events) > 0 {
		s.Events[0].StartedAt = now
	}
}

// expire drops the timed-out head events and engagement chain.
func expire(s *storage.SessionRecord, now time.Time, chainDuration time.Duration) (events int, chain bool) {
	for len(s.Events) > 0 {
		head := s.Events[0]
		if head.Duration <= 0 || now.Before(head.StartedAt.Add(head.Duration)) {
			break
		}
		popEvent(s, now)
		events++
	}
	if s.Chain != nil && !now.Before(s.Chain.StartedAt.Add(chainDuration)) {
		s.Chain = nil
		chain = true
	}
	return events, chain
}

// hpReduction is the share of the stage base HP an event or chain removes.
func hpReduction(base, percent int) int {
	return base * percent / 100
}

// participate registers a on the active event. It returns the resolved
// event when a reached its participant quota.
func (c *Coordinator) participate(st *roomState, a action.Action, now time.Time) (*storage.ActiveEvent, bool) {
	s := &st.session
	if len(s.Events) == 0 {
		return nil, false
	}
	head := &s.Events[0]
	if slices.Contains(head.Participants, a.ActorID) {
		return nil, false
	}
	if tmpl, ok := c.eventByID[head.TemplateID]; ok && !tmpl.Matcher.Matches(a) {
		return nil, false
	}
	head.Participants = append(head.Participants, a.ActorID)
	if len(head.Participants) < max(1, head.MinPlayers) {
		return nil, true
	}
	resolved := *head
	resolved.Participants = slices.Clone(head.Participants)
	s.CurrentHP = max(0, s.CurrentHP-hpReduction(s.StageBase(), resolved.HPPercent))
	st.credit(resolved.Participants, now)
	popEvent(s, now)
	return &resolved, true
}

// advanceChain moves the engagement chain when a matches its current task.
// It returns the number of completed tasks and whether the chain finished.
func (c *Coordinator) advanceChain(st *roomState, a action.Action, now time.Time) (progress int, done bool) {
	chain := st.session.Chain
	if chain == nil || chain.Next >= len(chain.TaskIDs) {
		return 0, false
	}
	task, ok := c.chainByID[chain.TaskIDs[chain.Next]]
	if !ok || !task.Matcher.Matches(a) {
		return 0, false
	}
	chain.Next++
	if !slices.Contains(chain.Participants, a.ActorID) {
		chain.Participants = append(chain.Participants, a.ActorID)
	}
	if chain.Next < len(chain.TaskIDs) {
		return chain.Next, false
	}
	s := &st.session
	s.CurrentHP = max(0, s.CurrentHP-hpReduction(s.StageBase(), c.cfg.ChainHPPercent))
	st.credit(chain.Participants, now)
	progress = chain.Next
	s.Chain = nil
	return progress, true
}

// Chain describes an engagement chain to present to the room.
type Chain struct {
	SessionID string
	Tasks     []ChainTask
	StartedAt time.Time
	ExpiresAt time.Time
}

// StartChain opens the engagement chain of the current stage: tasks drawn
// from the pool that must be matched in order before the window closes.
// Each stage allows one chain.
func (c *Coordinator) StartChain(ctx context.Context, roomID string) (Chain, error) {
	ctx, span := tracer.Start(ctx, "group.StartChain", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	if len(c.chains) == 0 {
		return Chain{}, apperrors.New(apperrors.CodePoolInvalid, "chain task pool is empty")
	}
	var out Chain
	err := c.mutate(ctx, roomID, func(st *roomState) error {
		s := &st.session
		now := c.clock().UTC()
		expire(s, now, c.cfg.ChainDuration)
		if s.Chain != nil {
			return apperrors.New(apperrors.CodeChainAlreadyActive, "engagement chain already active")
		}
		if s.ChainUsedStage == s.Stage {
			return apperrors.WithMetadata(apperrors.CodeCooldownActive, "engagement chain already used this stage",
				map[string]string{"Scope": "chain"})
		}
		rng, _, err := c.source()
		if err != nil {
			return apperrors.Transient("seed chain", err)
		}
		tasks := random.Shuffled(rng, c.chains)
		tasks = tasks[:min(c.cfg.ChainLength, len(tasks))]
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		s.Chain = &storage.ChainState{TaskIDs: ids, StartedAt: now}
		s.ChainUsedStage = s.Stage
		out = Chain{SessionID: s.ID, Tasks: tasks, StartedAt: now, ExpiresAt: now.Add(c.cfg.ChainDuration)}
		return nil
	})
	if err != nil {
		return Chain{}, err
	}
	return out, nil
}
