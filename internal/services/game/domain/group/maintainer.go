package group

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// Sweeper drops expired ephemeral entries.
type Sweeper interface {
	Sweep(maxWindow time.Duration) int
}

// Maintainer runs the periodic upkeep of every active session.
type Maintainer struct {
	coord   *Coordinator
	sweeper Sweeper
	// lastPrune is only touched by Tick's caller goroutine.
	lastPrune time.Time
}

// NewMaintainer builds a Maintainer. sweeper may be nil.
func NewMaintainer(coord *Coordinator, sweeper Sweeper) *Maintainer {
	return &Maintainer{coord: coord, sweeper: sweeper}
}

// TickReport summarizes one maintenance pass.
type TickReport struct {
	Sessions  int
	Regressed int
	// Forced counts stages defeated by the session time limit.
	Forced         int
	Advanced       int
	Completed      int
	Failed         int
	Pruned         int64
	SweptKeys      int
	CompletedRooms []string
}

// Run ticks at the save interval until ctx is cancelled.
func (m *Maintainer) Run(ctx context.Context) {
	if m == nil || m.coord == nil {
		return
	}
	ticker := time.NewTicker(m.coord.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Tick(ctx, m.coord.clock()); err != nil {
				log.Printf("group maintenance failed: %v", err)
			}
		}
	}
}

type roomOutcome struct {
	regressed bool
	forced    bool
	advanced  bool
	completed bool
	failed    bool
}

// Tick runs one maintenance pass at now. Rooms are maintained by a bounded
// worker pool; a failing room does not stop the others.
func (m *Maintainer) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	ctx, span := tracer.Start(ctx, "group.Maintain")
	defer span.End()

	c := m.coord
	now = now.UTC()
	sessions, err := c.store.ListActiveSessions(ctx)
	if err != nil {
		return TickReport{}, apperrors.Transient("list active sessions", err)
	}

	outcomes := make([]roomOutcome, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaintenanceWorkers)
	for i, s := range sessions {
		g.Go(func() error {
			out, err := c.maintain(gctx, s.RoomID, now)
			if err != nil && !apperrors.HasCode(err, apperrors.CodeNoActiveSession) {
				log.Printf("maintain room %s: %v", s.RoomID, err)
				out.failed = true
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	report := TickReport{Sessions: len(sessions)}
	for i, out := range outcomes {
		if out.regressed {
			report.Regressed++
		}
		if out.forced {
			report.Forced++
		}
		if out.advanced {
			report.Advanced++
		}
		if out.completed {
			report.Completed++
			report.CompletedRooms = append(report.CompletedRooms, sessions[i].RoomID)
		}
		if out.failed {
			report.Failed++
		}
	}

	if now.Sub(m.lastPrune) >= time.Hour {
		pruned, err := c.store.PruneActivity(ctx, now.Add(-c.cfg.ActivityRetention))
		if err != nil {
			log.Printf("prune room activity: %v", err)
		} else {
			report.Pruned = pruned
			m.lastPrune = now
		}
	}
	if m.sweeper != nil {
		report.SweptKeys = m.sweeper.Sweep(c.cfg.ActivityWindow)
	}

	span.SetAttributes(
		attribute.Int("group.sessions", report.Sessions),
		attribute.Int("group.regressed", report.Regressed),
		attribute.Int("group.forced", report.Forced),
		attribute.Int("group.completed", report.Completed),
	)
	return report, nil
}

// maintain applies the periodic rules to one room's session. Every
// regression interval a quiet room's monster decays, and a session past the
// time limit with more than the HP floor left has its stage defeated. A
// stage at 0 HP advances; clearing the last one settles a victory.
func (c *Coordinator) maintain(ctx context.Context, roomID string, now time.Time) (roomOutcome, error) {
	var out roomOutcome
	err := c.mutate(ctx, roomID, func(st *roomState) error {
		s := &st.session
		s.LastSavedAt = now
		expire(s, now, c.cfg.ChainDuration)

		last := s.LastRegressionAt
		if last.IsZero() {
			last = s.StartedAt
		}
		if now.Sub(last) >= c.cfg.RegressionInterval {
			s.LastRegressionAt = now
			out.regressed = c.regress(ctx, st, now)
			if now.Sub(s.StartedAt) >= c.cfg.ForceCompleteAfter && s.CurrentHP*100 > s.StageBase()*c.cfg.ForceCompleteHPFloor {
				log.Printf("group session %s in room %s: time limit defeats stage %d", s.ID, roomID, s.Stage)
				s.CurrentHP = 0
				out.forced = true
			}
		}
		if s.CurrentHP > 0 {
			return nil
		}
		cleared, _, err := c.advance(ctx, st, now)
		if err != nil {
			return err
		}
		out.advanced = cleared && !st.ended
		out.completed = st.ended
		return nil
	})
	return out, err
}

// regress takes RegressionFraction of the stage base HP off the monster
// when the room was quiet over the last interval.
func (c *Coordinator) regress(ctx context.Context, st *roomState, now time.Time) bool {
	s := &st.session
	messages, err := c.store.CountMessages(ctx, s.RoomID, now.Add(-c.cfg.RegressionInterval))
	if err != nil {
		log.Printf("count messages for room %s: %v", s.RoomID, err)
		return false
	}
	if messages >= c.cfg.lowActivityThreshold() {
		return false
	}
	before := s.CurrentHP
	amount := max(1, int(float64(s.StageBase())*c.cfg.RegressionFraction))
	s.CurrentHP = min(s.StageBase(), max(0, s.CurrentHP-amount))
	s.RegressionCount++
	st.record(storage.BattleEvent{
		Kind:      storage.BattleGroupStage,
		Timestamp: now,
		HPBefore:  before,
		HPAfter:   s.CurrentHP,
		Payload:   map[string]any{"regression": s.RegressionCount, "messages": messages, "stage": s.Stage},
	})
	return true
}
