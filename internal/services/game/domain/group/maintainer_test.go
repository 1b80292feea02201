package group

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

func TestMaintainerRegressesQuietRooms(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	m := NewMaintainer(h.coord, h.eph)
	ctx := context.Background()

	h.clock.Advance(91 * time.Second)
	report, err := m.Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Sessions != 1 || report.Regressed != 1 {
		t.Fatalf("report = %+v, want one regression", report)
	}
	s := h.session(t)
	// 1.2% of 600 floors to 7.
	if s.CurrentHP != 593 || s.RegressionCount != 1 {
		t.Fatalf("hp = %d regressions = %d, want 593 and 1", s.CurrentHP, s.RegressionCount)
	}
	if !s.LastSavedAt.Equal(h.clock.Now()) {
		t.Fatalf("last saved = %v, want %v", s.LastSavedAt, h.clock.Now())
	}

	h.clock.Advance(30 * time.Second)
	if report, err = m.Tick(ctx, h.clock.Now()); err != nil || report.Regressed != 0 {
		t.Fatalf("report = %+v, %v, want no regression inside the interval", report, err)
	}
}

func TestMaintainerSparesActiveRooms(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	h.clock.Advance(91 * time.Second)
	for i := range 3 {
		err := h.store.RecordActivity(ctx, storage.RoomActivity{
			RoomID: testRoom, PlayerID: "bob", At: h.clock.Now().Add(-time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("record activity: %v", err)
		}
	}
	report, err := NewMaintainer(h.coord, nil).Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Regressed != 0 || h.session(t).CurrentHP != 600 {
		t.Fatalf("report = %+v, want no regression", report)
	}
}

func TestMaintainerTimeLimitDefeatsStages(t *testing.T) {
	h := newHarness(t)
	h.player(t, "alice", 100)
	session := h.start(t)
	ctx := context.Background()
	m := NewMaintainer(h.coord, nil)
	h.handle(t, h.say("alice"))

	h.clock.Advance(75 * time.Minute)
	report, err := m.Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Forced != 1 || report.Advanced != 1 || report.Completed != 0 {
		t.Fatalf("report = %+v, want one forced stage", report)
	}
	if s := h.session(t); s.Stage != 2 || s.CurrentHP != 600 {
		t.Fatalf("stage %d hp %d, want stage 2 at 600", s.Stage, s.CurrentHP)
	}

	for stage := 3; stage <= StageCount; stage++ {
		h.clock.Advance(91 * time.Second)
		if _, err := m.Tick(ctx, h.clock.Now()); err != nil {
			t.Fatalf("tick: %v", err)
		}
		if s := h.session(t); s.Stage != stage {
			t.Fatalf("stage = %d, want %d", s.Stage, stage)
		}
	}

	h.clock.Advance(91 * time.Second)
	report, err = m.Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Completed != 1 || len(report.CompletedRooms) != 1 || report.CompletedRooms[0] != testRoom {
		t.Fatalf("report = %+v, want room completed", report)
	}
	completions, err := h.store.ListCompletions(ctx, session.ID)
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(completions) != 1 || completions[0].PlayerID != "alice" || completions[0].Gold == 0 || completions[0].Share != 1 {
		t.Fatalf("completions = %+v, want alice paid in full", completions)
	}
	alice, err := h.store.GetCharacter(ctx, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if alice.Gold != completions[0].Gold {
		t.Fatalf("alice gold = %d, want %d", alice.Gold, completions[0].Gold)
	}
	if _, ok, _ := h.eph.TTL(ctx, roomCooldownPrefix+testRoom); !ok {
		t.Fatal("expected room cooldown after the forced victory")
	}
	if res := h.handle(t, h.say("alice")); res.Outcome != OutcomeNoSession {
		t.Fatalf("outcome = %q, want no session", res.Outcome)
	}
}

func TestMaintainerKeepsNearlyDefeatedSessions(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	if _, err := h.coord.SetMonsterHPPercent(ctx, testRoom, 5); err != nil {
		t.Fatalf("set hp: %v", err)
	}
	h.clock.Advance(80 * time.Minute)
	report, err := NewMaintainer(h.coord, nil).Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Forced != 0 || report.Advanced != 0 {
		t.Fatalf("report = %+v, want the 5%% stage kept", report)
	}
	if s := h.session(t); s.CurrentHP != 23 || s.Stage != 1 {
		t.Fatalf("stage %d hp %d, want stage 1 at 23", s.Stage, s.CurrentHP)
	}
}

func TestMaintainerDecayClearsNearlyDeadStage(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	// 1% of 600 leaves 6 HP, below one regression step of 7.
	if _, err := h.coord.SetMonsterHPPercent(ctx, testRoom, 1); err != nil {
		t.Fatalf("set hp: %v", err)
	}
	h.clock.Advance(91 * time.Second)
	report, err := NewMaintainer(h.coord, nil).Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Regressed != 1 || report.Advanced != 1 || report.Forced != 0 {
		t.Fatalf("report = %+v, want decay to advance the stage", report)
	}
	s := h.session(t)
	if s.Stage != 2 || s.CurrentHP != 600 || s.RegressionCount != 1 {
		t.Fatalf("session = stage %d hp %d regressions %d, want stage 2 at 600", s.Stage, s.CurrentHP, s.RegressionCount)
	}
	events, err := h.store.ListBattleEvents(ctx, s.ID, 20)
	if err != nil {
		t.Fatalf("list battle events: %v", err)
	}
	if n := countKind(events, storage.BattleGroupStage); n != 3 {
		t.Fatalf("stage events = %d, want start, decay and advance", n)
	}
}

func TestMaintainerPrunesOldActivity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	err := h.store.RecordActivity(ctx, storage.RoomActivity{RoomID: testRoom, PlayerID: "bob", At: h.clock.Now().Add(-8 * 24 * time.Hour)})
	if err != nil {
		t.Fatalf("record activity: %v", err)
	}
	report, err := NewMaintainer(h.coord, h.eph).Tick(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Sessions != 0 || report.Pruned != 1 {
		t.Fatalf("report = %+v, want one pruned row", report)
	}
}

func TestMaintainerRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewMaintainer(h.coord, nil).Run(ctx)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("maintainer did not stop")
	}
}
