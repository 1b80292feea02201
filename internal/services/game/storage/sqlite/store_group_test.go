package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

func testSession(id, room string) storage.SessionRecord {
	return storage.SessionRecord{
		ID: id, RoomID: room, TemplateID: "whirlwind", InitiatorID: "p1", Stage: 1,
		Stages: []storage.StageMonster{
			{Name: "Gale", BaseHP: 4250}, {Name: "Squall", BaseHP: 5100},
			{Name: "Cyclone", BaseHP: 5950}, {Name: "Eye of the Storm", BaseHP: 17000},
		},
		CurrentHP: 4250, StartedAt: testNow, LastActivityAt: testNow, LastSavedAt: testNow, LastRegressionAt: testNow,
		Status: storage.SessionActive,
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.CreateSession(ctx, testSession("gs-1", "room-1")); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := store.CreateSession(ctx, testSession("gs-2", "room-1")); !errors.Is(err, storage.ErrActiveSessionExists) {
		t.Fatalf("second session err = %v, want %v", err, storage.ErrActiveSessionExists)
	}

	session, err := store.GetActiveSession(ctx, "room-1")
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if len(session.Stages) != 4 || session.StageBase() != 4250 {
		t.Fatalf("stages = %+v", session.Stages)
	}

	session.CurrentHP = 2000
	session.Fired50 = true
	session.Events = []storage.ActiveEvent{{TemplateID: "shield_wall", Trigger: storage.TriggerHP50, StartedAt: testNow,
		Duration: 45 * time.Second, MinPlayers: 1, HPPercent: 25, Participants: []string{"p1"}}}
	session.Chain = &storage.ChainState{TaskIDs: []string{"a", "b", "c"}, Next: 1, StartedAt: testNow}
	contributions := []storage.ContributionRecord{
		{SessionID: "gs-1", PlayerID: "p1", Damage: 1500, StageJoined: 1, JoinedAt: testNow, Multiplier: 1, Finalized: true},
		{SessionID: "gs-1", PlayerID: "p2", Damage: 750, StageJoined: 1, JoinedAt: testNow, Multiplier: 0.7, LastMessage: "hello there"},
	}
	if err := store.SaveSession(ctx, session, contributions); err != nil {
		t.Fatalf("save session: %v", err)
	}

	reloaded, err := store.GetActiveSession(ctx, "room-1")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.CurrentHP != 2000 || !reloaded.Fired50 || reloaded.Fired10 {
		t.Fatalf("reloaded = %+v", reloaded)
	}
	if len(reloaded.Events) != 1 || reloaded.Events[0].Duration != 45*time.Second {
		t.Fatalf("events = %+v", reloaded.Events)
	}
	if reloaded.Chain == nil || reloaded.Chain.Next != 1 {
		t.Fatalf("chain = %+v", reloaded.Chain)
	}

	ledger, err := store.ListContributions(ctx, "gs-1")
	if err != nil {
		t.Fatalf("list contributions: %v", err)
	}
	if len(ledger) != 2 || ledger[1].Multiplier != 0.7 || ledger[1].LastMessage != "hello there" {
		t.Fatalf("ledger = %+v", ledger)
	}

	forPlayer, err := store.ActiveSessionsForPlayer(ctx, "p2")
	if err != nil {
		t.Fatalf("sessions for player: %v", err)
	}
	if len(forPlayer) != 1 || forPlayer[0].ID != "gs-1" {
		t.Fatalf("sessions for player = %+v", forPlayer)
	}

	completedAt := testNow.Add(time.Hour)
	reloaded.CompletedAt = &completedAt
	reloaded.Outcome = storage.OutcomeVictory
	if err := store.PutCharacter(ctx, character.New("p1", "One", testNow)); err != nil {
		t.Fatalf("put p1: %v", err)
	}
	p1, err := store.GetCharacter(ctx, "p1")
	if err != nil {
		t.Fatalf("get p1: %v", err)
	}
	p1.Gold = 133
	completion := storage.GroupCompletion{
		Session:       reloaded,
		Contributions: ledger,
		Completions: []storage.CompletionRecord{
			{SessionID: "gs-1", PlayerID: "p1", Damage: 1500, Share: 0.6667, Exp: 53, Gold: 133, CompletedAt: completedAt},
		},
		Characters: []character.Character{p1},
	}
	if err := store.CommitGroupCompletion(ctx, completion); err != nil {
		t.Fatalf("commit completion: %v", err)
	}
	if err := store.CommitGroupCompletion(ctx, completion); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second completion err = %v, want %v", err, storage.ErrNotFound)
	}

	if _, err := store.GetActiveSession(ctx, "room-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("active after completion err = %v, want %v", err, storage.ErrNotFound)
	}
	completions, err := store.ListCompletions(ctx, "gs-1")
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(completions) != 1 || completions[0].Gold != 133 {
		t.Fatalf("completions = %+v", completions)
	}
	gotP1, err := store.GetCharacter(ctx, "p1")
	if err != nil {
		t.Fatalf("get p1: %v", err)
	}
	if gotP1.Gold != 133 {
		t.Fatalf("p1 gold = %d, want 133", gotP1.Gold)
	}
	if err := store.CreateSession(ctx, testSession("gs-2", "room-1")); err != nil {
		t.Fatalf("create session after completion: %v", err)
	}
}

func TestListActiveSessions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for _, room := range []string{"room-a", "room-b"} {
		if err := store.CreateSession(ctx, testSession("gs-"+room, room)); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	sessions, err := store.ListActiveSessions(ctx)
	if err != nil {
		t.Fatalf("list active sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
}

func TestRoomActivity(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	record := func(player string, at time.Time, game bool) {
		t.Helper()
		if err := store.RecordActivity(ctx, storage.RoomActivity{RoomID: "room", PlayerID: player, At: at, GameAction: game}); err != nil {
			t.Fatalf("record activity: %v", err)
		}
	}
	record("p1", testNow.Add(-10*24*time.Hour), false)
	record("p1", testNow.Add(-2*time.Hour), true)
	record("p1", testNow.Add(-time.Hour), true)
	record("p2", testNow.Add(-30*time.Minute), true)
	record("p3", testNow.Add(-time.Minute), false)

	first, err := store.FirstSeen(ctx, "room", "p1")
	if err != nil {
		t.Fatalf("first seen: %v", err)
	}
	if !first.Equal(testNow.Add(-10 * 24 * time.Hour)) {
		t.Fatalf("first seen = %v", first)
	}
	if _, err := store.FirstSeen(ctx, "room", "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("first seen err = %v, want %v", err, storage.ErrNotFound)
	}

	since := testNow.Add(-24 * time.Hour)
	if n, err := store.CountGameActions(ctx, "room", "p1", since); err != nil || n != 2 {
		t.Fatalf("game actions = %d, %v, want 2", n, err)
	}
	if n, err := store.CountActivePlayers(ctx, "room", since, 2); err != nil || n != 1 {
		t.Fatalf("active players = %d, %v, want 1", n, err)
	}
	if n, err := store.CountMessages(ctx, "room", since); err != nil || n != 4 {
		t.Fatalf("messages = %d, %v, want 4", n, err)
	}

	pruned, err := store.PruneActivity(ctx, testNow.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, err := store.FirstSeen(ctx, "room", "p1"); err != nil {
		t.Fatalf("first seen after prune: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("UNIQUE constraint failed: runs.character_id"), false},
	}
	for _, tt := range tests {
		if got := isBusy(tt.err); got != tt.want {
			t.Fatalf("isBusy(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := errors.New("constraint failed: UNIQUE constraint failed: group_sessions.room_id (2067)")
	if !isUniqueViolation(err, "group_sessions.room_id") {
		t.Fatal("expected unique violation")
	}
	if isUniqueViolation(err, "runs.character_id") {
		t.Fatal("unexpected match for other column")
	}
}
