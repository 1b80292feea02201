package group

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/battlelog"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
	"github.com/louisbranch/delving.space/internal/services/game/storage/ephemeral"
	"github.com/louisbranch/delving.space/internal/services/game/storage/sqlite"
)

const testRoom = "room-1"

var testStart = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testTemplates() []Template {
	return []Template{{
		ID:             "crypt",
		Name:           "Forgotten Crypt",
		HPMultiplier:   1,
		UniqueEventKey: "crypt_lord",
		Stages:         []StageDef{{Name: "Bone Warden", Emoji: "💀"}},
	}}
}

func testEvents() []EventTemplate {
	return []EventTemplate{
		{
			ID: "rally", Trigger: storage.TriggerHP50, Name: "Rally",
			Matcher:    Matcher{Kinds: []action.Kind{action.KindSticker}},
			MinPlayers: 2, Duration: time.Minute, HPPercent: 25, Weight: 1,
		},
		{
			ID: "last_stand", Trigger: storage.TriggerHP10, Name: "Last Stand",
			Matcher:    Matcher{Symbols: []string{"🛡"}},
			MinPlayers: 1, Duration: time.Minute, Weight: 1,
		},
		{
			ID: "lord_wrath", Trigger: storage.TriggerBossUnique, Name: "Wrath of the Lord",
			MinPlayers: 1, Duration: 2 * time.Minute, Weight: 1, DungeonEventKey: "crypt_lord",
		},
	}
}

func testChains() []ChainTask {
	return []ChainTask{
		{ID: "photo", Description: "Post a photo", Matcher: Matcher{Kinds: []action.Kind{action.KindPhoto}}},
		{ID: "gif", Description: "Post a GIF", Matcher: Matcher{Kinds: []action.Kind{action.KindGIF}}},
		{ID: "voice", Description: "Record a voice note", Matcher: Matcher{Voice: true, MinDuration: 3 * time.Second, MaxDuration: time.Minute}},
	}
}

type harness struct {
	store *sqlite.Store
	eph   *ephemeral.Store
	clock *testClock
	coord *Coordinator
	msg   int
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	clock := &testClock{now: testStart}
	eph := ephemeral.New(ephemeral.WithClock(clock.Now))

	cfg := DefaultConfig()
	cfg.StageBaseHP = [StageCount]int{600, 600, 600, 600}
	cfg.ActivityWindow = 10 * time.Minute
	cfg.MinMessagesPerMinute = 1
	// Fixed weapon rolls map straight to damage unless a test opts in.
	cfg.RampMultiplier = 1

	var seq int
	var seqMu sync.Mutex
	opts := Options{
		Config:    cfg,
		Store:     store,
		Ephemeral: eph,
		Templates: testTemplates(),
		Events:    testEvents(),
		Chains:    testChains(),
		Emitter:   battlelog.NewEmitter(store),
		Source:    random.FixedSource(7),
		Clock:     clock.Now,
		NewID: func() (string, error) {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return "gs-" + strconv.Itoa(seq), nil
		},
	}
	for _, fn := range configure {
		fn(&opts)
	}
	coord, err := New(opts)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return &harness{store: store, eph: eph, clock: clock, coord: coord}
}

// player stores a character without crit or stat scaling wielding a weapon
// that always rolls damage.
func (h *harness) player(t *testing.T, id string, damage int) {
	t.Helper()
	ctx := context.Background()
	char := character.New(id, id, h.clock.Now())
	char.Stats = character.StatBlock{}
	if err := h.store.PutCharacter(ctx, char); err != nil {
		t.Fatalf("put character %s: %v", id, err)
	}
	weapon := loot.Item{
		ID: id + "-blade", OwnerID: id, BaseID: "club", Name: "Blade",
		Slot: loot.SlotWeapon1H, AttackType: loot.AttackMelee, Rarity: loot.RarityCommon,
		Tier: 1, Level: 1, TotalLevel: 1, DamageMin: damage, DamageMax: damage, AttackSpeed: 1,
	}
	if err := h.store.PutItem(ctx, weapon); err != nil {
		t.Fatalf("put weapon %s: %v", id, err)
	}
	if err := h.store.EquipItem(ctx, id, weapon.ID, loot.EquipMainHand); err != nil {
		t.Fatalf("equip weapon %s: %v", id, err)
	}
}

func (h *harness) start(t *testing.T) storage.SessionRecord {
	t.Helper()
	session, err := h.coord.StartDebug(context.Background(), testRoom, "alice", "crypt")
	if err != nil {
		t.Fatalf("start debug: %v", err)
	}
	return session
}

// say is a unique text message from player, 3s after the previous one.
// TextLength 1 keeps the size factor from changing the weapon roll.
func (h *harness) say(player string) action.Action {
	h.clock.Advance(3 * time.Second)
	h.msg++
	return action.Action{
		ActorID:    player,
		RoomID:     testRoom,
		Kind:       action.KindText,
		Text:       "strike number " + strconv.Itoa(h.msg),
		TextLength: 1,
		At:         h.clock.Now(),
	}
}

func (h *harness) handle(t *testing.T, a action.Action) MessageResult {
	t.Helper()
	res, err := h.coord.HandleMessage(context.Background(), a)
	if err != nil {
		t.Fatalf("handle message from %s: %v", a.ActorID, err)
	}
	return res
}

func (h *harness) session(t *testing.T) storage.SessionRecord {
	t.Helper()
	session, err := h.store.GetActiveSession(context.Background(), testRoom)
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	return session
}

// eligible records enough room history for alice to start a session.
func (h *harness) eligible(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	now := h.clock.Now()
	record := func(player string, at time.Time, game bool) {
		t.Helper()
		err := h.store.RecordActivity(ctx, storage.RoomActivity{RoomID: testRoom, PlayerID: player, At: at, GameAction: game})
		if err != nil {
			t.Fatalf("record activity: %v", err)
		}
	}
	record("alice", now.Add(-96*time.Hour), false)
	for _, p := range []string{"alice", "bob", "carol"} {
		record(p, now.Add(-time.Hour), true)
		record(p, now.Add(-50*time.Minute), true)
	}
	for i := range 10 {
		record("dave", now.Add(-time.Duration(i+1)*30*time.Second), false)
	}
}

func countKind(events []storage.BattleEvent, kind storage.BattleEventKind) int {
	n := 0
	for _, evt := range events {
		if evt.Kind == kind {
			n++
		}
	}
	return n
}
