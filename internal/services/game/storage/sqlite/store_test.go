package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if _, err := s.GetCharacter(context.Background(), "x"); err == nil {
		t.Fatal("expected error from nil store")
	}
}

func TestCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.PutCharacter(ctx, character.New("c", "A", testNow)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	c := character.New("char-1", "Aria", testNow)
	c.Gold = 42
	c.PlusUnlocked = true
	c.Stats.Agility = 17
	if err := store.PutCharacter(ctx, c); err != nil {
		t.Fatalf("put character: %v", err)
	}
	got, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Gold != 42 || !got.PlusUnlocked || got.Stats.Agility != 17 {
		t.Fatalf("character = %+v", got)
	}
	if !got.EnergyUpdatedAt.Equal(testNow) {
		t.Fatalf("energy updated at = %v, want %v", got.EnergyUpdatedAt, testNow)
	}

	if _, err := store.GetCharacter(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing err = %v, want %v", err, storage.ErrNotFound)
	}
}

func testItem(id, owner string) loot.Item {
	return loot.Item{
		ID: id, OwnerID: owner, BaseID: "short_sword", Name: "Sharp Short Sword",
		Slot: loot.SlotWeapon1H, WeaponType: "sword", AttackType: loot.AttackMelee,
		Rarity: loot.RarityRare, Tier: 1, Level: 3, TotalLevel: 5, DamageMin: 4, DamageMax: 8, AttackSpeed: 3,
		Value: 150,
		Affixes: []loot.Affix{
			{Name: "Sharp", FamilyID: "sharp", Kind: loot.AffixPrefix, Effect: loot.EffectDamageFlat, Value: 2, Tier: 1, ExclusiveGroup: "damage", LevelDelta: 1},
			{Name: "of Echoes", FamilyID: "echo", Kind: loot.AffixSuffix, Effect: loot.EffectKindPercent, TargetKind: action.KindVoice, Value: 10, Percent: true, Tier: 1, LevelDelta: 1},
			{Name: "of Bane", FamilyID: "bane", Kind: loot.AffixSuffix, Effect: loot.EffectFamilyFlat, TargetFamily: "undead", Value: 3, Tier: 1},
		},
	}
}

func TestItemRoundTripAndEquip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutItem(ctx, testItem("item-1", "char-1")); err != nil {
		t.Fatalf("put item: %v", err)
	}
	if err := store.PutItem(ctx, testItem("item-2", "char-1")); err != nil {
		t.Fatalf("put item: %v", err)
	}

	got, err := store.GetItem(ctx, "item-1")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if len(got.Affixes) != 3 {
		t.Fatalf("affixes = %d, want 3", len(got.Affixes))
	}
	if got.Affixes[1].TargetKind != action.KindVoice || !got.Affixes[1].Percent {
		t.Fatalf("affix = %+v", got.Affixes[1])
	}
	if got.Affixes[2].TargetFamily != "undead" {
		t.Fatalf("affix family = %q, want undead", got.Affixes[2].TargetFamily)
	}

	if err := store.EquipItem(ctx, "char-1", "item-1", loot.EquipMainHand); err != nil {
		t.Fatalf("equip item-1: %v", err)
	}
	if err := store.EquipItem(ctx, "char-1", "item-2", loot.EquipMainHand); err != nil {
		t.Fatalf("equip item-2: %v", err)
	}
	equipped, err := store.ListEquipped(ctx, "char-1")
	if err != nil {
		t.Fatalf("list equipped: %v", err)
	}
	if len(equipped) != 1 || equipped[0].ID != "item-2" {
		t.Fatalf("equipped = %+v, want only item-2", equipped)
	}

	if err := store.EquipItem(ctx, "char-2", "item-1", loot.EquipOffHand); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("foreign equip err = %v, want %v", err, storage.ErrNotFound)
	}

	if err := store.DeleteItem(ctx, "char-1", "item-1"); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	items, err := store.ListItems(ctx, "char-1")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func testRun(id, characterID string) storage.RunRecord {
	monsters := []encounter.Monster{
		{Position: 1, TemplateID: "rat", Name: "Rat", Family: "beast", Level: 1, Difficulty: 60, MaxHP: 30, CurrentHP: 30, Damage: 3, Exp: 10, Gold: 5},
		{Position: 2, TemplateID: "ogre", Name: "[Boss] Ogre", Family: "giant", Boss: true, Level: 3, Difficulty: 90, MaxHP: 120, CurrentHP: 120, Damage: 9, Exp: 40, Gold: 30},
	}
	return storage.RunRecord{
		ID: id, CharacterID: characterID, Act: 1, Dungeon: 1, LocationType: "cave", Seed: 99, Budget: 150,
		Monsters: monsters, Position: 1, Status: storage.RunActive, StartedAt: testNow,
	}
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.CreateRun(ctx, testRun("run-1", "char-1")); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.CreateRun(ctx, testRun("run-2", "char-1")); !errors.Is(err, storage.ErrActiveRunExists) {
		t.Fatalf("second run err = %v, want %v", err, storage.ErrActiveRunExists)
	}

	active, err := store.GetActiveRun(ctx, "char-1")
	if err != nil {
		t.Fatalf("get active run: %v", err)
	}
	if len(active.Monsters) != 2 || !active.Monsters[1].Boss {
		t.Fatalf("monsters = %+v", active.Monsters)
	}
	if active.Seed != 99 {
		t.Fatalf("seed = %d, want 99", active.Seed)
	}

	abandoned, err := store.AbandonRun(ctx, "char-1", testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("abandon run: %v", err)
	}
	if abandoned.Status != storage.RunAbandoned || abandoned.EndedAt == nil {
		t.Fatalf("abandoned = %+v", abandoned)
	}
	if _, err := store.AbandonRun(ctx, "char-1", testNow); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second abandon err = %v, want %v", err, storage.ErrNotFound)
	}
	if err := store.CreateRun(ctx, testRun("run-2", "char-1")); err != nil {
		t.Fatalf("create run after abandon: %v", err)
	}
}

func TestCommitRunActionIsAtomic(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutCharacter(ctx, character.New("char-1", "Aria", testNow)); err != nil {
		t.Fatalf("put character: %v", err)
	}
	c, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	run := testRun("run-1", "char-1")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	c.Gold = 35
	run.Monsters[0].CurrentHP = 0
	run.Monsters[1].CurrentHP = 0
	run.Position = 2
	run.Status = storage.RunCompleted
	ended := testNow.Add(time.Minute)
	run.EndedAt = &ended
	commit := storage.RunCommit{
		Character: c,
		Run:       run,
		Items:     []loot.Item{testItem("loot-1", "char-1")},
		Progress:  &storage.EndlessProgress{CharacterID: "char-1", Act: 1, Dungeon: 1, UnlockedPlus: 1, UpdatedAt: ended},
		Event:     &storage.BattleEvent{ID: "evt-1", Kind: storage.BattleKill, RunID: "run-1", HPBefore: 10, HPAfter: 0, Timestamp: ended},
	}
	if err := store.CommitRunAction(ctx, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != storage.RunCompleted || got.Monsters[1].CurrentHP != 0 {
		t.Fatalf("run = %+v", got)
	}
	if _, err := store.GetItem(ctx, "loot-1"); err != nil {
		t.Fatalf("get loot: %v", err)
	}
	progress, err := store.GetEndlessProgress(ctx, "char-1", 1, 1)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.UnlockedPlus != 1 {
		t.Fatalf("unlocked plus = %d, want 1", progress.UnlockedPlus)
	}

	// The run is no longer active: a replayed commit must fail as a whole.
	commit.Items = []loot.Item{testItem("loot-2", "char-1")}
	commit.Event = nil
	if err := store.CommitRunAction(ctx, commit); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("replayed commit err = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.GetItem(ctx, "loot-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("loot-2 err = %v, want %v", err, storage.ErrNotFound)
	}

	events, err := store.ListBattleEvents(ctx, "run-1", 10)
	if err != nil {
		t.Fatalf("list battle events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != storage.BattleKill {
		t.Fatalf("events = %+v", events)
	}
}

func TestCommitRunActionRejectsStaleCharacter(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutCharacter(ctx, character.New("char-1", "Aria", testNow)); err != nil {
		t.Fatalf("put character: %v", err)
	}
	stale, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if err := store.CreateRun(ctx, testRun("run-1", "char-1")); err != nil {
		t.Fatalf("create run: %v", err)
	}

	fresh := stale
	fresh.Gold = 1000
	if err := store.PutCharacter(ctx, fresh); err != nil {
		t.Fatalf("put fresh character: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	stale.Gold = 10
	run.TotalDamage = 7
	err = store.CommitRunAction(ctx, storage.RunCommit{Character: stale, Run: run})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("stale commit err = %v, want %v", err, storage.ErrConflict)
	}

	got, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Gold != 1000 || got.Version != stale.Version+1 {
		t.Fatalf("character gold %d version %d, want 1000 at %d", got.Gold, got.Version, stale.Version+1)
	}
	reloaded, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("reload run: %v", err)
	}
	if reloaded.TotalDamage != 0 {
		t.Fatalf("run damage = %d, want rolled back to 0", reloaded.TotalDamage)
	}
}

func TestEndlessProgressNeverDecreases(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := putEndlessProgress(ctx, store.sqlDB, storage.EndlessProgress{CharacterID: "c", Act: 5, Dungeon: 5, UnlockedPlus: 3, BestPlus: 2}); err != nil {
		t.Fatalf("put progress: %v", err)
	}
	if err := putEndlessProgress(ctx, store.sqlDB, storage.EndlessProgress{CharacterID: "c", Act: 5, Dungeon: 5, UnlockedPlus: 1, BestPlus: 0}); err != nil {
		t.Fatalf("put progress: %v", err)
	}
	got, err := store.GetEndlessProgress(ctx, "c", 5, 5)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.UnlockedPlus != 3 || got.BestPlus != 2 {
		t.Fatalf("progress = %+v, want unlocked 3 best 2", got)
	}

	empty, err := store.GetEndlessProgress(ctx, "c", 1, 1)
	if err != nil {
		t.Fatalf("get empty progress: %v", err)
	}
	if empty.UnlockedPlus != 0 {
		t.Fatalf("empty unlocked = %d, want 0", empty.UnlockedPlus)
	}
}
