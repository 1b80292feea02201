package combat

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

func TestStartRunGates(t *testing.T) {
	h := newHarness(t)
	h.hero(t, 5, 1)
	ctx := context.Background()

	tests := []struct {
		name    string
		act     int
		number  int
		plus    int
		wantErr apperrors.Code
	}{
		{name: "unknown dungeon", act: 1, number: 9, wantErr: apperrors.CodeNotFound},
		{name: "locked act", act: 2, number: 1, wantErr: apperrors.CodeNotEligible},
		{name: "negative plus", act: 1, number: 1, plus: -1, wantErr: apperrors.CodeInvalidArgument},
		{name: "plus locked", act: 1, number: 1, plus: 1, wantErr: apperrors.CodePlusLevelLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.resolver.StartRun(ctx, "hero", tt.act, tt.number, tt.plus)
			if got := apperrors.CodeOf(err); got != tt.wantErr {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.wantErr, err)
			}
		})
	}

	if _, err := h.resolver.StartRun(ctx, "ghost", 1, 1, 0); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing character err = %v, want %s", err, apperrors.CodeNotFound)
	}
}

func TestStartRunOnePerCharacter(t *testing.T) {
	h := newHarness(t)
	h.hero(t, 5, 1)
	ctx := context.Background()
	if _, err := h.resolver.StartRun(ctx, "hero", 1, 1, 0); err != nil {
		t.Fatalf("start run: %v", err)
	}
	_, err := h.resolver.StartRun(ctx, "hero", 1, 1, 0)
	if !apperrors.HasCode(err, apperrors.CodeRunAlreadyActive) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeRunAlreadyActive)
	}
}

func TestStartRunPlusLevels(t *testing.T) {
	h := newHarness(t)
	char := h.hero(t, 5, 1)
	ctx := context.Background()
	char.PlusUnlocked = true
	if err := h.store.PutCharacter(ctx, char); err != nil {
		t.Fatalf("put character: %v", err)
	}
	if _, err := h.resolver.StartRun(ctx, "hero", 1, 1, 2); !apperrors.HasCode(err, apperrors.CodePlusLevelLocked) {
		t.Fatalf("plus 2 err = %v, want %s", err, apperrors.CodePlusLevelLocked)
	}
	run, err := h.resolver.StartRun(ctx, "hero", 1, 1, 1)
	if err != nil {
		t.Fatalf("start plus run: %v", err)
	}
	if run.Budget != 720 {
		t.Fatalf("budget = %d, want 720", run.Budget)
	}
	if run.Monsters[0].Level != 1+encounter.PlusLevelShift {
		t.Fatalf("level = %d, want %d", run.Monsters[0].Level, 1+encounter.PlusLevelShift)
	}
}

func TestAbandonOnlyTouchesActiveRuns(t *testing.T) {
	h := newHarness(t)
	h.hero(t, 5, 1)
	ctx := context.Background()
	run, err := h.resolver.StartRun(ctx, "hero", 1, 1, 0)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	abandoned, err := h.resolver.Abandon(ctx, "hero")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if abandoned.ID != run.ID || abandoned.Status != storage.RunAbandoned {
		t.Fatalf("abandoned = %s/%s, want %s/abandoned", abandoned.ID, abandoned.Status, run.ID)
	}
	if _, err := h.resolver.Abandon(ctx, "hero"); !apperrors.HasCode(err, apperrors.CodeNoActiveRun) {
		t.Fatalf("second abandon err = %v, want %s", err, apperrors.CodeNoActiveRun)
	}
	if status := h.resolver.Status(ctx, "hero"); status.Active {
		t.Fatal("expected inactive status after abandon")
	}
}

func TestStatusReportsActiveRun(t *testing.T) {
	h := newHarness(t)
	h.hero(t, 5, 1)
	ctx := context.Background()
	run, err := h.resolver.StartRun(ctx, "hero", 1, 1, 0)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	status := h.resolver.Status(ctx, "hero")
	if !status.Active || status.Run.ID != run.ID {
		t.Fatalf("status = %+v, want active run %s", status, run.ID)
	}
	if status.Monster.Position != 1 {
		t.Fatalf("monster position = %d, want 1", status.Monster.Position)
	}
	if status.Character.ID != "hero" {
		t.Fatalf("character = %q, want hero", status.Character.ID)
	}
}

type brokenRunStore struct {
	Store
}

func (brokenRunStore) GetActiveRun(ctx context.Context, characterID string) (storage.RunRecord, error) {
	return storage.RunRecord{}, errors.New("disk I/O error")
}

func TestStatusDegradesOnStorageError(t *testing.T) {
	h := newHarness(t)
	h.hero(t, 5, 1)
	ctx := context.Background()
	if _, err := h.resolver.StartRun(ctx, "hero", 1, 1, 0); err != nil {
		t.Fatalf("start run: %v", err)
	}
	h.resolver.store = brokenRunStore{Store: h.store}

	status := h.resolver.Status(ctx, "hero")
	if status.Active {
		t.Fatal("expected inactive status on storage error")
	}

	_, err := h.resolver.ResolveAction(ctx, h.act(0, 0))
	if !apperrors.HasCode(err, apperrors.CodeTransient) {
		t.Fatalf("resolve err = %v, want %s", err, apperrors.CodeTransient)
	}
}

func TestEquipValidatesSlotAndOwner(t *testing.T) {
	h := newHarness(t)
	h.hero(t, 5, 1)
	ctx := context.Background()
	helm := loot.Item{ID: "helm", OwnerID: "hero", BaseID: "cap", Name: "Cap", Slot: loot.SlotHelmet, Rarity: loot.RarityCommon}
	if err := h.store.PutItem(ctx, helm); err != nil {
		t.Fatalf("put item: %v", err)
	}
	if err := h.resolver.Equip(ctx, "hero", "helm", loot.EquipMainHand); !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("wrong slot err = %v, want %s", err, apperrors.CodeInvalidArgument)
	}
	if err := h.resolver.Equip(ctx, "villain", "helm", loot.EquipHead); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("foreign owner err = %v, want %s", err, apperrors.CodeNotFound)
	}
	if err := h.resolver.Equip(ctx, "hero", "helm", loot.EquipHead); err != nil {
		t.Fatalf("equip: %v", err)
	}
	equipped, err := h.store.ListEquipped(ctx, "hero")
	if err != nil {
		t.Fatalf("list equipped: %v", err)
	}
	if len(equipped) != 2 {
		t.Fatalf("equipped = %d, want weapon and helm", len(equipped))
	}
}

func TestUnlockAct(t *testing.T) {
	tests := []struct {
		name    string
		current int
		run     storage.RunRecord
		want    int
	}{
		{name: "fifth dungeon opens next act", current: 1, run: storage.RunRecord{Act: 1, Dungeon: 5}, want: 2},
		{name: "earlier dungeon", current: 1, run: storage.RunRecord{Act: 1, Dungeon: 4}},
		{name: "plus run", current: 1, run: storage.RunRecord{Act: 1, Dungeon: 5, PlusLevel: 1}},
		{name: "replayed older act", current: 3, run: storage.RunRecord{Act: 1, Dungeon: 5}},
		{name: "final act", current: FinalAct, run: storage.RunRecord{Act: FinalAct, Dungeon: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			char := character.Character{CurrentAct: tt.current}
			if got := unlockAct(&char, tt.run); got != tt.want {
				t.Fatalf("unlockAct = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUnlockPlus(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	char := character.Character{ID: "hero"}
	progress, opened := unlockPlus(&char, storage.RunRecord{Act: FinalAct, Dungeon: ActUnlockDungeon}, now)
	if progress != nil || opened != 1 || !char.PlusUnlocked {
		t.Fatalf("final dungeon: progress=%v opened=%d unlocked=%v, want nil/1/true", progress, opened, char.PlusUnlocked)
	}

	progress, opened = unlockPlus(&char, storage.RunRecord{Act: 2, Dungeon: 3, PlusLevel: 4}, now)
	if progress == nil || progress.BestPlus != 4 || progress.UnlockedPlus != 5 || opened != 5 {
		t.Fatalf("plus run: progress=%+v opened=%d, want best 4 unlocked 5", progress, opened)
	}

	if progress, opened = unlockPlus(&char, storage.RunRecord{Act: 2, Dungeon: 3}, now); progress != nil || opened != 0 {
		t.Fatalf("base run: progress=%v opened=%d, want nothing", progress, opened)
	}
}
