package combat

import (
	"context"
	"errors"
	"log"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// CreateCharacter stores a new level 1 character. An existing character is
// returned unchanged.
func (r *Resolver) CreateCharacter(ctx context.Context, characterID, name string) (character.Character, error) {
	if characterID == "" {
		return character.Character{}, apperrors.New(apperrors.CodeInvalidArgument, "character id is required")
	}
	now := r.clock().UTC()
	existing, err := r.store.GetCharacter(ctx, characterID)
	switch {
	case err == nil:
		existing.Regenerate(now)
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return character.Character{}, apperrors.Transient("load character", err)
	}
	char := character.New(characterID, name, now)
	if err := r.store.PutCharacter(ctx, char); err != nil {
		return character.Character{}, apperrors.Transient("create character", err)
	}
	return char, nil
}

// StartRun generates and stores a new run of dungeon number in act at the
// given plus level.
func (r *Resolver) StartRun(ctx context.Context, characterID string, act, number, plus int) (storage.RunRecord, error) {
	ctx, span := tracer.Start(ctx, "combat.StartRun", trace.WithAttributes(
		attribute.String("character.id", characterID),
		attribute.String("dungeon", dungeonLabel(act, number)),
		attribute.Int("dungeon.plus", plus),
	))
	defer span.End()

	dungeon, ok := r.Dungeon(act, number)
	if !ok {
		return storage.RunRecord{}, apperrors.WithMetadata(apperrors.CodeNotFound, "dungeon not found",
			map[string]string{"Dungeon": dungeonLabel(act, number)})
	}
	if plus < 0 {
		return storage.RunRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "plus level must not be negative")
	}
	now := r.clock().UTC()
	char, err := r.loadCharacter(ctx, characterID, now)
	if err != nil {
		return storage.RunRecord{}, err
	}
	if act > char.CurrentAct {
		return storage.RunRecord{}, apperrors.WithMetadata(apperrors.CodeNotEligible, "act is locked",
			map[string]string{"Act": strconv.Itoa(act), "CurrentAct": strconv.Itoa(char.CurrentAct)})
	}
	if plus > 0 {
		if err := r.checkPlus(ctx, char, act, number, plus); err != nil {
			return storage.RunRecord{}, err
		}
	}

	_, seed, err := r.source()
	if err != nil {
		return storage.RunRecord{}, apperrors.Transient("seed run", err)
	}
	budget := dungeon.BudgetFor(plus)
	loc := encounter.Location{LocationType: dungeon.LocationType, Act: act, Mode: encounter.ModeSolo, PlusLevel: plus}
	monsters, err := r.generator.Generate(loc, budget, encounter.Range{Min: dungeon.CountMin, Max: dungeon.CountMax}, seed)
	if err != nil {
		return storage.RunRecord{}, err
	}
	runID, err := r.newID()
	if err != nil {
		return storage.RunRecord{}, apperrors.Transient("generate run id", err)
	}
	run := storage.RunRecord{
		ID:           runID,
		CharacterID:  characterID,
		Act:          act,
		Dungeon:      number,
		LocationType: dungeon.LocationType,
		Seed:         seed,
		PlusLevel:    plus,
		Budget:       budget,
		Monsters:     monsters,
		Position:     1,
		Status:       storage.RunActive,
		StartedAt:    now,
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		if apperrors.HasCode(err, apperrors.CodeRunAlreadyActive) {
			return storage.RunRecord{}, err
		}
		return storage.RunRecord{}, apperrors.Transient("create run", err)
	}
	span.SetAttributes(attribute.String("run.id", runID), attribute.Int64("run.seed", seed))

	if err := r.emitter.Emit(ctx, storage.BattleEvent{
		Kind:        storage.BattleRunStarted,
		RunID:       run.ID,
		CharacterID: characterID,
		Timestamp:   now,
		Payload: map[string]any{
			"seed":     seed,
			"budget":   budget,
			"monsters": len(monsters),
			"plus":     plus,
		},
	}); err != nil {
		log.Printf("battle log run start for %s: %v", run.ID, err)
	}
	return run, nil
}

func (r *Resolver) checkPlus(ctx context.Context, char character.Character, act, number, plus int) error {
	if !char.PlusUnlocked {
		return apperrors.WithMetadata(apperrors.CodePlusLevelLocked, "plus levels are locked",
			map[string]string{"Plus": strconv.Itoa(plus)})
	}
	progress, err := r.store.GetEndlessProgress(ctx, char.ID, act, number)
	if err != nil {
		return apperrors.Transient("load endless progress", err)
	}
	allowed := max(1, progress.UnlockedPlus)
	if plus > allowed {
		return apperrors.WithMetadata(apperrors.CodePlusLevelLocked, "plus level is locked",
			map[string]string{"Plus": strconv.Itoa(plus), "Unlocked": strconv.Itoa(allowed)})
	}
	return nil
}

// Abandon ends the character's active run. Completed and failed runs are
// never changed.
func (r *Resolver) Abandon(ctx context.Context, characterID string) (storage.RunRecord, error) {
	now := r.clock().UTC()
	run, err := r.store.AbandonRun(ctx, characterID, now)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.RunRecord{}, apperrors.New(apperrors.CodeNoActiveRun, "no active run")
	}
	if err != nil {
		return storage.RunRecord{}, apperrors.Transient("abandon run", err)
	}
	if err := r.emitter.Emit(ctx, storage.BattleEvent{
		Kind:        storage.BattleRunEnded,
		RunID:       run.ID,
		CharacterID: characterID,
		Timestamp:   now,
		Payload:     map[string]any{"status": string(run.Status)},
	}); err != nil {
		log.Printf("battle log run end for %s: %v", run.ID, err)
	}
	return run, nil
}

// Status reports the character's active run. Storage failures are logged and
// read as no active run.
func (r *Resolver) Status(ctx context.Context, characterID string) Status {
	now := r.clock().UTC()
	var status Status
	char, err := r.loadCharacter(ctx, characterID, now)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			log.Printf("status character %s: %v", characterID, err)
		}
		return status
	}
	status.Character = char
	run, err := r.store.GetActiveRun(ctx, characterID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("status run for %s: %v", characterID, err)
		}
		return status
	}
	monster, ok := run.Current()
	if !ok {
		return status
	}
	status.Active = true
	status.Run = run
	status.Monster = monster
	return status
}

// Equip moves an owned item into slot.
func (r *Resolver) Equip(ctx context.Context, characterID, itemID string, slot loot.EquipSlot) error {
	item, err := r.store.GetItem(ctx, itemID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "item not found", map[string]string{"ItemID": itemID})
	}
	if err != nil {
		return apperrors.Transient("load item", err)
	}
	if item.OwnerID != characterID {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "item not found", map[string]string{"ItemID": itemID})
	}
	if !item.Slot.Fits(slot) {
		return apperrors.WithMetadata(apperrors.CodeInvalidArgument, "item does not fit slot",
			map[string]string{"Slot": string(slot), "ItemSlot": string(item.Slot)})
	}
	if err := r.store.EquipItem(ctx, characterID, itemID, slot); err != nil {
		return apperrors.Transient("equip item", err)
	}
	return nil
}
