package combat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/platform/id"
	platformotel "github.com/louisbranch/delving.space/internal/platform/otel"
	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/battlelog"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

var tracer = platformotel.Tracer("game/combat")

const (
	// FinalAct is the last act of the campaign.
	FinalAct = 5
	// ActUnlockDungeon is the dungeon number whose base run opens the next act.
	ActUnlockDungeon = 5
)

// Config holds the tunable cadence of solo combat.
type Config struct {
	RateLimitCount  int
	RateLimitWindow time.Duration
	// VictoryDrain is the energy every kill costs on top of the action.
	VictoryDrain int
}

// conflictAttempts bounds how often an action is re-resolved after its
// character row changed underneath it.
const conflictAttempts = 3

// DefaultConfig returns the production cadence: 3 actions per 3 seconds and
// a victory drain of 3 energy.
func DefaultConfig() Config {
	return Config{
		RateLimitCount:  3,
		RateLimitWindow: 3 * time.Second,
		VictoryDrain:    3,
	}
}

// Store is the durable surface the resolver needs.
type Store interface {
	storage.CharacterStore
	storage.InventoryStore
	storage.RunStore
}

// Options wires a Resolver.
type Options struct {
	Config    Config
	Store     Store
	Ephemeral storage.EphemeralStore
	Generator *encounter.Generator
	Roller    *loot.Roller
	Dungeons  []encounter.Dungeon
	DropRules []loot.DropRule
	Emitter   *battlelog.Emitter
	// Source seeds every action; defaults to random.CryptoSource.
	Source random.Source
	Clock  func() time.Time
	NewID  func() (string, error)
}

type dungeonKey struct {
	act    int
	number int
}

// Resolver resolves solo actions and owns the run lifecycle.
type Resolver struct {
	cfg       Config
	store     Store
	ephemeral storage.EphemeralStore
	generator *encounter.Generator
	roller    *loot.Roller
	dungeons  map[dungeonKey]encounter.Dungeon
	drops     map[int]loot.DropRule
	emitter   *battlelog.Emitter
	source    random.Source
	clock     func() time.Time
	newID     func() (string, error)
}

// New builds a Resolver. The store, generator, and roller are required.
func New(opts Options) (*Resolver, error) {
	if opts.Store == nil {
		return nil, errors.New("combat: store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("combat: generator is required")
	}
	if opts.Roller == nil {
		return nil, errors.New("combat: roller is required")
	}
	cfg := opts.Config
	if cfg.RateLimitCount <= 0 || cfg.RateLimitWindow <= 0 {
		defaults := DefaultConfig()
		cfg.RateLimitCount = defaults.RateLimitCount
		cfg.RateLimitWindow = defaults.RateLimitWindow
	}
	if cfg.VictoryDrain < 0 {
		cfg.VictoryDrain = 0
	}
	r := &Resolver{
		cfg:       cfg,
		store:     opts.Store,
		ephemeral: opts.Ephemeral,
		generator: opts.Generator,
		roller:    opts.Roller,
		dungeons:  make(map[dungeonKey]encounter.Dungeon, len(opts.Dungeons)),
		drops:     make(map[int]loot.DropRule, len(opts.DropRules)),
		emitter:   opts.Emitter,
		source:    opts.Source,
		clock:     opts.Clock,
		newID:     opts.NewID,
	}
	for _, d := range opts.Dungeons {
		r.dungeons[dungeonKey{act: d.Act, number: d.Number}] = d
	}
	for _, rule := range opts.DropRules {
		r.drops[rule.Act] = rule
	}
	if r.source == nil {
		r.source = random.CryptoSource
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.newID == nil {
		r.newID = id.NewID
	}
	return r, nil
}

// Dungeon returns the dungeon definition for act and number.
func (r *Resolver) Dungeon(act, number int) (encounter.Dungeon, bool) {
	d, ok := r.dungeons[dungeonKey{act: act, number: number}]
	return d, ok
}

// ResolveAction runs one action of the acting character against the current
// monster of its active run.
func (r *Resolver) ResolveAction(ctx context.Context, a action.Action) (result ActionResult, err error) {
	ctx, span := tracer.Start(ctx, "combat.ResolveAction", trace.WithAttributes(
		attribute.String("character.id", a.ActorID),
		attribute.String("action.kind", a.Kind.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, string(apperrors.CodeOf(err)))
		} else {
			span.SetAttributes(attribute.String("combat.outcome", string(result.Outcome)))
		}
		span.End()
	}()

	if a.ActorID == "" {
		return ActionResult{}, apperrors.New(apperrors.CodeInvalidArgument, "actor id is required")
	}
	now := r.clock().UTC()
	if a.At.IsZero() {
		a.At = now
	}
	if r.rateLimited(ctx, a) {
		return ActionResult{}, apperrors.WithMetadata(apperrors.CodeSpamDetected, "too many actions",
			map[string]string{"Window": r.cfg.RateLimitWindow.String()})
	}

	for attempt := 1; ; attempt++ {
		result, err = r.resolve(ctx, span, a, now)
		if !errors.Is(err, storage.ErrConflict) || attempt >= conflictAttempts {
			return result, err
		}
		log.Printf("character %s changed during action, retrying (attempt %d)", a.ActorID, attempt)
	}
}

// resolve loads the run and character fresh and commits one action against
// them.
func (r *Resolver) resolve(ctx context.Context, span trace.Span, a action.Action, now time.Time) (result ActionResult, err error) {
	run, err := r.store.GetActiveRun(ctx, a.ActorID)
	if errors.Is(err, storage.ErrNotFound) {
		return ActionResult{}, apperrors.New(apperrors.CodeNoActiveRun, "no active run")
	}
	if err != nil {
		return ActionResult{}, apperrors.Transient("load active run", err)
	}
	char, err := r.loadCharacter(ctx, a.ActorID, now)
	if err != nil {
		return ActionResult{}, err
	}
	equipped, err := r.store.ListEquipped(ctx, a.ActorID)
	if err != nil {
		return ActionResult{}, apperrors.Transient("load equipment", err)
	}
	profile := character.EffectiveProfile(char.Stats, equipped)

	monster, ok := run.Current()
	if !ok {
		return ActionResult{}, apperrors.WithMetadata(apperrors.CodeNoActiveRun, "run has no current monster",
			map[string]string{"RunID": run.ID})
	}

	cost := a.Kind.EnergyCost()
	if char.Energy < cost {
		return ActionResult{}, apperrors.WithMetadata(apperrors.CodeInsufficientEnergy, "not enough energy",
			map[string]string{"Energy": strconv.Itoa(char.Energy), "Required": strconv.Itoa(cost)})
	}

	base := ActionResult{
		CharacterID:     char.ID,
		RunID:           run.ID,
		Monster:         monster,
		MonsterHPBefore: monster.CurrentHP,
		HP:              char.HP,
		MaxHP:           char.MaxHP,
		Energy:          char.Energy,
		Level:           char.Level,
		RunStatus:       run.Status,
	}

	length := a.Length()
	if a.Kind.TextLike() && length < profile.MinChars {
		return r.tooSmall(ctx, base, run, a, profile.MinChars, length), nil
	}

	rng, seed, err := r.source()
	if err != nil {
		return ActionResult{}, apperrors.Transient("seed action", err)
	}
	span.SetAttributes(attribute.Int64("combat.seed", seed))

	char.SpendEnergy(cost)
	run.EnergySpent += cost

	dmg := ComputeDamage(rng, profile, a.Kind, length, monster.Family)
	before := monster.CurrentHP
	after := max(0, before-dmg.Total)
	run.TotalDamage += dmg.Total

	result = base
	result.Seed = seed
	result.Damage = dmg
	result.EnergySpent = cost

	payload := map[string]any{
		"seed":        seed,
		"kind":        a.Kind.String(),
		"length":      length,
		"attack_type": string(profile.AttackType),
		"weapon_roll": dmg.WeaponRoll,
		"scaled":      dmg.Scaled,
		"damage":      dmg.Total,
		"crit":        dmg.Crit,
		"multiplier":  dmg.Multiplier,
		"position":    monster.Position,
	}

	if after > 0 {
		monster.CurrentHP = after
		run.Monsters[monster.Position-1] = monster
		evt := storage.BattleEvent{Kind: storage.BattleHit, HPBefore: before, HPAfter: after, Payload: payload}
		if err := r.commit(ctx, char, run, nil, nil, evt, now); err != nil {
			return ActionResult{}, err
		}
		result.Outcome = OutcomeHit
		return finish(result, char, run, monster), nil
	}

	// The guard assumes the retaliation lands: a dodge is rolled only once
	// the kill is allowed.
	retaliation := Retaliation(monster, profile.Stats)
	if char.HP <= retaliation {
		monster.CurrentHP = 1
		run.Monsters[monster.Position-1] = monster
		payload["retaliation"] = retaliation
		payload["required_hp"] = retaliation + 1
		evt := storage.BattleEvent{Kind: storage.BattleKillBlocked, HPBefore: before, HPAfter: 1, Payload: payload}
		if err := r.commit(ctx, char, run, nil, nil, evt, now); err != nil {
			return ActionResult{}, err
		}
		result.Outcome = OutcomeKillBlocked
		result.Code = apperrors.CodeKillBlocked
		result.RequiredHP = retaliation + 1
		result.Retaliation = retaliation
		return finish(result, char, run, monster), nil
	}

	monster.CurrentHP = 0
	run.Monsters[monster.Position-1] = monster
	result.Exp = monster.Exp
	result.Gold = monster.Gold
	char.Gold += monster.Gold
	result.LevelsGained = char.GainExp(monster.Exp)
	run.ExpGained += monster.Exp
	run.GoldGained += monster.Gold

	result.Dodged = random.Chance(rng, character.DodgeChance(profile.Stats))
	if !result.Dodged {
		result.Retaliation = retaliation
		hpBefore := char.HP
		char.TakeDamage(retaliation)
		run.HPLost += hpBefore - char.HP
	}
	char.Drain(r.cfg.VictoryDrain)
	run.EnergySpent += r.cfg.VictoryDrain
	result.EnergySpent += r.cfg.VictoryDrain

	var (
		items    []loot.Item
		progress *storage.EndlessProgress
	)
	switch {
	case !char.Alive():
		run.Status = storage.RunFailed
		run.EndedAt = &now
		result.Outcome = OutcomeRunFailed
	case run.Position >= len(run.Monsters):
		run.Status = storage.RunCompleted
		run.EndedAt = &now
		result.Outcome = OutcomeRunCompleted
		items, err = r.rollDrop(rng, char, run, monster)
		if err != nil {
			return ActionResult{}, err
		}
		result.Loot = items
		result.ActUnlocked = unlockAct(&char, run)
		progress, result.PlusUnlocked = unlockPlus(&char, run, now)
	default:
		run.Position++
		next, _ := run.Current()
		result.Outcome = OutcomeKill
		result.Next = &next
	}

	payload["retaliation"] = result.Retaliation
	payload["dodged"] = result.Dodged
	payload["exp"] = monster.Exp
	payload["gold"] = monster.Gold
	payload["levels_gained"] = result.LevelsGained
	payload["run_status"] = string(run.Status)
	if len(items) > 0 {
		payload["loot"] = items[0].ID
	}
	evt := storage.BattleEvent{Kind: storage.BattleKill, HPBefore: before, HPAfter: 0, Payload: payload}
	if err := r.commit(ctx, char, run, items, progress, evt, now); err != nil {
		return ActionResult{}, err
	}
	return finish(result, char, run, monster), nil
}

func finish(result ActionResult, char character.Character, run storage.RunRecord, monster encounter.Monster) ActionResult {
	result.Monster = monster
	result.HP = char.HP
	result.MaxHP = char.MaxHP
	result.Energy = char.Energy
	result.Level = char.Level
	result.RunStatus = run.Status
	return result
}

// rateLimited records the action in the sliding window. Ephemeral store
// failures permit the action.
func (r *Resolver) rateLimited(ctx context.Context, a action.Action) bool {
	if r.ephemeral == nil {
		return false
	}
	hits, err := r.ephemeral.AddToWindow(ctx, "combat:spam:"+a.ActorID, a.At, r.cfg.RateLimitWindow)
	if err != nil {
		log.Printf("rate limit check failed for %s: %v", a.ActorID, err)
		return false
	}
	return hits > r.cfg.RateLimitCount
}

func (r *Resolver) tooSmall(ctx context.Context, result ActionResult, run storage.RunRecord, a action.Action, required, got int) ActionResult {
	result.Outcome = OutcomeTooSmall
	result.Code = apperrors.CodeActionTooSmall
	result.RequiredChars = required
	result.GotChars = got
	err := r.emitter.Emit(ctx, storage.BattleEvent{
		Kind:        storage.BattleTooSmall,
		RunID:       run.ID,
		CharacterID: a.ActorID,
		HPBefore:    result.MonsterHPBefore,
		HPAfter:     result.MonsterHPBefore,
		Payload: map[string]any{
			"kind":           a.Kind.String(),
			"required_chars": required,
			"got_chars":      got,
		},
	})
	if err != nil {
		log.Printf("battle log too-small entry for run %s: %v", run.ID, err)
	}
	return result
}

func (r *Resolver) commit(ctx context.Context, char character.Character, run storage.RunRecord, items []loot.Item, progress *storage.EndlessProgress, evt storage.BattleEvent, now time.Time) error {
	evt.RunID = run.ID
	evt.CharacterID = char.ID
	evt.Timestamp = now
	stamped, err := r.emitter.Stamp(evt)
	if err != nil {
		return apperrors.Transient("stamp battle event", err)
	}
	err = r.store.CommitRunAction(ctx, storage.RunCommit{
		Character: char,
		Run:       run,
		Items:     items,
		Progress:  progress,
		Event:     &stamped,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNoActiveRun, "run is no longer active", err)
	}
	if errors.Is(err, storage.ErrConflict) {
		return err
	}
	if err != nil {
		return apperrors.Transient("commit run action", err)
	}
	return nil
}

func (r *Resolver) loadCharacter(ctx context.Context, characterID string, now time.Time) (character.Character, error) {
	char, err := r.store.GetCharacter(ctx, characterID)
	if errors.Is(err, storage.ErrNotFound) {
		return character.Character{}, apperrors.WithMetadata(apperrors.CodeNotFound, "character not found",
			map[string]string{"CharacterID": characterID})
	}
	if err != nil {
		return character.Character{}, apperrors.Transient("load character", err)
	}
	char.Regenerate(now)
	return char, nil
}

// rollDrop rolls the act's drop rule for the final kill of a run.
func (r *Resolver) rollDrop(rng *rand.Rand, char character.Character, run storage.RunRecord, monster encounter.Monster) ([]loot.Item, error) {
	rule, ok := r.drops[run.Act]
	if !ok {
		return nil, nil
	}
	rarity, drop := rule.RollRarity(rng, monster.Boss)
	if !drop {
		return nil, nil
	}
	item, err := r.roller.Roll(rng, rarity, loot.DropLevel(rng, char.Level), loot.TierCapForAct(run.Act))
	if err != nil {
		return nil, err
	}
	itemID, err := r.newID()
	if err != nil {
		return nil, apperrors.Transient("generate item id", err)
	}
	item.ID = itemID
	item.OwnerID = char.ID
	return []loot.Item{item}, nil
}

// unlockAct opens the next act when a base run of the unlock dungeon of the
// character's current act completes.
func unlockAct(char *character.Character, run storage.RunRecord) int {
	if run.PlusLevel > 0 || run.Dungeon < ActUnlockDungeon || char.CurrentAct != run.Act || char.CurrentAct >= FinalAct {
		return 0
	}
	char.CurrentAct++
	return char.CurrentAct
}

// unlockPlus applies endless progression. The final base dungeon opens +1
// everywhere; clearing +N opens +N+1 for that dungeon.
func unlockPlus(char *character.Character, run storage.RunRecord, now time.Time) (*storage.EndlessProgress, int) {
	if run.PlusLevel <= 0 {
		if run.Act == FinalAct && run.Dungeon == ActUnlockDungeon && !char.PlusUnlocked {
			char.PlusUnlocked = true
			return nil, 1
		}
		return nil, 0
	}
	return &storage.EndlessProgress{
		CharacterID:  char.ID,
		Act:          run.Act,
		Dungeon:      run.Dungeon,
		UnlockedPlus: run.PlusLevel + 1,
		BestPlus:     run.PlusLevel,
		UpdatedAt:    now,
	}, run.PlusLevel + 1
}

func dungeonLabel(act, number int) string {
	return fmt.Sprintf("%d-%d", act, number)
}
