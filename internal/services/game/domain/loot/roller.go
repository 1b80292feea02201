package loot

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/random"
)

// valuePerLevel converts total level and rarity into currency value.
const valuePerLevel = 10

// primaryStatDeltas maps a rolled primary-stat value to its level delta: the
// largest row whose threshold the value reaches.
var primaryStatDeltas = []struct {
	threshold int
	delta     int
}{
	{1, 1},
	{3, 2},
	{5, 3},
	{8, 4},
	{12, 5},
	{17, 6},
	{23, 7},
	{30, 8},
}

// PrimaryStatLevelDelta returns the level delta of a primary-stat affix.
func PrimaryStatLevelDelta(value int) int {
	delta := 0
	for _, row := range primaryStatDeltas {
		if value >= row.threshold {
			delta = row.delta
		}
	}
	return delta
}

// InterpolatedLevelDelta places value within the tier's value range and maps
// it linearly onto the tier's level-delta range.
func InterpolatedLevelDelta(t AffixTier, value int) int {
	if t.ValueMax <= t.ValueMin {
		return t.LevelDeltaMax
	}
	frac := float64(value-t.ValueMin) / float64(t.ValueMax-t.ValueMin)
	frac = math.Max(0, math.Min(1, frac))
	return t.LevelDeltaMin + int(math.Round(frac*float64(t.LevelDeltaMax-t.LevelDeltaMin)))
}

// Roller rolls items from immutable tables and is safe for concurrent use.
type Roller struct {
	bases    []ItemBase
	families []AffixFamily
}

// NewRoller validates and indexes the item tables.
func NewRoller(bases []ItemBase, families []AffixFamily) (*Roller, error) {
	for _, f := range families {
		if f.Kind != AffixPrefix && f.Kind != AffixSuffix {
			return nil, fmt.Errorf("affix family %s: unknown kind %q", f.ID, f.Kind)
		}
		for _, t := range f.Tiers {
			if t.ValueMax < t.ValueMin {
				return nil, fmt.Errorf("affix family %s tier %d: value range inverted", f.ID, t.Tier)
			}
			if t.LevelDeltaMax < t.LevelDeltaMin {
				return nil, fmt.Errorf("affix family %s tier %d: level delta range inverted", f.ID, t.Tier)
			}
		}
	}
	for _, b := range bases {
		if b.DamageMax < b.DamageMin {
			return nil, fmt.Errorf("item base %s: damage range inverted", b.ID)
		}
	}
	return &Roller{
		bases:    append([]ItemBase(nil), bases...),
		families: append([]AffixFamily(nil), families...),
	}, nil
}

// Roll generates an item of rarity for targetLevel, limited to tiers up to
// tierCap.
func (r *Roller) Roll(rng *rand.Rand, rarity Rarity, targetLevel, tierCap int) (Item, error) {
	if !rarity.Valid() {
		return Item{}, apperrors.New(apperrors.CodeInvalidArgument, "unknown rarity "+strconv.Itoa(int(rarity)))
	}
	if targetLevel < 1 {
		targetLevel = 1
	}
	tierCap = clamp(tierCap, 1, maxTier)

	base, ok := r.pickBase(rng, targetLevel, tierCap)
	if !ok {
		return Item{}, apperrors.WithMetadata(apperrors.CodeNoEligibleBase, "no item base fits level and tier cap",
			map[string]string{"Level": strconv.Itoa(targetLevel), "TierCap": strconv.Itoa(tierCap)})
	}

	lo, hi := rarity.AffixCount()
	count := random.IntRange(rng, lo, hi)
	affixes := r.rollAffixes(rng, base, targetLevel, tierCap, count)

	item := Item{
		BaseID:        base.ID,
		Slot:          base.Slot,
		WeaponType:    base.WeaponType,
		AttackType:    base.AttackType,
		Rarity:        rarity,
		Tier:          TierFromLevel(targetLevel),
		Level:         targetLevel,
		AttackSpeed:   base.AttackSpeed,
		BaseStat:      base.BaseStat,
		BaseStatValue: base.BaseStatValue,
		Affixes:       affixes,
	}
	item.Name = itemName(base, affixes)

	total := base.LevelMin
	for _, a := range affixes {
		total += a.LevelDelta
	}
	item.TotalLevel = total
	item.Value = total * int(rarity) * valuePerLevel

	if base.Slot.IsWeapon() {
		item.DamageMin, item.DamageMax = weaponDamage(base, targetLevel, affixes)
	}
	return item, nil
}

func (r *Roller) pickBase(rng *rand.Rand, targetLevel, tierCap int) (ItemBase, bool) {
	eligible := make([]ItemBase, 0, len(r.bases))
	for _, b := range r.bases {
		if b.Tier() <= tierCap && b.LevelMin <= targetLevel {
			eligible = append(eligible, b)
		}
	}
	return random.Weighted(rng, eligible, func(b ItemBase) float64 {
		return 1 / float64(1+targetLevel-b.LevelMin)
	})
}

type affixCandidate struct {
	family AffixFamily
	tier   AffixTier
	weight float64
}

// candidates lists the (family, tier) pairs eligible for base at level.
func (r *Roller) candidates(base ItemBase, level, tierCap int) []affixCandidate {
	var out []affixCandidate
	for _, f := range r.families {
		if !f.Applies.Allows(base) {
			continue
		}
		fw := f.Weight
		if fw <= 0 {
			fw = 1
		}
		for _, t := range f.Tiers {
			if t.Tier > tierCap || !t.Covers(level) {
				continue
			}
			tw := t.WeightMult
			if tw <= 0 {
				tw = 1
			}
			out = append(out, affixCandidate{family: f, tier: t, weight: fw * tw})
		}
	}
	return out
}

func (r *Roller) rollAffixes(rng *rand.Rand, base ItemBase, level, tierCap, count int) []Affix {
	if count <= 0 {
		return nil
	}
	pool := r.candidates(base, level, tierCap)
	usedFamilies := map[string]bool{}
	usedGroups := map[string]bool{}
	available := func(c affixCandidate) bool {
		if usedFamilies[c.family.ID] {
			return false
		}
		return c.family.ExclusiveGroup == "" || !usedGroups[c.family.ExclusiveGroup]
	}
	weight := func(c affixCandidate) float64 {
		if !available(c) {
			return 0
		}
		return c.weight
	}
	take := func(c affixCandidate) Affix {
		usedFamilies[c.family.ID] = true
		if c.family.ExclusiveGroup != "" {
			usedGroups[c.family.ExclusiveGroup] = true
		}
		return rollAffix(rng, c.family, c.tier)
	}

	affixes := make([]Affix, 0, count)
	var prefixes []affixCandidate
	for _, c := range pool {
		if c.family.Kind == AffixPrefix {
			prefixes = append(prefixes, c)
		}
	}
	if c, ok := random.Weighted(rng, prefixes, weight); ok {
		affixes = append(affixes, take(c))
	}
	for len(affixes) < count {
		c, ok := random.Weighted(rng, pool, weight)
		if !ok {
			break
		}
		affixes = append(affixes, take(c))
	}
	return affixes
}

func rollAffix(rng *rand.Rand, f AffixFamily, t AffixTier) Affix {
	value := random.IntRange(rng, t.ValueMin, t.ValueMax)
	delta := InterpolatedLevelDelta(t, value)
	if f.Effect.PrimaryStat() {
		delta = PrimaryStatLevelDelta(value)
	}
	return Affix{
		Name:           f.Name,
		FamilyID:       f.ID,
		Kind:           f.Kind,
		Effect:         f.Effect,
		TargetKind:     f.TargetKind,
		TargetFamily:   f.TargetFamily,
		Value:          value,
		Percent:        f.Percent,
		Tier:           t.Tier,
		ExclusiveGroup: f.ExclusiveGroup,
		LevelDelta:     delta,
	}
}

// weaponDamage scales the base damage range by tier and by the position of
// level inside its 5-level band, then folds in flat and percent damage
// affixes.
func weaponDamage(base ItemBase, level int, affixes []Affix) (int, int) {
	tier := TierFromLevel(level)
	bandStart := (tier-1)*levelsPerTier + 1
	frac := math.Max(0, math.Min(1, float64(level-bandStart)/float64(levelsPerTier-1)))
	scale := 1 + 0.25*float64(tier-1) + 0.2*frac

	flat, pct := 0, 0
	for _, a := range affixes {
		switch a.Effect {
		case EffectDamageFlat:
			flat += a.Value
		case EffectDamagePercent:
			pct += a.Value
		}
	}
	apply := func(v int) int {
		scaled := int(math.Round(float64(v) * scale))
		return int(float64(scaled+flat) * (1 + float64(pct)/100))
	}
	lo := max(apply(base.DamageMin), 1)
	hi := max(apply(base.DamageMax), lo)
	return lo, hi
}
