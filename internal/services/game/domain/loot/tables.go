package loot

import (
	"slices"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
)

const (
	maxTier       = 10
	levelsPerTier = 5
)

// TierFromLevel maps an item level to its 5-level tier band (1..10).
func TierFromLevel(level int) int {
	return clamp((level-1)/levelsPerTier+1, 1, maxTier)
}

// TierCapForAct is the highest tier that may drop in act.
func TierCapForAct(act int) int {
	return clamp(act*2, 1, maxTier)
}

// ItemBase is a static item archetype.
type ItemBase struct {
	ID            string
	Name          string
	Slot          SlotType
	WeaponType    string
	AttackType    AttackType
	Tags          []string
	LevelMin      int
	LevelMax      int
	DamageMin     int
	DamageMax     int
	AttackSpeed   int
	BaseStat      Effect
	BaseStatValue int
}

// Tier is the tier band of the base's minimum level.
func (b ItemBase) Tier() int {
	return TierFromLevel(b.LevelMin)
}

// Applicability restricts which bases an affix family may roll on. Empty
// lists impose no restriction.
type Applicability struct {
	Slots         []SlotType
	AttackTypes   []AttackType
	RequiredTags  []string
	ForbiddenTags []string
}

// Allows reports whether the base satisfies every constraint.
func (a Applicability) Allows(b ItemBase) bool {
	if len(a.Slots) > 0 && !slices.Contains(a.Slots, b.Slot) {
		return false
	}
	if len(a.AttackTypes) > 0 && !slices.Contains(a.AttackTypes, b.AttackType) {
		return false
	}
	for _, tag := range a.RequiredTags {
		if !slices.Contains(b.Tags, tag) {
			return false
		}
	}
	for _, tag := range a.ForbiddenTags {
		if slices.Contains(b.Tags, tag) {
			return false
		}
	}
	return true
}

// AffixTier is one level-banded variant of an affix family.
type AffixTier struct {
	Tier          int
	MinTotalLevel int
	MaxTotalLevel int
	ValueMin      int
	ValueMax      int
	LevelDeltaMin int
	LevelDeltaMax int
	WeightMult    float64
}

// Covers reports whether level falls inside the tier's total-level band. A
// zero maximum is open.
func (t AffixTier) Covers(level int) bool {
	if level < t.MinTotalLevel {
		return false
	}
	return t.MaxTotalLevel == 0 || level <= t.MaxTotalLevel
}

// AffixFamily is a static rollable affix definition.
type AffixFamily struct {
	ID             string
	Name           string
	Kind           AffixKind
	ExclusiveGroup string
	Effect         Effect
	TargetKind     action.Kind
	TargetFamily   encounter.Family
	Percent        bool
	Applies        Applicability
	Weight         float64
	Tiers          []AffixTier
}

// RarityWeight is one row of a rarity-weight table.
type RarityWeight struct {
	Rarity Rarity
	Weight float64
}

// FallbackRarityWeights apply when a drop rule has no table.
var FallbackRarityWeights = []RarityWeight{
	{Rarity: RarityCommon, Weight: 70},
	{Rarity: RarityUncommon, Weight: 25},
	{Rarity: RarityRare, Weight: 5},
}

// DropRule is the per-act loot policy.
type DropRule struct {
	Act      int
	BossOnly bool
	Chance   float64
	Weights  []RarityWeight
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
