package loot

import (
	"math/rand"

	"github.com/louisbranch/delving.space/internal/random"
)

// MaxItemLevel caps dropped item levels.
const MaxItemLevel = 60

// RollRarity decides whether a drop happens for a kill and at which rarity.
// Boss-only rules never drop from regular monsters.
func (d DropRule) RollRarity(rng *rand.Rand, boss bool) (Rarity, bool) {
	if d.BossOnly && !boss {
		return 0, false
	}
	if !random.Chance(rng, d.Chance) {
		return 0, false
	}
	weights := d.Weights
	if len(weights) == 0 {
		weights = FallbackRarityWeights
	}
	w, ok := random.Weighted(rng, weights, func(w RarityWeight) float64 { return w.Weight })
	if !ok {
		return RarityCommon, true
	}
	return w.Rarity, true
}

// DropLevel rolls the level of a drop for a character of characterLevel.
func DropLevel(rng *rand.Rand, characterLevel int) int {
	return clamp(characterLevel+random.IntRange(rng, 0, 2), 1, MaxItemLevel)
}
