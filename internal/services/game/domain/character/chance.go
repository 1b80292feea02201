package character

import (
	"math"
	"math/rand"

	"github.com/louisbranch/delving.space/internal/random"
)

const (
	critPerAgility  = 0.004
	critPerLuck     = 0.002
	dodgePerAgility = 0.002
	dodgePerLuck    = 0.001

	// CritCap and DodgeCap bound the chances whatever the stats.
	CritCap  = 0.95
	DodgeCap = 0.90

	CritMultiplierMin = 1.5
	CritMultiplierMax = 2.0
)

// CritChance is the probability of a critical hit for stats.
func CritChance(s StatBlock) float64 {
	return boundChance(float64(s.Agility)*critPerAgility+float64(s.Luck)*critPerLuck, CritCap)
}

// DodgeChance is the probability of avoiding a monster's retaliation.
func DodgeChance(s StatBlock) float64 {
	return boundChance(float64(s.Agility)*dodgePerAgility+float64(s.Luck)*dodgePerLuck, DodgeCap)
}

// RollCrit reports whether a hit crits and the multiplier to apply (1 when
// it does not).
func RollCrit(rng *rand.Rand, s StatBlock) (bool, float64) {
	if !random.Chance(rng, CritChance(s)) {
		return false, 1
	}
	return true, random.FloatRange(rng, CritMultiplierMin, CritMultiplierMax)
}

// Mitigation is the damage endurance absorbs from each monster hit.
func Mitigation(s StatBlock) int {
	return max(0, (s.Endurance-10)/2)
}

func boundChance(p, limit float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return math.Min(p, limit)
}
