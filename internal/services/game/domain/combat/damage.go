package combat

import (
	"math"
	"math/rand"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
)

// Damage is the breakdown of one computed hit.
type Damage struct {
	WeaponRoll int
	// Base is the weapon roll scaled by kind coefficient and size factor.
	Base float64
	// Scaled is Base after the attack-stat bonus.
	Scaled     int
	Crit       bool
	Multiplier float64
	Total      int
}

// ComputeDamage rolls one hit of kind against a monster of family. Bonuses
// apply in order: attack stat, non-weapon flat and percent, action kind
// percent, family flat, family percent, then the crit multiplier. The
// result is never below 1.
func ComputeDamage(rng *rand.Rand, p character.Profile, kind action.Kind, length int, family encounter.Family) Damage {
	d := Damage{WeaponRoll: p.RollWeapon(rng), Multiplier: 1}
	d.Base = float64(d.WeaponRoll) * kind.Coefficient() * kind.SizeFactor(length)
	d.Scaled = int(math.Floor(d.Base * (1 + character.StatCoefficient*float64(p.AttackStat()))))

	total := d.Scaled + p.DamageFlat
	total = percent(total, p.DamagePercent)
	total = percent(total, p.KindPercent[kind])
	if family != "" {
		total += p.FamilyFlat[family]
		total = percent(total, p.FamilyPercent[family])
	}

	d.Crit, d.Multiplier = character.RollCrit(rng, p.Stats)
	if d.Crit {
		total = int(math.Floor(float64(total) * d.Multiplier))
	}
	d.Total = max(1, total)
	return d
}

func percent(value, pct int) int {
	if pct == 0 {
		return value
	}
	return int(math.Floor(float64(value) * (1 + float64(pct)/100)))
}

// Retaliation is the damage a monster deals back on the killing blow.
func Retaliation(monster encounter.Monster, stats character.StatBlock) int {
	return max(0, monster.Damage-character.Mitigation(stats))
}
