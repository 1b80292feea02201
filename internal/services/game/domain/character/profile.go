package character

import (
	"math/rand"

	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
)

const (
	unarmedDamage = 1
	minCharsFloor = 1
	minCharsCeil  = 10
)

// Profile is the combat view of a character with its equipment applied.
type Profile struct {
	Stats      StatBlock
	AttackType loot.AttackType
	Armed      bool
	DamageMin  int
	DamageMax  int
	// OffhandMin and OffhandMax are the one-handed off-hand weapon range; its
	// roll contributes half. Both zero when the off hand holds no weapon.
	OffhandMin int
	OffhandMax int
	// MinChars is the minimum text length of a text-like action.
	MinChars int

	// Bonuses from items other than the weapons, whose own damage affixes are
	// already folded into their damage range.
	DamageFlat    int
	DamagePercent int

	KindPercent   map[action.Kind]int
	FamilyFlat    map[encounter.Family]int
	FamilyPercent map[encounter.Family]int
}

// EffectiveProfile accumulates the base stats and every equipped item into a
// combat profile. Unequipped items are ignored. Without a main-hand weapon
// the profile is unarmed: 1 damage, melee, minimum length 1.
func EffectiveProfile(base StatBlock, equipped []loot.Item) Profile {
	p := Profile{
		Stats:         base,
		AttackType:    loot.AttackMelee,
		DamageMin:     unarmedDamage,
		DamageMax:     unarmedDamage,
		MinChars:      minCharsFloor,
		KindPercent:   map[action.Kind]int{},
		FamilyFlat:    map[encounter.Family]int{},
		FamilyPercent: map[encounter.Family]int{},
	}
	for _, it := range equipped {
		if it.Equipped == loot.EquipNone {
			continue
		}
		if it.BaseStat.PrimaryStat() {
			p.Stats = p.Stats.With(it.BaseStat, it.BaseStatValue)
		}
		weapon := it.IsWeapon() && (it.Equipped == loot.EquipMainHand || it.Equipped == loot.EquipOffHand)
		for _, a := range it.Affixes {
			p.addAffix(a, weapon)
		}
		switch {
		case it.Equipped == loot.EquipMainHand && it.IsWeapon():
			p.Armed = true
			p.AttackType = it.AttackType
			if p.AttackType == "" {
				p.AttackType = loot.AttackMelee
			}
			p.DamageMin = max(it.DamageMin, unarmedDamage)
			p.DamageMax = max(it.DamageMax, p.DamageMin)
			p.MinChars = min(max(it.AttackSpeed, minCharsFloor), minCharsCeil)
		case it.Equipped == loot.EquipOffHand && it.Slot == loot.SlotWeapon1H:
			p.OffhandMin = max(it.DamageMin, 0)
			p.OffhandMax = max(it.DamageMax, p.OffhandMin)
		}
	}
	return p
}

func (p *Profile) addAffix(a loot.Affix, weapon bool) {
	switch a.Effect {
	case loot.EffectDamageFlat:
		if !weapon {
			p.DamageFlat += a.Value
		}
	case loot.EffectDamagePercent:
		if !weapon {
			p.DamagePercent += a.Value
		}
	case loot.EffectKindPercent:
		p.KindPercent[a.TargetKind] += a.Value
	case loot.EffectFamilyFlat:
		p.FamilyFlat[a.TargetFamily] += a.Value
	case loot.EffectFamilyPercent:
		p.FamilyPercent[a.TargetFamily] += a.Value
	default:
		if a.Effect.PrimaryStat() {
			p.Stats = p.Stats.With(a.Effect, a.Value)
		}
	}
}

// RollWeapon rolls the main-hand range plus half an off-hand roll.
func (p Profile) RollWeapon(rng *rand.Rand) int {
	roll := random.IntRange(rng, p.DamageMin, p.DamageMax)
	if p.OffhandMax > 0 {
		roll += random.IntRange(rng, p.OffhandMin, p.OffhandMax) / 2
	}
	return roll
}

// AttackStat is the stat scaling the profile's attack type.
func (p Profile) AttackStat() int {
	return p.Stats.ForAttack(p.AttackType)
}
