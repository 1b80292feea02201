package character

import "github.com/louisbranch/delving.space/internal/services/game/domain/loot"

// DefaultStat is the starting value of every stat.
const DefaultStat = 10

// StatBlock is the fixed set of core character stats.
type StatBlock struct {
	Strength     int
	Agility      int
	Intelligence int
	Endurance    int
	Luck         int
	Charm        int
}

// DefaultStats returns the stat block of a new character.
func DefaultStats() StatBlock {
	return StatBlock{
		Strength:     DefaultStat,
		Agility:      DefaultStat,
		Intelligence: DefaultStat,
		Endurance:    DefaultStat,
		Luck:         DefaultStat,
		Charm:        DefaultStat,
	}
}

// Add returns the field-wise sum of s and o.
func (s StatBlock) Add(o StatBlock) StatBlock {
	return StatBlock{
		Strength:     s.Strength + o.Strength,
		Agility:      s.Agility + o.Agility,
		Intelligence: s.Intelligence + o.Intelligence,
		Endurance:    s.Endurance + o.Endurance,
		Luck:         s.Luck + o.Luck,
		Charm:        s.Charm + o.Charm,
	}
}

// With returns s with value added to the stat named by effect. Effects that
// are not core stats leave s unchanged.
func (s StatBlock) With(effect loot.Effect, value int) StatBlock {
	switch effect {
	case loot.EffectStrength:
		s.Strength += value
	case loot.EffectAgility:
		s.Agility += value
	case loot.EffectIntelligence:
		s.Intelligence += value
	case loot.EffectEndurance:
		s.Endurance += value
	case loot.EffectLuck:
		s.Luck += value
	case loot.EffectCharm:
		s.Charm += value
	}
	return s
}

// ForAttack returns the stat that scales damage for the attack type:
// melee uses strength, ranged agility, magic intelligence.
func (s StatBlock) ForAttack(t loot.AttackType) int {
	switch t {
	case loot.AttackRanged:
		return s.Agility
	case loot.AttackMagic:
		return s.Intelligence
	default:
		return s.Strength
	}
}
