package character

import "time"

const (
	// MaxLevel caps character progression.
	MaxLevel = 50
	// MaxEnergy is the energy pool of every character.
	MaxEnergy = 100
	// StatCoefficient is the damage bonus per point of the attack stat.
	StatCoefficient = 0.02

	hpPerLevel     = 20
	hpPerEndurance = 10
	expCurveFactor = 50
)

// Character is a player's persistent progression state.
type Character struct {
	ID         string
	Name       string
	Level      int
	Exp        int
	StatPoints int
	Stats      StatBlock
	HP         int
	MaxHP      int
	Energy     int
	MaxEnergy  int
	Gold       int
	CurrentAct int
	// PlusUnlocked opens endless plus levels after the final act.
	PlusUnlocked    bool
	EnergyUpdatedAt time.Time
	HPUpdatedAt     time.Time
	CreatedAt       time.Time
	// Version is the stored row revision this value was read at.
	Version int64
}

// New returns a level 1 character at full HP and energy.
func New(id, name string, now time.Time) Character {
	stats := DefaultStats()
	maxHP := MaxHP(1, stats.Endurance)
	return Character{
		ID:              id,
		Name:            name,
		Level:           1,
		Stats:           stats,
		HP:              maxHP,
		MaxHP:           maxHP,
		Energy:          MaxEnergy,
		MaxEnergy:       MaxEnergy,
		CurrentAct:      1,
		EnergyUpdatedAt: now,
		HPUpdatedAt:     now,
		CreatedAt:       now,
	}
}

// Alive reports whether the character has HP left.
func (c Character) Alive() bool {
	return c.HP > 0
}

// MaxHP is the HP pool for level and endurance.
func MaxHP(level, endurance int) int {
	return hpPerLevel*level + hpPerEndurance*endurance
}

// ExpToNext is the experience needed to advance from level to level+1:
// 50 × (level+1)², the cost of reaching the next level.
func ExpToNext(level int) int {
	next := level + 1
	return expCurveFactor * next * next
}

// TotalExpForLevel is the cumulative experience needed to reach level from
// level 1.
func TotalExpForLevel(level int) int {
	total := 0
	for l := 1; l < level; l++ {
		total += ExpToNext(l)
	}
	return total
}

// GainExp adds experience and applies every level-up it pays for. Each level
// grants one stat point, recomputes max HP, and fully restores HP and energy.
// It returns the number of levels gained.
func (c *Character) GainExp(amount int) int {
	if amount > 0 {
		c.Exp += amount
	}
	gained := 0
	for c.Level < MaxLevel && c.Exp >= ExpToNext(c.Level) {
		c.Exp -= ExpToNext(c.Level)
		c.Level++
		c.StatPoints++
		gained++
	}
	if gained > 0 {
		c.MaxHP = MaxHP(c.Level, c.Stats.Endurance)
		c.HP = c.MaxHP
		if c.MaxEnergy <= 0 {
			c.MaxEnergy = MaxEnergy
		}
		c.Energy = c.MaxEnergy
	}
	return gained
}

// SpendEnergy deducts cost, reporting false without change when the pool is
// short.
func (c *Character) SpendEnergy(cost int) bool {
	if cost > c.Energy {
		return false
	}
	c.Energy -= cost
	return true
}

// Drain removes up to amount energy, never below zero.
func (c *Character) Drain(amount int) {
	c.Energy = max(0, c.Energy-amount)
}

// TakeDamage subtracts damage from HP, never below zero.
func (c *Character) TakeDamage(damage int) {
	c.HP = max(0, c.HP-max(0, damage))
}
