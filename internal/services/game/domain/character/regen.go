package character

import "time"

const (
	energyPerMinute = 1
	hpBasePerMinute = 5
)

// HPPerMinute is the HP regeneration rate for stats.
func HPPerMinute(s StatBlock) int {
	return hpBasePerMinute + max(0, s.Endurance-10)
}

// Regenerate applies whole elapsed minutes of energy and HP regeneration up
// to now. Partial minutes carry over through the stored timestamps. A
// character at zero HP does not regenerate HP.
func (c *Character) Regenerate(now time.Time) {
	if c.MaxEnergy <= 0 {
		c.MaxEnergy = MaxEnergy
	}
	c.Energy, c.EnergyUpdatedAt = regen(c.Energy, c.MaxEnergy, energyPerMinute, c.EnergyUpdatedAt, now)
	if c.HP <= 0 {
		c.HPUpdatedAt = now
		return
	}
	c.HP, c.HPUpdatedAt = regen(c.HP, c.MaxHP, HPPerMinute(c.Stats), c.HPUpdatedAt, now)
}

func regen(current, limit, perMinute int, since, now time.Time) (int, time.Time) {
	if current >= limit || since.IsZero() {
		return current, now
	}
	if !now.After(since) {
		return current, since
	}
	minutes := int(now.Sub(since) / time.Minute)
	if minutes <= 0 {
		return current, since
	}
	next := current + minutes*perMinute
	if next >= limit {
		return limit, now
	}
	return next, since.Add(time.Duration(minutes) * time.Minute)
}
