package encounter

// BossMarker prefixes the name of the boss monster of a run.
const BossMarker = "[Boss] "

// Monster is one generated monster instance inside a run. Everything except
// CurrentHP is fixed at generation time.
type Monster struct {
	Position   int
	TemplateID string
	Name       string
	Emoji      string
	Family     Family
	Boss       bool
	Level      int
	Difficulty int
	MaxHP      int
	CurrentHP  int
	Damage     int
	Exp        int
	Gold       int
}

// Alive reports whether the monster still has HP.
func (m Monster) Alive() bool {
	return m.CurrentHP > 0
}

// Spawn builds a monster from tmpl at level for a run position.
func Spawn(tmpl MonsterTemplate, position, level, difficulty int, boss bool) Monster {
	m := Monster{
		Position:   position,
		TemplateID: tmpl.ID,
		Name:       tmpl.Name,
		Emoji:      tmpl.Emoji,
		Family:     tmpl.Family,
		Level:      level,
		Difficulty: difficulty,
		MaxHP:      tmpl.HP.At(level),
		Damage:     tmpl.Damage.At(level),
		Exp:        tmpl.Exp.At(level),
		Gold:       tmpl.Gold.At(level),
	}
	if boss {
		scaling := tmpl.Boss
		if scaling.HP <= 0 {
			scaling.HP = DefaultBossScaling.HP
		}
		if scaling.Damage <= 0 {
			scaling.Damage = DefaultBossScaling.Damage
		}
		if scaling.Reward <= 0 {
			scaling.Reward = DefaultBossScaling.Reward
		}
		m.Boss = true
		m.Name = BossMarker + tmpl.Name
		m.MaxHP = int(float64(m.MaxHP) * scaling.HP)
		m.Damage = int(float64(m.Damage) * scaling.Damage)
		m.Exp = int(float64(m.Exp) * scaling.Reward)
		m.Gold = int(float64(m.Gold) * scaling.Reward)
	}
	if m.MaxHP < 1 {
		m.MaxHP = 1
	}
	if m.Damage < 0 {
		m.Damage = 0
	}
	m.CurrentHP = m.MaxHP
	return m
}
