// Package encounter generates ordered monster runs from weighted template
// pools under a difficulty budget.
package encounter

import (
	"fmt"
	"strings"
)

// Family groups monsters for family-targeted equipment bonuses.
type Family string

// Mode separates solo pools from group pools.
type Mode int

const (
	ModeSolo Mode = iota + 1
	ModeGroup
)

func (m Mode) String() string {
	switch m {
	case ModeSolo:
		return "solo"
	case ModeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name to its Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "solo", "":
		return ModeSolo, nil
	case "group":
		return ModeGroup, nil
	default:
		return 0, fmt.Errorf("unknown encounter mode %q", name)
	}
}

// Curve is a linear base + perLevel × level stat curve.
type Curve struct {
	Base     int
	PerLevel int
}

// At evaluates the curve at level.
func (c Curve) At(level int) int {
	return c.Base + c.PerLevel*level
}

// BossScaling multiplies boss stats.
type BossScaling struct {
	HP     float64
	Damage float64
	Reward float64
}

// DefaultBossScaling applies when a template leaves its multipliers unset.
var DefaultBossScaling = BossScaling{HP: 2.5, Damage: 1.8, Reward: 2.0}

// MonsterTemplate is a static monster archetype.
type MonsterTemplate struct {
	ID     string
	Name   string
	Emoji  string
	Family Family
	Tags   []string

	ActMin   int
	ActMax   int
	LevelMin int
	LevelMax int

	Weight             float64
	BaseDifficulty     float64
	DifficultyPerLevel float64

	HP     Curve
	Damage Curve
	Exp    Curve
	Gold   Curve

	BossAllowed bool
	Boss        BossScaling
}

// AllowsAct reports whether the template may appear in act. Zero bounds are
// open.
func (t MonsterTemplate) AllowsAct(act int) bool {
	if t.ActMin > 0 && act < t.ActMin {
		return false
	}
	if t.ActMax > 0 && act > t.ActMax {
		return false
	}
	return true
}

// DifficultyAt returns the template's difficulty score at level.
func (t MonsterTemplate) DifficultyAt(level int) float64 {
	return t.BaseDifficulty + float64(level-t.LevelMin)*t.DifficultyPerLevel
}

// LevelFor returns the level within the template range whose difficulty is
// nearest to target.
func (t MonsterTemplate) LevelFor(target float64) int {
	level := t.LevelMin
	if t.DifficultyPerLevel > 0 {
		steps := (target - t.BaseDifficulty) / t.DifficultyPerLevel
		level = t.LevelMin + int(steps+0.5)
		if steps < 0 {
			level = t.LevelMin
		}
	}
	if level < t.LevelMin {
		level = t.LevelMin
	}
	if t.LevelMax >= t.LevelMin && level > t.LevelMax {
		level = t.LevelMax
	}
	return level
}

// PoolKey identifies an encounter pool.
type PoolKey struct {
	LocationType string
	Act          int
	Mode         Mode
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s/act%d/%s", k.LocationType, k.Act, k.Mode)
}

// DifficultyBand restricts a pool entry to position targets within
// [Min, Max]. Zero bounds are open.
type DifficultyBand struct {
	Min float64
	Max float64
}

// Contains reports whether target falls inside the band.
func (b DifficultyBand) Contains(target float64) bool {
	if b.Min > 0 && target < b.Min {
		return false
	}
	if b.Max > 0 && target > b.Max {
		return false
	}
	return true
}

// BossUsage restricts a pool entry to or away from the boss position.
type BossUsage int

const (
	BossAny BossUsage = iota
	BossOnly
	ExcludeBoss
)

// PoolEntry is one weighted template reference within a pool.
type PoolEntry struct {
	TemplateID string
	Weight     float64
	Band       DifficultyBand
	Boss       BossUsage
}

// Pool is the weighted template set for one location/act/mode.
type Pool struct {
	Key     PoolKey
	Entries []PoolEntry
}

// Dungeon is a static dungeon definition players start runs in.
type Dungeon struct {
	Act          int
	Number       int
	Name         string
	LocationType string
	CountMin     int
	CountMax     int
	Budget       int
}

// Range is an inclusive integer range.
type Range struct {
	Min int
	Max int
}

// BudgetFor scales the dungeon's base budget for a plus level.
func (d Dungeon) BudgetFor(plusLevel int) int {
	if plusLevel <= 0 {
		return d.Budget
	}
	return int(float64(d.Budget) * (1 + PlusBudgetStep*float64(plusLevel)))
}

// PlusBudgetStep is the budget increase per plus level.
const PlusBudgetStep = 0.5

// PlusLevelShift is the monster level increase per plus level.
const PlusLevelShift = 3
