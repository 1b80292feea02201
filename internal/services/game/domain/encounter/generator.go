package encounter

import (
	"math"
	"math/rand"
	"strconv"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/random"
)

const (
	// MaxCount bounds the number of monsters in one run.
	MaxCount = 20
	// MinBudgetPerMonster keeps integer rounding inside the budget band.
	MinBudgetPerMonster = 10

	shareJitter   = 0.15
	budgetCeiling = 1.2
	budgetFloor   = 0.8
	bossWeight    = 1.5
	maxLevel      = 100
)

// Location is the generation context of a run.
type Location struct {
	LocationType string
	Act          int
	Mode         Mode
	PlusLevel    int
}

// Generator samples runs from static template and pool tables. It holds no
// mutable state and is safe for concurrent use.
type Generator struct {
	templates map[string]MonsterTemplate
	pools     map[PoolKey]Pool
}

// NewGenerator indexes templates and pools. Pool entries referencing unknown
// templates are rejected with POOL_INVALID.
func NewGenerator(templates []MonsterTemplate, pools []Pool) (*Generator, error) {
	g := &Generator{
		templates: make(map[string]MonsterTemplate, len(templates)),
		pools:     make(map[PoolKey]Pool, len(pools)),
	}
	for _, t := range templates {
		g.templates[t.ID] = t
	}
	for _, p := range pools {
		for _, e := range p.Entries {
			if _, ok := g.templates[e.TemplateID]; !ok {
				return nil, apperrors.WithMetadata(apperrors.CodePoolInvalid,
					"pool entry references unknown template",
					map[string]string{"Pool": p.Key.String(), "TemplateID": e.TemplateID})
			}
		}
		g.pools[p.Key] = p
	}
	return g, nil
}

// Template returns the template with id.
func (g *Generator) Template(id string) (MonsterTemplate, bool) {
	t, ok := g.templates[id]
	return t, ok
}

// Generate produces an ordered run for loc. The same seed and inputs always
// produce the same run. The final monster is the boss.
func (g *Generator) Generate(loc Location, budget int, count Range, seed int64) ([]Monster, error) {
	if count.Min < 1 || count.Max < count.Min || count.Max > MaxCount {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "count range must satisfy 1 <= min <= max <= "+strconv.Itoa(MaxCount))
	}
	if budget < count.Max*MinBudgetPerMonster {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidBudget, "difficulty budget too small for count range",
			map[string]string{"Budget": strconv.Itoa(budget), "Minimum": strconv.Itoa(count.Max * MinBudgetPerMonster)})
	}
	mode := loc.Mode
	if mode == 0 {
		mode = ModeSolo
	}
	pool, ok := g.pools[PoolKey{LocationType: loc.LocationType, Act: loc.Act, Mode: mode}]
	if !ok || len(pool.Entries) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodePoolInvalid, "no encounter pool for location",
			map[string]string{"Pool": PoolKey{LocationType: loc.LocationType, Act: loc.Act, Mode: mode}.String()})
	}

	r := random.New(seed)
	n := random.IntRange(r, count.Min, count.Max)
	shares := SplitBudget(r, budget, n)

	monsters := make([]Monster, 0, n)
	for i, share := range shares {
		position := i + 1
		boss := position == n
		tmpl, err := g.pick(r, pool, loc.Act, float64(share), boss)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodePoolInvalid, "no eligible template for position",
				map[string]string{"Pool": pool.Key.String(), "Position": strconv.Itoa(position)}, err)
		}
		level := tmpl.LevelFor(float64(share)) + PlusLevelShift*max(loc.PlusLevel, 0)
		if level > maxLevel {
			level = maxLevel
		}
		monsters = append(monsters, Spawn(tmpl, position, level, share, boss))
	}
	return monsters, nil
}

type candidate struct {
	tmpl   MonsterTemplate
	weight float64
}

func (g *Generator) pick(r *rand.Rand, pool Pool, act int, target float64, boss bool) (MonsterTemplate, error) {
	candidates := make([]candidate, 0, len(pool.Entries))
	for _, e := range pool.Entries {
		tmpl := g.templates[e.TemplateID]
		if !tmpl.AllowsAct(act) || !e.Band.Contains(target) {
			continue
		}
		if boss && (e.Boss == ExcludeBoss || !tmpl.BossAllowed) {
			continue
		}
		if !boss && e.Boss == BossOnly {
			continue
		}
		w := entryWeight(e) * templateWeight(tmpl) * Closeness(tmpl.BaseDifficulty, target)
		if w > 0 {
			candidates = append(candidates, candidate{tmpl: tmpl, weight: w})
		}
	}
	c, ok := random.Weighted(r, candidates, func(c candidate) float64 { return c.weight })
	if !ok {
		return MonsterTemplate{}, apperrors.New(apperrors.CodePoolInvalid, "empty candidate set")
	}
	return c.tmpl, nil
}

func entryWeight(e PoolEntry) float64 {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}

func templateWeight(t MonsterTemplate) float64 {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// Closeness favors templates whose base difficulty is near target. It is 1
// for an exact match and decays toward 0 with relative distance.
func Closeness(base, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return 1 / (1 + math.Abs(base-target)/target)
}

// SplitBudget divides budget across n positions: an equal base share (the
// final boss position weighted 1.5) times a jitter in [-15%, +15%]. Totals
// outside [80%, 120%] of budget are renormalized to budget.
func SplitBudget(r *rand.Rand, budget, n int) []int {
	if n <= 0 {
		return nil
	}
	weights := make([]float64, n)
	total := 0.0
	for i := range weights {
		weights[i] = 1
		if i == n-1 {
			weights[i] = bossWeight
		}
		total += weights[i]
	}

	raw := make([]float64, n)
	sum := 0.0
	for i, w := range weights {
		base := float64(budget) * w / total
		raw[i] = base * (1 + random.FloatRange(r, -shareJitter, shareJitter))
		sum += raw[i]
	}
	if sum > float64(budget)*budgetCeiling || sum < float64(budget)*budgetFloor {
		scale := float64(budget) / sum
		for i := range raw {
			raw[i] *= scale
		}
	}

	shares := make([]int, n)
	for i, v := range raw {
		shares[i] = int(math.Round(v))
		if shares[i] < 1 {
			shares[i] = 1
		}
	}
	return shares
}
