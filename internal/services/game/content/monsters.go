package content

import (
	"fmt"
	"slices"
	"strings"

	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
)

type monstersDoc struct {
	Acts               []actRow       `yaml:"acts"`
	Variants           []string       `yaml:"variants"`
	Weight             float64        `yaml:"weight"`
	DifficultyPerLevel float64        `yaml:"difficulty_per_level"`
	Boss               bossRow        `yaml:"boss"`
	Archetypes         []archetypeRow `yaml:"archetypes"`
}

type actRow struct {
	Act      int `yaml:"act"`
	LevelMin int `yaml:"level_min"`
	LevelMax int `yaml:"level_max"`
	HP       int `yaml:"hp"`
	Damage   int `yaml:"damage"`
	Exp      int `yaml:"exp"`
	Gold     int `yaml:"gold"`
}

type bossRow struct {
	HP     float64 `yaml:"hp"`
	Damage float64 `yaml:"damage"`
	Reward float64 `yaml:"reward"`
}

type archetypeRow struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Emoji      string   `yaml:"emoji"`
	Family     string   `yaml:"family"`
	Locations  []string `yaml:"locations"`
	Difficulty float64  `yaml:"difficulty"`
	HPBias     int      `yaml:"hp_bias"`
	DamageBias int      `yaml:"damage_bias"`

	// Boss is "any" (default), "only", or "exclude".
	Boss string `yaml:"boss"`
}

func parseBossUsage(s string) (encounter.BossUsage, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return encounter.BossAny, true
	case "only":
		return encounter.BossOnly, true
	case "exclude":
		return encounter.ExcludeBoss, true
	default:
		return 0, false
	}
}

// TemplateID names the template of an archetype in act at variant (1-based).
func TemplateID(archetype string, act, variant int) string {
	return fmt.Sprintf("%s_a%d_v%d", archetype, act, variant)
}

// build expands every archetype into one template per act and variant, and
// one solo pool per act and location listing the templates found there.
func (d monstersDoc) build() ([]encounter.MonsterTemplate, []encounter.Pool, []error) {
	var errs []error
	if len(d.Acts) == 0 {
		errs = append(errs, problem(monstersFile, "no acts"))
	}
	if len(d.Variants) == 0 {
		errs = append(errs, problem(monstersFile, "no variants"))
	}
	boss := encounter.BossScaling{HP: d.Boss.HP, Damage: d.Boss.Damage, Reward: d.Boss.Reward}
	if boss.HP <= 0 || boss.Damage <= 0 || boss.Reward <= 0 {
		boss = encounter.DefaultBossScaling
	}

	seenActs := map[int]bool{}
	for _, a := range d.Acts {
		if a.Act < 1 || seenActs[a.Act] {
			errs = append(errs, problem(monstersFile, "act %d is invalid or repeated", a.Act))
		}
		seenActs[a.Act] = true
		if a.LevelMin < 1 || a.LevelMax < a.LevelMin {
			errs = append(errs, problem(monstersFile, "act %d: level range %d-%d", a.Act, a.LevelMin, a.LevelMax))
		}
	}

	usage := make(map[string]encounter.BossUsage, len(d.Archetypes))
	seen := map[string]bool{}
	for _, arch := range d.Archetypes {
		switch {
		case arch.ID == "":
			errs = append(errs, problem(monstersFile, "archetype %q has no id", arch.Name))
		case seen[arch.ID]:
			errs = append(errs, problem(monstersFile, "archetype %s is repeated", arch.ID))
		}
		seen[arch.ID] = true
		if len(arch.Locations) == 0 {
			errs = append(errs, problem(monstersFile, "archetype %s has no locations", arch.ID))
		}
		if arch.Difficulty <= 0 {
			errs = append(errs, problem(monstersFile, "archetype %s: difficulty must be positive", arch.ID))
		}
		u, ok := parseBossUsage(arch.Boss)
		if !ok {
			errs = append(errs, problem(monstersFile, "archetype %s: unknown boss usage %q", arch.ID, arch.Boss))
		}
		usage[arch.ID] = u
	}
	if len(errs) > 0 {
		return nil, nil, errs
	}

	var templates []encounter.MonsterTemplate
	pools := map[encounter.PoolKey]*encounter.Pool{}
	var keys []encounter.PoolKey
	for _, a := range d.Acts {
		for _, arch := range d.Archetypes {
			for i, prefix := range d.Variants {
				v := i + 1
				t := encounter.MonsterTemplate{
					ID:                 TemplateID(arch.ID, a.Act, v),
					Name:               strings.TrimSpace(prefix + " " + arch.Name),
					Emoji:              arch.Emoji,
					Family:             encounter.Family(arch.Family),
					Tags:               tagsFor(arch, a.Act),
					ActMin:             a.Act,
					ActMax:             a.Act,
					LevelMin:           a.LevelMin,
					LevelMax:           a.LevelMax,
					Weight:             d.Weight,
					BaseDifficulty:     arch.Difficulty + float64(4*(a.Act-1)+i),
					DifficultyPerLevel: d.DifficultyPerLevel,
					HP:                 encounter.Curve{Base: a.HP + arch.HPBias + 6*i, PerLevel: 8 + a.Act},
					Damage:             encounter.Curve{Base: a.Damage + arch.DamageBias + i, PerLevel: 2 + a.Act/2},
					Exp:                encounter.Curve{Base: a.Exp + 2*i, PerLevel: 3 + a.Act/2},
					Gold:               encounter.Curve{Base: a.Gold + 2*i, PerLevel: 2 + a.Act/2},
					BossAllowed:        usage[arch.ID] != encounter.ExcludeBoss,
					Boss:               boss,
				}
				templates = append(templates, t)

				for _, loc := range arch.Locations {
					key := encounter.PoolKey{LocationType: loc, Act: a.Act, Mode: encounter.ModeSolo}
					p, ok := pools[key]
					if !ok {
						p = &encounter.Pool{Key: key}
						pools[key] = p
						keys = append(keys, key)
					}
					p.Entries = append(p.Entries, encounter.PoolEntry{
						TemplateID: t.ID,
						Weight:     d.Weight,
						Boss:       usage[arch.ID],
					})
				}
			}
		}
	}

	out := make([]encounter.Pool, 0, len(keys))
	for _, k := range keys {
		p := pools[k]
		if !slices.ContainsFunc(p.Entries, func(e encounter.PoolEntry) bool { return e.Boss != encounter.ExcludeBoss }) {
			errs = append(errs, problem(monstersFile, "pool %s has no boss candidate", k))
		}
		if !slices.ContainsFunc(p.Entries, func(e encounter.PoolEntry) bool { return e.Boss != encounter.BossOnly }) {
			errs = append(errs, problem(monstersFile, "pool %s has only boss entries", k))
		}
		out = append(out, *p)
	}
	return templates, out, errs
}

func tagsFor(arch archetypeRow, act int) []string {
	tags := slices.Clone(arch.Locations)
	tags = append(tags, arch.Family, fmt.Sprintf("act%d", act))
	slices.Sort(tags)
	return slices.Compact(tags)
}
