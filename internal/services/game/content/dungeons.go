package content

import (
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
)

type dungeonsDoc struct {
	Dungeons []dungeonRow `yaml:"dungeons"`
}

type dungeonRow struct {
	Act      int    `yaml:"act"`
	Number   int    `yaml:"number"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Count    span   `yaml:"count"`
	Budget   int    `yaml:"budget"`
}

// build maps the dungeon rows and checks each against the generator limits
// and the pools it will draw from.
func (d dungeonsDoc) build(pools []encounter.Pool) ([]encounter.Dungeon, []error) {
	known := make(map[encounter.PoolKey]bool, len(pools))
	for _, p := range pools {
		known[p.Key] = true
	}
	type key struct{ act, number int }
	seen := map[key]bool{}

	var errs []error
	out := make([]encounter.Dungeon, 0, len(d.Dungeons))
	for _, row := range d.Dungeons {
		k := key{row.Act, row.Number}
		if seen[k] {
			errs = append(errs, problem(dungeonsFile, "act %d dungeon %d is repeated", row.Act, row.Number))
		}
		seen[k] = true
		if row.Count[0] < 1 || !row.Count.valid() || row.Count[1] > encounter.MaxCount {
			errs = append(errs, problem(dungeonsFile, "%s: count %v outside 1..%d", row.Name, row.Count, encounter.MaxCount))
		}
		if row.Budget < row.Count[1]*encounter.MinBudgetPerMonster {
			errs = append(errs, problem(dungeonsFile, "%s: budget %d below %d per monster", row.Name, row.Budget, encounter.MinBudgetPerMonster))
		}
		pool := encounter.PoolKey{LocationType: row.Location, Act: row.Act, Mode: encounter.ModeSolo}
		if !known[pool] {
			errs = append(errs, problem(dungeonsFile, "%s: no pool %s", row.Name, pool))
		}
		out = append(out, encounter.Dungeon{
			Act:          row.Act,
			Number:       row.Number,
			Name:         row.Name,
			LocationType: row.Location,
			CountMin:     row.Count[0],
			CountMax:     row.Count[1],
			Budget:       row.Budget,
		})
	}
	if len(out) == 0 {
		errs = append(errs, problem(dungeonsFile, "no dungeons"))
	}
	return out, errs
}
