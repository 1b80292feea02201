package content

import (
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

type groupDoc struct {
	Symbols   map[string][]string `yaml:"symbols"`
	Templates []groupTemplateRow  `yaml:"templates"`
	Events    []eventRow          `yaml:"events"`
	Chain     []chainRow          `yaml:"chain"`
}

type groupTemplateRow struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	HPMultiplier float64    `yaml:"hp_multiplier"`
	UniqueEvent  string     `yaml:"unique_event"`
	Stages       []stageRow `yaml:"stages"`
}

type stageRow struct {
	Name  string `yaml:"name"`
	Emoji string `yaml:"emoji"`
}

type eventRow struct {
	ID          string        `yaml:"id"`
	Trigger     string        `yaml:"trigger"`
	Key         string        `yaml:"key"`
	Name        string        `yaml:"name"`
	Requirement string        `yaml:"requirement"`
	Match       matchRow      `yaml:"match"`
	MinPlayers  int           `yaml:"min_players"`
	Duration    time.Duration `yaml:"duration"`
	HPPercent   int           `yaml:"hp_percent"`
	Weight      float64       `yaml:"weight"`
}

type chainRow struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Match       matchRow `yaml:"match"`
}

type matchRow struct {
	Kinds []string `yaml:"kinds"`

	// Symbols names a set from the symbols table.
	Symbols string    `yaml:"symbols"`
	Voice   *voiceRow `yaml:"voice"`
}

type voiceRow struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

var triggers = map[string]storage.EventTrigger{
	string(storage.TriggerHP50):       storage.TriggerHP50,
	string(storage.TriggerHP10):       storage.TriggerHP10,
	string(storage.TriggerBossUnique): storage.TriggerBossUnique,
	string(storage.TriggerAdaptive):   storage.TriggerAdaptive,
}

func (d groupDoc) build() ([]group.Template, []group.EventTemplate, []group.ChainTask, []error) {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, problem(groupFile, format, args...))
	}

	matcher := func(owner string, m matchRow) group.Matcher {
		out := group.Matcher{}
		for _, name := range m.Kinds {
			k, ok := action.ParseKind(name)
			if !ok {
				bad("%s: unknown action kind %q", owner, name)
				continue
			}
			out.Kinds = append(out.Kinds, k)
		}
		if m.Symbols != "" {
			set, ok := d.Symbols[m.Symbols]
			if !ok || len(set) == 0 {
				bad("%s: unknown symbol set %q", owner, m.Symbols)
			}
			out.Symbols = set
		}
		if m.Voice != nil {
			if m.Voice.Max > 0 && m.Voice.Max < m.Voice.Min {
				bad("%s: voice duration range inverted", owner)
			}
			out.Voice = true
			out.MinDuration = m.Voice.Min
			out.MaxDuration = m.Voice.Max
		}
		return out
	}

	seen := map[string]bool{}
	templates := make([]group.Template, 0, len(d.Templates))
	for _, row := range d.Templates {
		if row.ID == "" || seen[row.ID] {
			bad("template %q is unnamed or repeated", row.ID)
		}
		seen[row.ID] = true
		if row.HPMultiplier <= 0 {
			bad("template %s: hp multiplier must be positive", row.ID)
		}
		if len(row.Stages) > group.StageCount {
			bad("template %s: %d stages, at most %d", row.ID, len(row.Stages), group.StageCount)
		}
		t := group.Template{
			ID:             row.ID,
			Name:           row.Name,
			HPMultiplier:   row.HPMultiplier,
			UniqueEventKey: row.UniqueEvent,
		}
		for _, s := range row.Stages {
			t.Stages = append(t.Stages, group.StageDef{Name: s.Name, Emoji: s.Emoji})
		}
		templates = append(templates, t)
	}
	if len(templates) == 0 {
		bad("no templates")
	}

	seen = map[string]bool{}
	uniqueKeys := map[string]bool{}
	events := make([]group.EventTemplate, 0, len(d.Events))
	for _, row := range d.Events {
		if row.ID == "" || seen[row.ID] {
			bad("event %q is unnamed or repeated", row.ID)
		}
		seen[row.ID] = true
		trigger, ok := triggers[row.Trigger]
		if !ok {
			bad("event %s: unknown trigger %q", row.ID, row.Trigger)
		}
		if trigger == storage.TriggerBossUnique {
			if row.Key == "" {
				bad("event %s: boss-unique events need a key", row.ID)
			}
			uniqueKeys[row.Key] = true
		}
		if row.Duration <= 0 {
			bad("event %s: duration must be positive", row.ID)
		}
		if row.HPPercent < 0 || row.HPPercent > 100 {
			bad("event %s: hp percent %d outside 0..100", row.ID, row.HPPercent)
		}
		weight := row.Weight
		if weight == 0 {
			weight = 1
		}
		events = append(events, group.EventTemplate{
			ID:              row.ID,
			Trigger:         trigger,
			Name:            row.Name,
			Requirement:     row.Requirement,
			Matcher:         matcher("event "+row.ID, row.Match),
			MinPlayers:      max(1, row.MinPlayers),
			Duration:        row.Duration,
			HPPercent:       row.HPPercent,
			Weight:          weight,
			DungeonEventKey: row.Key,
		})
	}
	for _, t := range templates {
		if t.UniqueEventKey != "" && !uniqueKeys[t.UniqueEventKey] {
			bad("template %s: no boss-unique event with key %q", t.ID, t.UniqueEventKey)
		}
	}

	seen = map[string]bool{}
	chain := make([]group.ChainTask, 0, len(d.Chain))
	for _, row := range d.Chain {
		if row.ID == "" || seen[row.ID] {
			bad("chain task %q is unnamed or repeated", row.ID)
		}
		seen[row.ID] = true
		chain = append(chain, group.ChainTask{
			ID:          row.ID,
			Description: row.Description,
			Matcher:     matcher("chain task "+row.ID, row.Match),
		})
	}
	if need := group.DefaultConfig().ChainLength; len(chain) > 0 && len(chain) < need {
		bad("chain pool has %d tasks, need %d", len(chain), need)
	}
	return templates, events, chain, errs
}
