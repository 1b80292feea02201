// Package contentcheck validates game content tables and samples every
// dungeon and drop table against them.
package contentcheck

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	entrypoint "github.com/louisbranch/delving.space/internal/platform/cmd"
	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/content"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
)

// Config holds content-check command configuration.
type Config struct {
	// Dir holds the YAML tables; empty checks the embedded ones.
	Dir     string `env:"DELVING_SPACE_CONTENT_DIR"`
	Samples int    `env:"DELVING_SPACE_CONTENT_SAMPLES" envDefault:"50"`
	JSON    bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory of content YAML tables (default: embedded tables)")
	fs.IntVar(&cfg.Samples, "samples", cfg.Samples, "seeds to sample per dungeon")
	fs.BoolVar(&cfg.JSON, "json", false, "output a JSON report")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Samples < 1 {
		return Config{}, fmt.Errorf("samples must be positive, got %d", cfg.Samples)
	}
	return cfg, nil
}

// Report summarizes one check.
type Report struct {
	Templates int      `json:"templates"`
	Pools     int      `json:"pools"`
	Dungeons  int      `json:"dungeons"`
	ItemBases int      `json:"item_bases"`
	Affixes   int      `json:"affix_families"`
	Groups    int      `json:"group_templates"`
	Events    int      `json:"group_events"`
	Samples   int      `json:"samples"`
	Failures  []string `json:"failures,omitempty"`
}

// Run loads the tables, samples them, and writes the report to out. It
// fails when the tables are invalid or any sample fails.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	var (
		tables *content.Content
		err    error
	)
	if strings.TrimSpace(cfg.Dir) != "" {
		tables, err = content.LoadFromFS(os.DirFS(cfg.Dir))
	} else {
		tables, err = content.LoadEmbedded()
	}
	if err != nil {
		return err
	}
	report, err := check(ctx, tables, max(1, cfg.Samples))
	if err != nil {
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		p := message.NewPrinter(language.English)
		p.Fprintf(out, "%d monster templates in %d pools\n", report.Templates, report.Pools)
		p.Fprintf(out, "%d dungeons, %d item bases, %d affix families\n", report.Dungeons, report.ItemBases, report.Affixes)
		p.Fprintf(out, "%d group templates, %d group events\n", report.Groups, report.Events)
		p.Fprintf(out, "%d samples, %d failures\n", report.Samples, len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	if n := len(report.Failures); n > 0 {
		return fmt.Errorf("%d content samples failed", n)
	}
	return nil
}

func check(ctx context.Context, tables *content.Content, samples int) (Report, error) {
	gen, err := tables.Generator()
	if err != nil {
		return Report{}, err
	}
	roller, err := tables.Roller()
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Templates: len(tables.Templates),
		Pools:     len(tables.Pools),
		Dungeons:  len(tables.Dungeons),
		ItemBases: len(tables.ItemBases),
		Affixes:   len(tables.AffixFamilies),
		Groups:    len(tables.GroupTemplates),
		Events:    len(tables.GroupEvents),
	}
	fail := func(format string, args ...any) {
		report.Failures = append(report.Failures, fmt.Sprintf(format, args...))
	}

	for _, d := range tables.Dungeons {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		loc := encounter.Location{LocationType: d.LocationType, Act: d.Act}
		for seed := int64(1); seed <= int64(samples); seed++ {
			report.Samples++
			monsters, err := gen.Generate(loc, d.Budget, encounter.Range{Min: d.CountMin, Max: d.CountMax}, seed)
			if err != nil {
				fail("%s seed %d: %v", d.Name, seed, err)
				continue
			}
			boss := monsters[len(monsters)-1]
			if !boss.Boss {
				fail("%s seed %d: last monster %s is not a boss", d.Name, seed, boss.Name)
			}
			rng := random.New(seed)
			for r := loot.RarityCommon; r <= loot.RarityLegendary; r++ {
				if _, err := roller.Roll(rng, r, boss.Level, loot.TierCapForAct(d.Act)); err != nil {
					fail("%s seed %d: %s drop at level %d: %v", d.Name, seed, r, boss.Level, err)
				}
			}
		}
	}
	return report, nil
}
