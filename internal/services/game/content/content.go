// Package content loads the static game tables: monster templates and
// encounter pools, dungeons, item bases, affix families, drop rules, and the
// group dungeon templates, events, and chain tasks.
//
// The tables ship as YAML embedded in the binary. Every file is decoded
// strictly and validated before it is mapped onto domain types, so a
// malformed table fails at startup instead of during play.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	monstersFile = "monsters.yaml"
	dungeonsFile = "dungeons.yaml"
	itemsFile    = "items.yaml"
	groupFile    = "group.yaml"
)

// Content is the validated set of game tables.
type Content struct {
	Templates []encounter.MonsterTemplate
	Pools     []encounter.Pool
	Dungeons  []encounter.Dungeon

	ItemBases     []loot.ItemBase
	AffixFamilies []loot.AffixFamily
	DropRules     []loot.DropRule

	GroupTemplates []group.Template
	GroupEvents    []group.EventTemplate
	ChainTasks     []group.ChainTask
}

var loadDefault = sync.OnceValues(LoadEmbedded)

// Default returns the embedded tables, loading them on first use.
func Default() (*Content, error) {
	return loadDefault()
}

// LoadEmbedded loads the tables compiled into the binary.
func LoadEmbedded() (*Content, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("open embedded content: %w", err)
	}
	return LoadFromFS(sub)
}

// LoadFromFS loads the tables from the root of fsys.
func LoadFromFS(fsys fs.FS) (*Content, error) {
	var (
		monsters monstersDoc
		dungeons dungeonsDoc
		items    itemsDoc
		groups   groupDoc
	)
	for _, f := range []struct {
		name string
		out  any
	}{
		{monstersFile, &monsters},
		{dungeonsFile, &dungeons},
		{itemsFile, &items},
		{groupFile, &groups},
	} {
		if err := decodeFile(fsys, f.name, f.out); err != nil {
			return nil, err
		}
	}

	c := &Content{}
	var errs []error
	c.Templates, c.Pools, errs = monsters.build()
	dungeonList, dungeonErrs := dungeons.build(c.Pools)
	c.Dungeons = dungeonList
	errs = append(errs, dungeonErrs...)

	bases, families, drops, itemErrs := items.build()
	c.ItemBases, c.AffixFamilies, c.DropRules = bases, families, drops
	errs = append(errs, itemErrs...)

	templates, events, chain, groupErrs := groups.build()
	c.GroupTemplates, c.GroupEvents, c.ChainTasks = templates, events, chain
	errs = append(errs, groupErrs...)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	return c, nil
}

// Generator builds the encounter generator over the monster tables.
func (c *Content) Generator() (*encounter.Generator, error) {
	return encounter.NewGenerator(c.Templates, c.Pools)
}

// Roller builds the loot roller over the item tables.
func (c *Content) Roller() (*loot.Roller, error) {
	return loot.NewRoller(c.ItemBases, c.AffixFamilies)
}

// decodeFile strictly decodes one YAML file; unknown keys are errors.
func decodeFile(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// span is an inclusive [min, max] pair written as a two-item YAML sequence.
type span [2]int

func (s span) valid() bool {
	return s[1] >= s[0]
}

func problem(file, format string, args ...any) error {
	return fmt.Errorf("%s: %s", file, fmt.Sprintf(format, args...))
}
