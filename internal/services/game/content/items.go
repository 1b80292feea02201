package content

import (
	"errors"
	"fmt"
	"slices"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
)

var (
	slotTypes = []loot.SlotType{
		loot.SlotWeapon1H, loot.SlotWeapon2H, loot.SlotOffhand, loot.SlotHelmet, loot.SlotArmor,
		loot.SlotGloves, loot.SlotBoots, loot.SlotRing, loot.SlotAmulet,
	}
	attackTypes = []loot.AttackType{loot.AttackMelee, loot.AttackRanged, loot.AttackMagic}
	effects     = []loot.Effect{
		loot.EffectStrength, loot.EffectAgility, loot.EffectIntelligence, loot.EffectEndurance,
		loot.EffectLuck, loot.EffectCharm, loot.EffectDamageFlat, loot.EffectDamagePercent,
		loot.EffectKindPercent, loot.EffectFamilyFlat, loot.EffectFamilyPercent,
	}
)

type itemsDoc struct {
	Bases   []baseRow            `yaml:"bases"`
	Ladders map[string][]tierRow `yaml:"ladders"`
	Affixes []affixRow           `yaml:"affixes"`
	Drops   []dropRow            `yaml:"drops"`
}

type baseRow struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Slot          string   `yaml:"slot"`
	WeaponType    string   `yaml:"weapon_type"`
	AttackType    string   `yaml:"attack_type"`
	Tags          []string `yaml:"tags"`
	Level         span     `yaml:"level"`
	Damage        span     `yaml:"damage"`
	AttackSpeed   int      `yaml:"attack_speed"`
	BaseStat      string   `yaml:"base_stat"`
	BaseStatValue int      `yaml:"base_stat_value"`
}

type tierRow struct {
	Tier       int     `yaml:"tier"`
	TotalLevel span    `yaml:"total_level"`
	Value      span    `yaml:"value"`
	LevelDelta span    `yaml:"level_delta"`
	WeightMult float64 `yaml:"weight_mult"`
}

type affixRow struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Kind         string         `yaml:"kind"`
	Group        string         `yaml:"group"`
	Effect       string         `yaml:"effect"`
	TargetKind   string         `yaml:"target_kind"`
	TargetFamily string         `yaml:"target_family"`
	Percent      bool           `yaml:"percent"`
	Applies      applicationRow `yaml:"applies"`
	Weight       float64        `yaml:"weight"`
	Tiers        []tierRow      `yaml:"tiers"`
}

type applicationRow struct {
	Slots         []string `yaml:"slots"`
	AttackTypes   []string `yaml:"attack_types"`
	RequiredTags  []string `yaml:"required_tags"`
	ForbiddenTags []string `yaml:"forbidden_tags"`
}

type dropRow struct {
	Act      int         `yaml:"act"`
	BossOnly bool        `yaml:"boss_only"`
	Chance   float64     `yaml:"chance"`
	Weights  []weightRow `yaml:"weights"`
}

type weightRow struct {
	Rarity string  `yaml:"rarity"`
	Weight float64 `yaml:"weight"`
}

func (d itemsDoc) build() ([]loot.ItemBase, []loot.AffixFamily, []loot.DropRule, []error) {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, problem(itemsFile, format, args...))
	}

	seen := map[string]bool{}
	bases := make([]loot.ItemBase, 0, len(d.Bases))
	for _, row := range d.Bases {
		if row.ID == "" || seen[row.ID] {
			bad("item base %q is unnamed or repeated", row.ID)
		}
		seen[row.ID] = true
		b := loot.ItemBase{
			ID:            row.ID,
			Name:          row.Name,
			Slot:          loot.SlotType(row.Slot),
			WeaponType:    row.WeaponType,
			AttackType:    loot.AttackType(row.AttackType),
			Tags:          row.Tags,
			LevelMin:      row.Level[0],
			LevelMax:      row.Level[1],
			DamageMin:     row.Damage[0],
			DamageMax:     row.Damage[1],
			AttackSpeed:   row.AttackSpeed,
			BaseStat:      loot.Effect(row.BaseStat),
			BaseStatValue: row.BaseStatValue,
		}
		if !slices.Contains(slotTypes, b.Slot) {
			bad("item base %s: unknown slot %q", b.ID, row.Slot)
		}
		if b.LevelMin < 1 || !row.Level.valid() || b.LevelMax > loot.MaxItemLevel {
			bad("item base %s: level range %v", b.ID, row.Level)
		}
		if b.Slot.IsWeapon() {
			if !slices.Contains(attackTypes, b.AttackType) {
				bad("item base %s: weapon needs an attack type, got %q", b.ID, row.AttackType)
			}
			if b.DamageMin < 1 || !row.Damage.valid() {
				bad("item base %s: damage range %v", b.ID, row.Damage)
			}
		}
		if row.BaseStat != "" && !b.BaseStat.PrimaryStat() {
			bad("item base %s: base stat %q is not a primary stat", b.ID, row.BaseStat)
		}
		bases = append(bases, b)
	}

	seen = map[string]bool{}
	families := make([]loot.AffixFamily, 0, len(d.Affixes))
	for _, row := range d.Affixes {
		if row.ID == "" || seen[row.ID] {
			bad("affix family %q is unnamed or repeated", row.ID)
		}
		seen[row.ID] = true
		f, familyErrs := row.family()
		for _, err := range familyErrs {
			bad("affix family %s: %v", row.ID, err)
		}
		families = append(families, f)
	}

	drops := make([]loot.DropRule, 0, len(d.Drops))
	acts := map[int]bool{}
	for _, row := range d.Drops {
		if row.Act < 1 || acts[row.Act] {
			bad("drop rule for act %d is invalid or repeated", row.Act)
		}
		acts[row.Act] = true
		if row.Chance < 0 || row.Chance > 1 {
			bad("drop rule act %d: chance %v outside [0, 1]", row.Act, row.Chance)
		}
		rule := loot.DropRule{Act: row.Act, BossOnly: row.BossOnly, Chance: row.Chance}
		for _, w := range row.Weights {
			r, ok := loot.ParseRarity(w.Rarity)
			if !ok || w.Weight < 0 {
				bad("drop rule act %d: bad weight %s=%v", row.Act, w.Rarity, w.Weight)
				continue
			}
			rule.Weights = append(rule.Weights, loot.RarityWeight{Rarity: r, Weight: w.Weight})
		}
		drops = append(drops, rule)
	}
	return bases, families, drops, errs
}

func (row affixRow) family() (loot.AffixFamily, []error) {
	var errs []error
	f := loot.AffixFamily{
		ID:             row.ID,
		Name:           row.Name,
		Kind:           loot.AffixKind(row.Kind),
		ExclusiveGroup: row.Group,
		Effect:         loot.Effect(row.Effect),
		TargetFamily:   encounter.Family(row.TargetFamily),
		Percent:        row.Percent,
		Weight:         row.Weight,
	}
	if f.Kind != loot.AffixPrefix && f.Kind != loot.AffixSuffix {
		errs = append(errs, fmt.Errorf("unknown kind %q", row.Kind))
	}
	if !slices.Contains(effects, f.Effect) {
		errs = append(errs, fmt.Errorf("unknown effect %q", row.Effect))
	}
	switch f.Effect {
	case loot.EffectKindPercent:
		k, ok := action.ParseKind(row.TargetKind)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown target kind %q", row.TargetKind))
		}
		f.TargetKind = k
	case loot.EffectFamilyFlat, loot.EffectFamilyPercent:
		if row.TargetFamily == "" {
			errs = append(errs, errors.New("family effect needs a target family"))
		}
	}
	if f.Weight < 0 {
		errs = append(errs, errors.New("negative weight"))
	}

	for _, s := range row.Applies.Slots {
		if !slices.Contains(slotTypes, loot.SlotType(s)) {
			errs = append(errs, fmt.Errorf("unknown slot %q", s))
		}
		f.Applies.Slots = append(f.Applies.Slots, loot.SlotType(s))
	}
	for _, a := range row.Applies.AttackTypes {
		if !slices.Contains(attackTypes, loot.AttackType(a)) {
			errs = append(errs, fmt.Errorf("unknown attack type %q", a))
		}
		f.Applies.AttackTypes = append(f.Applies.AttackTypes, loot.AttackType(a))
	}
	f.Applies.RequiredTags = row.Applies.RequiredTags
	f.Applies.ForbiddenTags = row.Applies.ForbiddenTags

	if len(row.Tiers) == 0 {
		errs = append(errs, errors.New("no tiers"))
	}
	for _, t := range row.Tiers {
		if t.TotalLevel[1] != 0 && !t.TotalLevel.valid() {
			errs = append(errs, fmt.Errorf("tier %d: total level band %v", t.Tier, t.TotalLevel))
		}
		if !t.Value.valid() || !t.LevelDelta.valid() {
			errs = append(errs, fmt.Errorf("tier %d: value %v or level delta %v inverted", t.Tier, t.Value, t.LevelDelta))
		}
		f.Tiers = append(f.Tiers, loot.AffixTier{
			Tier:          t.Tier,
			MinTotalLevel: t.TotalLevel[0],
			MaxTotalLevel: t.TotalLevel[1],
			ValueMin:      t.Value[0],
			ValueMax:      t.Value[1],
			LevelDeltaMin: t.LevelDelta[0],
			LevelDeltaMax: t.LevelDelta[1],
			WeightMult:    t.WeightMult,
		})
	}
	return f, errs
}
