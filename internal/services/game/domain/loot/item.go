// Package loot rolls equipment instances from static base and affix tables.
package loot

import (
	"strings"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
)

// Rarity ranks items from common to legendary.
type Rarity int

const (
	RarityCommon Rarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityUncommon:
		return "uncommon"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	default:
		return "unknown"
	}
}

// ParseRarity maps a rarity name back to its Rarity.
func ParseRarity(name string) (Rarity, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r := RarityCommon; r <= RarityLegendary; r++ {
		if r.String() == name {
			return r, true
		}
	}
	return 0, false
}

// Valid reports whether r is a known rarity.
func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= RarityLegendary
}

// AffixCount returns the inclusive affix count range for the rarity.
func (r Rarity) AffixCount() (int, int) {
	switch r {
	case RarityUncommon:
		return 1, 2
	case RarityRare:
		return 2, 3
	case RarityEpic:
		return 3, 4
	case RarityLegendary:
		return 4, 5
	default:
		return 0, 0
	}
}

// SlotType is the equipment category of an item base.
type SlotType string

const (
	SlotWeapon1H SlotType = "weapon_1h"
	SlotWeapon2H SlotType = "weapon_2h"
	SlotOffhand  SlotType = "offhand"
	SlotHelmet   SlotType = "helmet"
	SlotArmor    SlotType = "armor"
	SlotGloves   SlotType = "gloves"
	SlotBoots    SlotType = "boots"
	SlotRing     SlotType = "ring"
	SlotAmulet   SlotType = "amulet"
)

// IsWeapon reports whether the slot type holds a weapon.
func (s SlotType) IsWeapon() bool {
	return s == SlotWeapon1H || s == SlotWeapon2H
}

// EquipSlot is where an item is worn. The empty slot means unequipped.
type EquipSlot string

const (
	EquipNone     EquipSlot = ""
	EquipMainHand EquipSlot = "main_hand"
	EquipOffHand  EquipSlot = "off_hand"
	EquipHead     EquipSlot = "head"
	EquipBody     EquipSlot = "body"
	EquipHands    EquipSlot = "hands"
	EquipFeet     EquipSlot = "feet"
	EquipRing1    EquipSlot = "ring_1"
	EquipRing2    EquipSlot = "ring_2"
	EquipNeck     EquipSlot = "neck"
)

// Fits reports whether an item of slot type s can be worn in slot e.
// One-handed weapons also fit the off hand.
func (s SlotType) Fits(e EquipSlot) bool {
	switch s {
	case SlotWeapon1H:
		return e == EquipMainHand || e == EquipOffHand
	case SlotWeapon2H:
		return e == EquipMainHand
	case SlotOffhand:
		return e == EquipOffHand
	case SlotHelmet:
		return e == EquipHead
	case SlotArmor:
		return e == EquipBody
	case SlotGloves:
		return e == EquipHands
	case SlotBoots:
		return e == EquipFeet
	case SlotRing:
		return e == EquipRing1 || e == EquipRing2
	case SlotAmulet:
		return e == EquipNeck
	default:
		return false
	}
}

// AttackType decides which stat scales weapon damage.
type AttackType string

const (
	AttackMelee  AttackType = "melee"
	AttackRanged AttackType = "ranged"
	AttackMagic  AttackType = "magic"
)

// Effect is the typed key an affix or base stat modifies.
type Effect string

const (
	EffectStrength      Effect = "strength"
	EffectAgility       Effect = "agility"
	EffectIntelligence  Effect = "intelligence"
	EffectEndurance     Effect = "endurance"
	EffectLuck          Effect = "luck"
	EffectCharm         Effect = "charm"
	EffectDamageFlat    Effect = "damage_flat"
	EffectDamagePercent Effect = "damage_percent"
	// EffectKindPercent boosts damage of one action kind.
	EffectKindPercent Effect = "kind_percent"
	// EffectFamilyFlat and EffectFamilyPercent boost damage against one
	// monster family.
	EffectFamilyFlat    Effect = "family_flat"
	EffectFamilyPercent Effect = "family_percent"
)

// PrimaryStat reports whether the effect raises a core character stat.
func (e Effect) PrimaryStat() bool {
	switch e {
	case EffectStrength, EffectAgility, EffectIntelligence, EffectEndurance, EffectLuck, EffectCharm:
		return true
	default:
		return false
	}
}

// AffixKind separates name-prefix from name-suffix affixes.
type AffixKind string

const (
	AffixPrefix AffixKind = "prefix"
	AffixSuffix AffixKind = "suffix"
)

// Affix is one rolled modifier on an item.
type Affix struct {
	Name           string
	FamilyID       string
	Kind           AffixKind
	Effect         Effect
	TargetKind     action.Kind
	TargetFamily   encounter.Family
	Value          int
	Percent        bool
	Tier           int
	ExclusiveGroup string
	LevelDelta     int
}

// Item is a generated equipment instance.
type Item struct {
	ID            string
	OwnerID       string
	BaseID        string
	Name          string
	Slot          SlotType
	WeaponType    string
	AttackType    AttackType
	Rarity        Rarity
	Tier          int
	Level         int
	TotalLevel    int
	DamageMin     int
	DamageMax     int
	AttackSpeed   int
	BaseStat      Effect
	BaseStatValue int
	Value         int
	Equipped      EquipSlot
	Affixes       []Affix
}

// IsWeapon reports whether the item is a weapon.
func (it Item) IsWeapon() bool {
	return it.Slot.IsWeapon()
}

func itemName(base ItemBase, affixes []Affix) string {
	var prefix, suffix string
	for _, a := range affixes {
		if a.Kind == AffixPrefix && prefix == "" {
			prefix = a.Name
		}
		if a.Kind == AffixSuffix && suffix == "" {
			suffix = a.Name
		}
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, base.Name, suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
