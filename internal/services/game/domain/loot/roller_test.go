package loot

import (
	"testing"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"pgregory.net/rapid"
)

func testBases() []ItemBase {
	return []ItemBase{
		{ID: "short_sword", Name: "Short Sword", Slot: SlotWeapon1H, WeaponType: "sword", AttackType: AttackMelee,
			Tags: []string{"blade"}, LevelMin: 1, DamageMin: 4, DamageMax: 8, AttackSpeed: 3},
		{ID: "long_bow", Name: "Long Bow", Slot: SlotWeapon2H, WeaponType: "bow", AttackType: AttackRanged,
			Tags: []string{"bow"}, LevelMin: 6, DamageMin: 6, DamageMax: 12, AttackSpeed: 5},
		{ID: "leather_cap", Name: "Leather Cap", Slot: SlotHelmet, Tags: []string{"light"}, LevelMin: 1,
			BaseStat: EffectEndurance, BaseStatValue: 2},
		{ID: "war_helm", Name: "War Helm", Slot: SlotHelmet, Tags: []string{"heavy"}, LevelMin: 21,
			BaseStat: EffectEndurance, BaseStatValue: 8},
	}
}

func testFamilies() []AffixFamily {
	tiers := []AffixTier{
		{Tier: 1, MinTotalLevel: 1, MaxTotalLevel: 10, ValueMin: 1, ValueMax: 4, LevelDeltaMin: 1, LevelDeltaMax: 3, WeightMult: 1},
		{Tier: 2, MinTotalLevel: 6, MaxTotalLevel: 20, ValueMin: 4, ValueMax: 9, LevelDeltaMin: 2, LevelDeltaMax: 5, WeightMult: 0.8},
		{Tier: 3, MinTotalLevel: 11, ValueMin: 8, ValueMax: 15, LevelDeltaMin: 4, LevelDeltaMax: 8, WeightMult: 0.5},
	}
	return []AffixFamily{
		{ID: "sharp", Name: "Sharp", Kind: AffixPrefix, ExclusiveGroup: "damage", Effect: EffectDamageFlat,
			Applies: Applicability{Slots: []SlotType{SlotWeapon1H, SlotWeapon2H}}, Weight: 100, Tiers: tiers},
		{ID: "cruel", Name: "Cruel", Kind: AffixPrefix, ExclusiveGroup: "damage", Effect: EffectDamagePercent, Percent: true,
			Applies: Applicability{Slots: []SlotType{SlotWeapon1H, SlotWeapon2H}}, Weight: 80, Tiers: tiers},
		{ID: "loud", Name: "Loud", Kind: AffixPrefix, Effect: EffectKindPercent, TargetKind: action.KindVoice, Percent: true,
			Weight: 40, Tiers: tiers},
		{ID: "of_bear", Name: "of the Bear", Kind: AffixSuffix, ExclusiveGroup: "body", Effect: EffectStrength,
			Weight: 100, Tiers: tiers},
		{ID: "of_ox", Name: "of the Ox", Kind: AffixSuffix, ExclusiveGroup: "body", Effect: EffectEndurance,
			Weight: 100, Tiers: tiers},
		{ID: "of_fox", Name: "of the Fox", Kind: AffixSuffix, Effect: EffectAgility,
			Applies: Applicability{ForbiddenTags: []string{"heavy"}}, Weight: 100, Tiers: tiers},
		{ID: "of_fletcher", Name: "of the Fletcher", Kind: AffixSuffix, Effect: EffectDamageFlat,
			Applies: Applicability{AttackTypes: []AttackType{AttackRanged}, RequiredTags: []string{"bow"}}, Weight: 60, Tiers: tiers},
		{ID: "of_luck", Name: "of Luck", Kind: AffixSuffix, Effect: EffectLuck, Weight: 50, Tiers: tiers},
	}
}

func testRoller(t testing.TB) *Roller {
	t.Helper()
	r, err := NewRoller(testBases(), testFamilies())
	if err != nil {
		t.Fatalf("new roller: %v", err)
	}
	return r
}

func TestRollAffixExclusivity(t *testing.T) {
	roller := testRoller(t)
	rapid.Check(t, func(rt *rapid.T) {
		rarity := Rarity(rapid.IntRange(1, 5).Draw(rt, "rarity"))
		level := rapid.IntRange(1, 60).Draw(rt, "level")
		tierCap := rapid.IntRange(1, 10).Draw(rt, "tierCap")
		rng := random.New(rapid.Int64().Draw(rt, "seed"))

		item, err := roller.Roll(rng, rarity, level, tierCap)
		if err != nil {
			rt.Fatalf("roll: %v", err)
		}
		families := map[string]bool{}
		groups := map[string]bool{}
		for _, a := range item.Affixes {
			if families[a.FamilyID] {
				rt.Fatalf("family %s rolled twice", a.FamilyID)
			}
			families[a.FamilyID] = true
			if a.ExclusiveGroup != "" {
				if groups[a.ExclusiveGroup] {
					rt.Fatalf("exclusivity group %s rolled twice", a.ExclusiveGroup)
				}
				groups[a.ExclusiveGroup] = true
			}
			if a.Tier > tierCap {
				rt.Fatalf("affix tier %d above cap %d", a.Tier, tierCap)
			}
		}
		_, hi := rarity.AffixCount()
		if len(item.Affixes) > hi {
			rt.Fatalf("affixes = %d, want <= %d", len(item.Affixes), hi)
		}
	})
}

func TestRollAffixCountByRarity(t *testing.T) {
	roller := testRoller(t)
	rng := random.New(11)
	for i := 0; i < 200; i++ {
		common, err := roller.Roll(rng, RarityCommon, 5, 2)
		if err != nil {
			t.Fatalf("roll common: %v", err)
		}
		if len(common.Affixes) != 0 {
			t.Fatalf("common affixes = %d, want 0", len(common.Affixes))
		}
		rare, err := roller.Roll(rng, RarityRare, 5, 2)
		if err != nil {
			t.Fatalf("roll rare: %v", err)
		}
		if len(rare.Affixes) < 2 || len(rare.Affixes) > 3 {
			t.Fatalf("rare affixes = %d, want 2..3", len(rare.Affixes))
		}
	}
}

func TestRollPrefersPrefixFirst(t *testing.T) {
	roller := testRoller(t)
	rng := random.New(3)
	for i := 0; i < 100; i++ {
		item, err := roller.Roll(rng, RarityUncommon, 5, 2)
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		if len(item.Affixes) == 0 {
			t.Fatal("uncommon should roll at least one affix")
		}
		// "loud" has no slot restriction so a prefix is always eligible.
		if item.Affixes[0].Kind != AffixPrefix {
			t.Fatalf("first affix kind = %s, want prefix", item.Affixes[0].Kind)
		}
	}
}

func TestRollRespectsApplicability(t *testing.T) {
	roller := testRoller(t)
	rng := random.New(21)
	for i := 0; i < 300; i++ {
		item, err := roller.Roll(rng, RarityLegendary, 25, 10)
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		for _, a := range item.Affixes {
			if a.FamilyID == "of_fletcher" && item.BaseID != "long_bow" {
				t.Fatalf("fletcher affix on %s", item.BaseID)
			}
			if (a.FamilyID == "sharp" || a.FamilyID == "cruel") && !item.Slot.IsWeapon() {
				t.Fatalf("weapon affix on %s", item.BaseID)
			}
			if a.FamilyID == "of_fox" && item.BaseID == "war_helm" {
				t.Fatal("forbidden tag ignored")
			}
		}
	}
}

func TestRollTotalLevelAndValue(t *testing.T) {
	roller := testRoller(t)
	rng := random.New(5)
	for i := 0; i < 100; i++ {
		item, err := roller.Roll(rng, RarityEpic, 8, 4)
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		var base ItemBase
		for _, b := range testBases() {
			if b.ID == item.BaseID {
				base = b
			}
		}
		want := base.LevelMin
		for _, a := range item.Affixes {
			want += a.LevelDelta
		}
		if item.TotalLevel != want {
			t.Fatalf("total level = %d, want %d", item.TotalLevel, want)
		}
		if item.Value != item.TotalLevel*int(RarityEpic)*10 {
			t.Fatalf("value = %d, want %d", item.Value, item.TotalLevel*int(RarityEpic)*10)
		}
	}
}

func TestRollBaseNeverAboveTarget(t *testing.T) {
	roller := testRoller(t)
	rng := random.New(8)
	for i := 0; i < 200; i++ {
		item, err := roller.Roll(rng, RarityCommon, 3, 10)
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		if item.BaseID == "long_bow" || item.BaseID == "war_helm" {
			t.Fatalf("base %s above target level", item.BaseID)
		}
	}
}

func TestRollNoEligibleBase(t *testing.T) {
	roller, err := NewRoller([]ItemBase{{ID: "late", Name: "Late", Slot: SlotRing, LevelMin: 30}}, nil)
	if err != nil {
		t.Fatalf("new roller: %v", err)
	}
	_, err = roller.Roll(random.New(1), RarityRare, 10, 2)
	if apperrors.CodeOf(err) != apperrors.CodeNoEligibleBase {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeNoEligibleBase)
	}
}

func TestRollRejectsUnknownRarity(t *testing.T) {
	_, err := testRoller(t).Roll(random.New(1), Rarity(9), 10, 2)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeInvalidArgument)
	}
}

func TestNewRollerValidatesTables(t *testing.T) {
	_, err := NewRoller(nil, []AffixFamily{{ID: "bad", Kind: AffixPrefix, Tiers: []AffixTier{{ValueMin: 5, ValueMax: 1}}}})
	if err == nil {
		t.Fatal("expected inverted range error")
	}
	_, err = NewRoller(nil, []AffixFamily{{ID: "bad", Kind: "aspect"}})
	if err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestLevelDeltas(t *testing.T) {
	if got := PrimaryStatLevelDelta(0); got != 0 {
		t.Fatalf("PrimaryStatLevelDelta(0) = %d, want 0", got)
	}
	if got := PrimaryStatLevelDelta(9); got != 4 {
		t.Fatalf("PrimaryStatLevelDelta(9) = %d, want 4", got)
	}
	if got := PrimaryStatLevelDelta(100); got != 8 {
		t.Fatalf("PrimaryStatLevelDelta(100) = %d, want 8", got)
	}

	tier := AffixTier{ValueMin: 10, ValueMax: 20, LevelDeltaMin: 2, LevelDeltaMax: 6}
	tests := []struct {
		value int
		want  int
	}{
		{10, 2},
		{15, 4},
		{20, 6},
		{25, 6},
	}
	for _, tt := range tests {
		if got := InterpolatedLevelDelta(tier, tt.value); got != tt.want {
			t.Fatalf("InterpolatedLevelDelta(%d) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestWeaponDamageScalesWithinBand(t *testing.T) {
	base := testBases()[0]
	lowMin, lowMax := weaponDamage(base, 6, nil)
	highMin, highMax := weaponDamage(base, 10, nil)
	if highMin <= lowMin || highMax <= lowMax {
		t.Fatalf("band top %d-%d should exceed band bottom %d-%d", highMin, highMax, lowMin, lowMax)
	}

	flatMin, _ := weaponDamage(base, 1, []Affix{{Effect: EffectDamageFlat, Value: 3}})
	if flatMin != base.DamageMin+3 {
		t.Fatalf("flat min = %d, want %d", flatMin, base.DamageMin+3)
	}
	pctMin, _ := weaponDamage(base, 1, []Affix{{Effect: EffectDamagePercent, Value: 50}})
	if pctMin != 6 {
		t.Fatalf("percent min = %d, want 6", pctMin)
	}
}

func TestItemName(t *testing.T) {
	name := itemName(ItemBase{Name: "Short Sword"}, []Affix{
		{Name: "of the Bear", Kind: AffixSuffix},
		{Name: "Sharp", Kind: AffixPrefix},
	})
	if name != "Sharp Short Sword of the Bear" {
		t.Fatalf("name = %q", name)
	}
}

func TestTierHelpers(t *testing.T) {
	tests := []struct{ level, tier int }{{1, 1}, {5, 1}, {6, 2}, {50, 10}, {99, 10}}
	for _, tt := range tests {
		if got := TierFromLevel(tt.level); got != tt.tier {
			t.Fatalf("TierFromLevel(%d) = %d, want %d", tt.level, got, tt.tier)
		}
	}
	if TierCapForAct(1) != 2 || TierCapForAct(5) != 10 || TierCapForAct(9) != 10 {
		t.Fatal("unexpected tier caps")
	}
}
