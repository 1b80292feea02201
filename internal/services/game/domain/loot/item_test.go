package loot

import "testing"

func TestSlotTypeFits(t *testing.T) {
	tests := []struct {
		slot SlotType
		at   EquipSlot
		want bool
	}{
		{SlotWeapon1H, EquipMainHand, true},
		{SlotWeapon1H, EquipOffHand, true},
		{SlotWeapon2H, EquipOffHand, false},
		{SlotOffhand, EquipOffHand, true},
		{SlotHelmet, EquipBody, false},
		{SlotRing, EquipRing2, true},
		{SlotAmulet, EquipNeck, true},
		{SlotBoots, EquipNone, false},
	}
	for _, tt := range tests {
		if got := tt.slot.Fits(tt.at); got != tt.want {
			t.Fatalf("%s.Fits(%q) = %v, want %v", tt.slot, tt.at, got, tt.want)
		}
	}
}

func TestParseRarity(t *testing.T) {
	for r := RarityCommon; r <= RarityLegendary; r++ {
		got, ok := ParseRarity(" " + r.String())
		if !ok || got != r {
			t.Fatalf("ParseRarity(%q) = %v, %v, want %v", r.String(), got, ok, r)
		}
	}
	if _, ok := ParseRarity("mythic"); ok {
		t.Fatal("expected mythic to be unknown")
	}
}
