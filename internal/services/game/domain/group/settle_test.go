package group

import (
	"context"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"

	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
	"github.com/louisbranch/delving.space/internal/services/game/storage/sqlite"
)

func TestRewardsSplitByDamageShare(t *testing.T) {
	ledger := []storage.ContributionRecord{
		{PlayerID: "alice", Damage: 45, EventsCompleted: 2},
		{PlayerID: "bob", Damage: 35},
		{PlayerID: "carol", Damage: 20, EventsCompleted: 1},
	}
	got := Rewards(ledger, 80, 200, 15)
	want := []Reward{
		{PlayerID: "alice", Damage: 45, EventsCompleted: 2, Share: 0.45, Exp: 46, Gold: 90},
		{PlayerID: "bob", Damage: 35, Share: 0.35, Exp: 28, Gold: 70},
		{PlayerID: "carol", Damage: 20, EventsCompleted: 1, Share: 0.2, Exp: 18, Gold: 40},
	}
	if len(got) != len(want) {
		t.Fatalf("rewards = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reward %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRewardsSplitFiftyThirtyTwenty(t *testing.T) {
	ledger := []storage.ContributionRecord{
		{PlayerID: "alice", Damage: 50000},
		{PlayerID: "bob", Damage: 30000},
		{PlayerID: "carol", Damage: 20000},
	}
	want := []Reward{
		{PlayerID: "alice", Damage: 50000, Share: 0.5, Exp: 40, Gold: 100},
		{PlayerID: "bob", Damage: 30000, Share: 0.3, Exp: 24, Gold: 60},
		{PlayerID: "carol", Damage: 20000, Share: 0.2, Exp: 16, Gold: 40},
	}
	for range 2 {
		got := Rewards(ledger, 80, 200, 15)
		if len(got) != len(want) {
			t.Fatalf("rewards = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("reward %d = %+v, want %+v", i, got[i], want[i])
			}
		}
	}
}

func TestRewardsZeroDamageLedger(t *testing.T) {
	got := Rewards([]storage.ContributionRecord{{PlayerID: "idle", EventsCompleted: 3}}, 80, 200, 15)
	if len(got) != 1 || got[0].Exp != 0 || got[0].Gold != 0 || got[0].Share != 0 {
		t.Fatalf("rewards = %+v, want zero payout", got)
	}
}

func TestRewardsNeverExceedPool(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		damages := rapid.SliceOfN(rapid.IntRange(0, 10000), 1, 20).Draw(rt, "damages")
		ledger := make([]storage.ContributionRecord, len(damages))
		for i, d := range damages {
			ledger[i] = storage.ContributionRecord{PlayerID: string(rune('a' + i)), Damage: d}
		}
		gold, exp := 0, 0
		for _, r := range Rewards(ledger, 80, 200, 15) {
			if r.Gold < 0 || r.Exp < 0 {
				rt.Fatalf("negative reward %+v", r)
			}
			gold += r.Gold
			exp += r.Exp
		}
		if gold > 200 {
			rt.Fatalf("gold paid = %d, want <= 200", gold)
		}
		if exp > 80 {
			rt.Fatalf("exp paid = %d, want <= 80 without events", exp)
		}
	})
}

// soloKillStore commits a solo kill for one player right after settlement
// reads that player, once armed.
type soloKillStore struct {
	*sqlite.Store
	player string
	gold   int
	armed  atomic.Bool
}

func (s *soloKillStore) GetCharacter(ctx context.Context, id string) (character.Character, error) {
	char, err := s.Store.GetCharacter(ctx, id)
	if err != nil || id != s.player || !s.armed.CompareAndSwap(true, false) {
		return char, err
	}
	solo := char
	solo.Gold += s.gold
	if err := s.Store.PutCharacter(ctx, solo); err != nil {
		return character.Character{}, err
	}
	return char, nil
}

func TestSettlementKeepsConcurrentSoloRewards(t *testing.T) {
	var race *soloKillStore
	h := newHarness(t, func(o *Options) {
		race = &soloKillStore{Store: o.Store.(*sqlite.Store), player: "bob", gold: 1000}
		o.Store = race
	})
	h.player(t, "alice", 100)
	h.player(t, "bob", 100)
	h.start(t)
	h.handle(t, h.say("alice"))
	h.handle(t, h.say("bob"))
	ctx := context.Background()

	race.armed.Store(true)
	completions, err := h.coord.ForceComplete(ctx, testRoom)
	if err != nil {
		t.Fatalf("force complete: %v", err)
	}
	if race.armed.Load() {
		t.Fatal("expected the solo kill to land during settlement")
	}
	paid := map[string]int{}
	for _, c := range completions {
		paid[c.PlayerID] = c.Gold
	}
	if paid["bob"] == 0 || paid["alice"] == 0 {
		t.Fatalf("completions = %+v, want both paid", completions)
	}

	bob, err := h.store.GetCharacter(ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if want := 1000 + paid["bob"]; bob.Gold != want {
		t.Fatalf("bob gold = %d, want %d", bob.Gold, want)
	}
	alice, err := h.store.GetCharacter(ctx, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if alice.Gold != paid["alice"] {
		t.Fatalf("alice gold = %d, want %d", alice.Gold, paid["alice"])
	}
}
