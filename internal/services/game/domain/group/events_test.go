package group

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

func (h *harness) media(player string, kind action.Kind, d time.Duration) action.Action {
	h.clock.Advance(3 * time.Second)
	return action.Action{ActorID: player, RoomID: testRoom, Kind: kind, Duration: d, At: h.clock.Now()}
}

func TestCrossedThresholds(t *testing.T) {
	tests := []struct {
		name  string
		hp    int
		f50   bool
		f10   bool
		want  []storage.EventTrigger
		after [2]bool
	}{
		{"above half", 301, false, false, nil, [2]bool{false, false}},
		{"at half", 300, false, false, []storage.EventTrigger{storage.TriggerHP50}, [2]bool{true, false}},
		{"both at once", 60, false, false, []storage.EventTrigger{storage.TriggerHP50, storage.TriggerHP10}, [2]bool{true, true}},
		{"half already fired", 100, true, false, nil, [2]bool{true, false}},
		{"ten after half", 59, true, false, []storage.EventTrigger{storage.TriggerHP10}, [2]bool{true, true}},
		{"defeated fires nothing", 0, false, false, nil, [2]bool{false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storage.SessionRecord{
				Stage: 1, Stages: []storage.StageMonster{{BaseHP: 600}},
				CurrentHP: tt.hp, Fired50: tt.f50, Fired10: tt.f10,
			}
			got := crossedThresholds(&s)
			if len(got) != len(tt.want) {
				t.Fatalf("fired = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("fired = %v, want %v", got, tt.want)
				}
			}
			if s.Fired50 != tt.after[0] || s.Fired10 != tt.after[1] {
				t.Fatalf("flags = %v/%v, want %v", s.Fired50, s.Fired10, tt.after)
			}
		})
	}
}

func TestEventResolvesAtQuota(t *testing.T) {
	h := newHarness(t)
	h.player(t, "alice", 100)
	h.start(t)
	for range 3 {
		h.handle(t, h.say("alice"))
	}

	joined := h.handle(t, h.media("alice", action.KindSticker, 0))
	if !joined.EventJoined || joined.Resolved != nil || joined.Damage != 90 {
		t.Fatalf("first sticker = %+v, want joined without resolution", joined)
	}
	repeat := h.media("alice", action.KindSticker, 0)
	repeat.At = repeat.At.Add(-2 * time.Second)
	if again := h.handle(t, repeat); again.EventJoined || again.Reason != ReasonCooldown {
		t.Fatalf("repeat = %+v, want cooldown without joining twice", again)
	}

	// ghost has no character: no damage, but still completes the quota.
	res := h.handle(t, h.media("ghost", action.KindSticker, 0))
	if res.Outcome != OutcomeParticipated || res.Resolved == nil || res.Resolved.TemplateID != "rally" {
		t.Fatalf("resolution = %+v, want rally resolved", res)
	}
	// 600 - 300 - 90 - 150 (25% of base) lands in the 10% band.
	if res.MonsterHP != 60 {
		t.Fatalf("hp = %d, want 60", res.MonsterHP)
	}
	if len(res.Triggered) != 1 || res.Triggered[0].Trigger != storage.TriggerHP10 {
		t.Fatalf("triggered = %+v, want hp_10", res.Triggered)
	}

	rows, err := h.store.ListContributions(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("list contributions: %v", err)
	}
	credited := map[string]int{}
	for _, row := range rows {
		credited[row.PlayerID] = row.EventsCompleted
	}
	if credited["alice"] != 1 || credited["ghost"] != 1 {
		t.Fatalf("credited = %v, want alice and ghost", credited)
	}
}

func TestEventExpiresAtDeadline(t *testing.T) {
	h := newHarness(t)
	h.player(t, "alice", 100)
	h.start(t)
	for range 3 {
		h.handle(t, h.say("alice"))
	}
	if n := len(h.session(t).Events); n != 1 {
		t.Fatalf("events = %d, want 1", n)
	}
	h.clock.Advance(time.Minute)
	res := h.handle(t, h.media("alice", action.KindSticker, 0))
	if res.EventJoined {
		t.Fatal("joined an expired event")
	}
	if n := len(h.session(t).Events); n != 0 {
		t.Fatalf("events = %d, want expired", n)
	}
}

func TestEngagementChain(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Config.StageBaseHP = [StageCount]int{5000, 5000, 5000, 5000}
	})
	h.player(t, "alice", 100)
	h.start(t)
	ctx := context.Background()

	chain, err := h.coord.StartChain(ctx, testRoom)
	if err != nil {
		t.Fatalf("start chain: %v", err)
	}
	if len(chain.Tasks) != 3 || !chain.ExpiresAt.Equal(chain.StartedAt.Add(time.Minute)) {
		t.Fatalf("chain = %+v, want 3 tasks for one minute", chain)
	}
	_, err = h.coord.StartChain(ctx, testRoom)
	wantCode(t, err, apperrors.CodeChainAlreadyActive)

	if res := h.handle(t, h.say("alice")); res.ChainProgress != 0 {
		t.Fatalf("text advanced the chain to %d", res.ChainProgress)
	}

	actionFor := map[string]action.Action{}
	var res MessageResult
	for i, task := range chain.Tasks {
		switch task.ID {
		case "photo":
			actionFor[task.ID] = h.media("alice", action.KindPhoto, 0)
		case "gif":
			actionFor[task.ID] = h.media("alice", action.KindGIF, 0)
		case "voice":
			actionFor[task.ID] = h.media("alice", action.KindVoice, 10*time.Second)
		}
		before := h.session(t).CurrentHP
		res = h.handle(t, actionFor[task.ID])
		if res.ChainProgress != i+1 {
			t.Fatalf("task %s progress = %d, want %d", task.ID, res.ChainProgress, i+1)
		}
		if i == len(chain.Tasks)-1 {
			if !res.ChainCompleted {
				t.Fatal("expected chain completion")
			}
			if want := before - res.Damage - 1750; res.MonsterHP != want {
				t.Fatalf("hp = %d, want %d after the 35%% chain bonus", res.MonsterHP, want)
			}
		}
	}

	_, err = h.coord.StartChain(ctx, testRoom)
	if e := wantCode(t, err, apperrors.CodeCooldownActive); e.Metadata["Scope"] != "chain" {
		t.Fatalf("scope = %q, want chain", e.Metadata["Scope"])
	}
}

func TestEngagementChainExpires(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	ctx := context.Background()
	if _, err := h.coord.StartChain(ctx, testRoom); err != nil {
		t.Fatalf("start chain: %v", err)
	}
	h.clock.Advance(time.Minute)
	if _, err := NewMaintainer(h.coord, nil).Tick(ctx, h.clock.Now()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if h.session(t).Chain != nil {
		t.Fatal("expected the chain to expire")
	}
	_, err := h.coord.StartChain(ctx, testRoom)
	wantCode(t, err, apperrors.CodeCooldownActive)
}

func TestStartChainRequiresPool(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Chains = nil })
	h.start(t)
	_, err := h.coord.StartChain(context.Background(), testRoom)
	wantCode(t, err, apperrors.CodePoolInvalid)
}
