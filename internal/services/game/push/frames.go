package push

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// Frame types exchanged with clients.
const (
	FrameSubscribe    = "subscribe"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribe  = "unsubscribe"
	FrameAction       = "action"
	FrameActionResult = "action.result"
	FrameCommand      = "command"
	FrameCommandReply = "command.result"
	FrameGroupUpdate  = "group.update"
	FrameCombatUpdate = "combat.update"
	FrameError        = "error"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	roomPrefix   = "room:"
	playerPrefix = "player:"
)

// RoomChannel is the channel carrying group updates for a room.
func RoomChannel(roomID string) string {
	return roomPrefix + roomID
}

// PlayerChannel is the channel carrying solo combat updates for a player.
func PlayerChannel(playerID string) string {
	return playerPrefix + playerID
}

func validChannel(channel string) bool {
	for _, prefix := range []string{roomPrefix, playerPrefix} {
		if id, ok := strings.CutPrefix(channel, prefix); ok {
			return strings.TrimSpace(id) != ""
		}
	}
	return false
}

type errorEnvelope struct {
	Error wireError `json:"error"`
}

type wireError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
}

type channelPayload struct {
	Channel string `json:"channel"`
}

type actionPayload struct {
	ActorID    string `json:"actor_id"`
	RoomID     string `json:"room_id,omitempty"`
	Kind       string `json:"kind"`
	Text       string `json:"text,omitempty"`
	TextLength int    `json:"text_length,omitempty"`
	IsReply    bool   `json:"is_reply,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

func (p actionPayload) action(now time.Time) (action.Action, bool) {
	kind, ok := action.ParseKind(p.Kind)
	if !ok || strings.TrimSpace(p.ActorID) == "" {
		return action.Action{}, false
	}
	return action.Action{
		ActorID:    strings.TrimSpace(p.ActorID),
		RoomID:     strings.TrimSpace(p.RoomID),
		Kind:       kind,
		TextLength: p.TextLength,
		Text:       p.Text,
		IsReply:    p.IsReply,
		Duration:   time.Duration(p.DurationMS) * time.Millisecond,
		At:         now,
	}, true
}

type actionResultPayload struct {
	Group  *groupPayload  `json:"group,omitempty"`
	Combat *combatPayload `json:"combat,omitempty"`
}

type eventPayload struct {
	TemplateID   string   `json:"template_id"`
	Trigger      string   `json:"trigger"`
	Name         string   `json:"name"`
	MinPlayers   int      `json:"min_players"`
	Seconds      int      `json:"duration_seconds"`
	StartedAt    string   `json:"started_at,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

func newEventPayload(e storage.ActiveEvent) eventPayload {
	out := eventPayload{
		TemplateID:   e.TemplateID,
		Trigger:      string(e.Trigger),
		Name:         e.Name,
		MinPlayers:   e.MinPlayers,
		Seconds:      int(e.Duration / time.Second),
		Participants: e.Participants,
	}
	if !e.StartedAt.IsZero() {
		out.StartedAt = e.StartedAt.UTC().Format(time.RFC3339)
	}
	return out
}

type completionPayload struct {
	PlayerID        string  `json:"player_id"`
	Damage          int     `json:"damage"`
	EventsCompleted int     `json:"events_completed"`
	Share           float64 `json:"share"`
	Exp             int     `json:"exp"`
	Gold            int     `json:"gold"`
	LevelsGained    int     `json:"levels_gained"`
}

type groupPayload struct {
	Outcome        string              `json:"outcome"`
	Reason         string              `json:"reason,omitempty"`
	SessionID      string              `json:"session_id,omitempty"`
	RoomID         string              `json:"room_id"`
	PlayerID       string              `json:"player_id"`
	Damage         int                 `json:"damage"`
	Crit           bool                `json:"crit,omitempty"`
	Stage          int                 `json:"stage"`
	MonsterHP      int                 `json:"monster_hp"`
	BaseHP         int                 `json:"base_hp"`
	Triggered      []eventPayload      `json:"triggered,omitempty"`
	EventJoined    bool                `json:"event_joined,omitempty"`
	Resolved       *eventPayload       `json:"resolved,omitempty"`
	ChainProgress  int                 `json:"chain_progress,omitempty"`
	ChainCompleted bool                `json:"chain_completed,omitempty"`
	StageCleared   bool                `json:"stage_cleared,omitempty"`
	Completed      bool                `json:"completed,omitempty"`
	Completions    []completionPayload `json:"completions,omitempty"`
}

func newGroupPayload(r group.MessageResult) *groupPayload {
	out := &groupPayload{
		Outcome:        string(r.Outcome),
		Reason:         r.Reason,
		SessionID:      r.SessionID,
		RoomID:         r.RoomID,
		PlayerID:       r.PlayerID,
		Damage:         r.Damage,
		Crit:           r.Crit,
		Stage:          r.Stage,
		MonsterHP:      r.MonsterHP,
		BaseHP:         r.BaseHP,
		EventJoined:    r.EventJoined,
		ChainProgress:  r.ChainProgress,
		ChainCompleted: r.ChainCompleted,
		StageCleared:   r.StageCleared,
		Completed:      r.Completed,
	}
	for _, e := range r.Triggered {
		out.Triggered = append(out.Triggered, newEventPayload(e))
	}
	if r.Resolved != nil {
		e := newEventPayload(*r.Resolved)
		out.Resolved = &e
	}
	for _, c := range r.Completions {
		out.Completions = append(out.Completions, newCompletionPayload(c))
	}
	return out
}

func newCompletionPayload(c storage.CompletionRecord) completionPayload {
	return completionPayload{
		PlayerID:        c.PlayerID,
		Damage:          c.Damage,
		EventsCompleted: c.EventsCompleted,
		Share:           c.Share,
		Exp:             c.Exp,
		Gold:            c.Gold,
		LevelsGained:    c.LevelsGained,
	}
}

type monsterPayload struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	Emoji     string `json:"emoji,omitempty"`
	Family    string `json:"family"`
	Boss      bool   `json:"boss,omitempty"`
	Level     int    `json:"level"`
	MaxHP     int    `json:"max_hp"`
	CurrentHP int    `json:"current_hp"`
}

func newMonsterPayload(m encounter.Monster) monsterPayload {
	return monsterPayload{
		Position:  m.Position,
		Name:      m.Name,
		Emoji:     m.Emoji,
		Family:    string(m.Family),
		Boss:      m.Boss,
		Level:     m.Level,
		MaxHP:     m.MaxHP,
		CurrentHP: m.CurrentHP,
	}
}

type itemPayload struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Slot    string   `json:"slot"`
	Rarity  string   `json:"rarity"`
	Level   int      `json:"level"`
	Affixes []string `json:"affixes,omitempty"`
}

func newItemPayload(it loot.Item) itemPayload {
	out := itemPayload{
		ID:     it.ID,
		Name:   it.Name,
		Slot:   string(it.Slot),
		Rarity: it.Rarity.String(),
		Level:  it.Level,
	}
	for _, a := range it.Affixes {
		out.Affixes = append(out.Affixes, a.Name)
	}
	return out
}

type combatPayload struct {
	Outcome     string          `json:"outcome"`
	Code        string          `json:"code,omitempty"`
	CharacterID string          `json:"character_id"`
	RunID       string          `json:"run_id"`
	Damage      int             `json:"damage"`
	Crit        bool            `json:"crit,omitempty"`
	Monster     monsterPayload  `json:"monster"`
	Next        *monsterPayload `json:"next,omitempty"`
	HP          int             `json:"hp"`
	MaxHP       int             `json:"max_hp"`
	Energy      int             `json:"energy"`
	Retaliation int             `json:"retaliation,omitempty"`
	Dodged      bool            `json:"dodged,omitempty"`
	Exp         int             `json:"exp,omitempty"`
	Gold        int             `json:"gold,omitempty"`
	Level       int             `json:"level"`
	Loot        []itemPayload   `json:"loot,omitempty"`
	RunStatus   string          `json:"run_status"`
	ActUnlocked int             `json:"act_unlocked,omitempty"`
}

func newCombatPayload(r combat.ActionResult) *combatPayload {
	out := &combatPayload{
		Outcome:     string(r.Outcome),
		Code:        string(r.Code),
		CharacterID: r.CharacterID,
		RunID:       r.RunID,
		Damage:      r.Damage.Total,
		Crit:        r.Damage.Crit,
		Monster:     newMonsterPayload(r.Monster),
		HP:          r.HP,
		MaxHP:       r.MaxHP,
		Energy:      r.Energy,
		Retaliation: r.Retaliation,
		Dodged:      r.Dodged,
		Exp:         r.Exp,
		Gold:        r.Gold,
		Level:       r.Level,
		RunStatus:   string(r.RunStatus),
		ActUnlocked: r.ActUnlocked,
	}
	if r.Next != nil {
		next := newMonsterPayload(*r.Next)
		out.Next = &next
	}
	for _, it := range r.Loot {
		out.Loot = append(out.Loot, newItemPayload(it))
	}
	return out
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("push: marshal frame payload: %v", err)
		return nil
	}
	return b
}
