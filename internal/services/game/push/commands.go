package push

import (
	"strings"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// Command names carried by command frames. Names under "admin." are
// refused unless the hub allows admin commands.
const (
	CommandCreateCharacter = "character.create"
	CommandStartRun        = "run.start"
	CommandAbandonRun      = "run.abandon"
	CommandEquip           = "item.equip"
	CommandGroupStart      = "group.start"
	CommandChainStart      = "group.chain"
	CommandDebugStart      = "admin.start"
	CommandForceComplete   = "admin.force_complete"
	CommandSkipStage       = "admin.skip_stage"
	CommandSetMonsterHP    = "admin.set_hp"
	CommandTriggerEvent    = "admin.trigger_event"
	CommandDebugInfo       = "admin.debug"
)

// roomCommands need a room_id.
var roomCommands = map[string]bool{
	CommandGroupStart:    true,
	CommandChainStart:    true,
	CommandDebugStart:    true,
	CommandForceComplete: true,
	CommandSkipStage:     true,
	CommandSetMonsterHP:  true,
	CommandTriggerEvent:  true,
	CommandDebugInfo:     true,
}

var soloCommands = map[string]bool{
	CommandCreateCharacter: true,
	CommandStartRun:        true,
	CommandAbandonRun:      true,
	CommandEquip:           true,
}

func adminCommand(name string) bool {
	return strings.HasPrefix(name, "admin.")
}

// Command is one player or operator request received over the socket.
// Only the fields its Name uses are read.
type Command struct {
	Name    string
	ActorID string
	RoomID  string

	CharacterName string
	Act           int
	Dungeon       int
	Plus          int
	ItemID        string
	Slot          loot.EquipSlot

	TemplateID string
	Percent    int
	Trigger    storage.EventTrigger
}

// CommandResult is what one command produced. Each command sets the
// fields it concerns.
type CommandResult struct {
	Character   *character.Character
	Run         *storage.RunRecord
	Session     *storage.SessionRecord
	Chain       *group.Chain
	Completions []storage.CompletionRecord
	Event       *storage.ActiveEvent
	Debug       *group.DebugInfo
}

type commandPayload struct {
	Name          string `json:"name"`
	ActorID       string `json:"actor_id"`
	RoomID        string `json:"room_id,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
	Act           int    `json:"act,omitempty"`
	Dungeon       int    `json:"dungeon,omitempty"`
	Plus          int    `json:"plus,omitempty"`
	ItemID        string `json:"item_id,omitempty"`
	Slot          string `json:"slot,omitempty"`
	TemplateID    string `json:"template_id,omitempty"`
	Percent       int    `json:"percent,omitempty"`
	Trigger       string `json:"trigger,omitempty"`
}

// command validates the payload shape. Domain rules such as dungeon
// numbers or slot fit are left to the dispatcher.
func (p commandPayload) command() (Command, string) {
	c := Command{
		Name:          strings.TrimSpace(p.Name),
		ActorID:       strings.TrimSpace(p.ActorID),
		RoomID:        strings.TrimSpace(p.RoomID),
		CharacterName: strings.TrimSpace(p.CharacterName),
		Act:           p.Act,
		Dungeon:       p.Dungeon,
		Plus:          p.Plus,
		ItemID:        strings.TrimSpace(p.ItemID),
		Slot:          loot.EquipSlot(strings.TrimSpace(p.Slot)),
		TemplateID:    strings.TrimSpace(p.TemplateID),
		Percent:       p.Percent,
		Trigger:       storage.EventTrigger(strings.TrimSpace(p.Trigger)),
	}
	switch {
	case !roomCommands[c.Name] && !soloCommands[c.Name]:
		return Command{}, "unknown command"
	case c.ActorID == "":
		return Command{}, "command needs an actor"
	case roomCommands[c.Name] && c.RoomID == "":
		return Command{}, "command needs a room"
	case c.Name == CommandCreateCharacter && c.CharacterName == "":
		return Command{}, "character needs a name"
	case c.Name == CommandEquip && (c.ItemID == "" || c.Slot == loot.EquipNone):
		return Command{}, "equip needs an item and a slot"
	case c.Name == CommandDebugStart && c.TemplateID == "":
		return Command{}, "debug start needs a template"
	case c.Name == CommandTriggerEvent && c.Trigger == "":
		return Command{}, "trigger event needs a trigger"
	}
	return c, ""
}

type commandResultPayload struct {
	Name        string              `json:"name"`
	Character   *characterPayload   `json:"character,omitempty"`
	Run         *runPayload         `json:"run,omitempty"`
	Session     *sessionPayload     `json:"session,omitempty"`
	Chain       *chainPayload       `json:"chain,omitempty"`
	Completions []completionPayload `json:"completions,omitempty"`
	Event       *eventPayload       `json:"event,omitempty"`
	Debug       string              `json:"debug,omitempty"`
}

func newCommandResultPayload(name, locale string, r CommandResult) commandResultPayload {
	out := commandResultPayload{Name: name}
	if r.Character != nil {
		c := newCharacterPayload(*r.Character)
		out.Character = &c
	}
	if r.Run != nil {
		run := newRunPayload(*r.Run)
		out.Run = &run
	}
	if r.Session != nil {
		s := newSessionPayload(*r.Session)
		out.Session = &s
	}
	if r.Chain != nil {
		chain := chainPayload{
			SessionID: r.Chain.SessionID,
			ExpiresAt: r.Chain.ExpiresAt.UTC().Format(time.RFC3339),
		}
		for _, t := range r.Chain.Tasks {
			chain.Tasks = append(chain.Tasks, t.Description)
		}
		out.Chain = &chain
	}
	for _, c := range r.Completions {
		out.Completions = append(out.Completions, newCompletionPayload(c))
	}
	if r.Event != nil {
		e := newEventPayload(*r.Event)
		out.Event = &e
	}
	if r.Debug != nil {
		out.Debug = r.Debug.Format(locale)
	}
	return out
}

type characterPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Level     int    `json:"level"`
	Exp       int    `json:"exp"`
	ExpToNext int    `json:"exp_to_next"`
	Gold      int    `json:"gold"`
	HP        int    `json:"hp"`
	MaxHP     int    `json:"max_hp"`
	Energy    int    `json:"energy"`
	MaxEnergy int    `json:"max_energy"`
	Act       int    `json:"act"`
}

func newCharacterPayload(c character.Character) characterPayload {
	return characterPayload{
		ID:        c.ID,
		Name:      c.Name,
		Level:     c.Level,
		Exp:       c.Exp,
		ExpToNext: character.ExpToNext(c.Level),
		Gold:      c.Gold,
		HP:        c.HP,
		MaxHP:     c.MaxHP,
		Energy:    c.Energy,
		MaxEnergy: c.MaxEnergy,
		Act:       c.CurrentAct,
	}
}

type runPayload struct {
	ID        string           `json:"id"`
	Act       int              `json:"act"`
	Dungeon   int              `json:"dungeon"`
	PlusLevel int              `json:"plus_level,omitempty"`
	Position  int              `json:"position"`
	Status    string           `json:"status"`
	Monsters  []monsterPayload `json:"monsters"`
}

func newRunPayload(r storage.RunRecord) runPayload {
	out := runPayload{
		ID:        r.ID,
		Act:       r.Act,
		Dungeon:   r.Dungeon,
		PlusLevel: r.PlusLevel,
		Position:  r.Position,
		Status:    string(r.Status),
	}
	for _, m := range r.Monsters {
		out.Monsters = append(out.Monsters, newMonsterPayload(m))
	}
	return out
}

type sessionPayload struct {
	ID         string         `json:"id"`
	RoomID     string         `json:"room_id"`
	TemplateID string         `json:"template_id"`
	Stage      int            `json:"stage"`
	MonsterHP  int            `json:"monster_hp"`
	BaseHP     int            `json:"base_hp"`
	Status     string         `json:"status"`
	Events     []eventPayload `json:"events,omitempty"`
}

func newSessionPayload(s storage.SessionRecord) sessionPayload {
	out := sessionPayload{
		ID:         s.ID,
		RoomID:     s.RoomID,
		TemplateID: s.TemplateID,
		Stage:      s.Stage,
		MonsterHP:  s.CurrentHP,
		BaseHP:     s.StageBase(),
		Status:     string(s.Status),
	}
	for _, e := range s.Events {
		out.Events = append(out.Events, newEventPayload(e))
	}
	return out
}

type chainPayload struct {
	SessionID string   `json:"session_id"`
	Tasks     []string `json:"tasks"`
	ExpiresAt string   `json:"expires_at"`
}
