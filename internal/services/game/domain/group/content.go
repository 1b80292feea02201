package group

import (
	"slices"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// StageCount is the number of stages of every session; the last is the boss.
const StageCount = 4

// StageDef names the monster of one stage.
type StageDef struct {
	Name  string
	Emoji string
}

// Template is a group dungeon definition.
type Template struct {
	ID           string
	Name         string
	HPMultiplier float64
	// UniqueEventKey selects the boss-unique event queued on the final stage.
	UniqueEventKey string
	Stages         []StageDef
}

// Matcher decides whether an action qualifies for an event or chain task.
// The zero Matcher accepts every action.
type Matcher struct {
	// Kinds qualify on their own, whatever the text says.
	Kinds []action.Kind
	// Symbols qualify when the text contains any of them.
	Symbols []string
	// Voice requires a voice clip lasting between MinDuration and
	// MaxDuration inclusive.
	Voice       bool
	MinDuration time.Duration
	MaxDuration time.Duration
}

// Matches reports whether a satisfies the matcher.
func (m Matcher) Matches(a action.Action) bool {
	if m.Voice {
		if a.Kind != action.KindVoice {
			return false
		}
		if a.Duration < m.MinDuration {
			return false
		}
		return m.MaxDuration <= 0 || a.Duration <= m.MaxDuration
	}
	if len(m.Kinds) == 0 && len(m.Symbols) == 0 {
		return true
	}
	if slices.Contains(m.Kinds, a.Kind) {
		return true
	}
	return len(m.Symbols) > 0 && a.ContainsAny(m.Symbols)
}

// EventTemplate is a group event that can be queued on a session.
type EventTemplate struct {
	ID      string
	Trigger storage.EventTrigger
	Name    string
	// Requirement is the player-facing description of what qualifies.
	Requirement string
	Matcher     Matcher
	MinPlayers  int
	Duration    time.Duration
	// HPPercent of the stage base HP is removed when the event resolves.
	HPPercent int
	Weight    float64
	// DungeonEventKey ties boss-unique events to a Template.UniqueEventKey.
	DungeonEventKey string
}

// queued returns the queue entry of the template.
func (e EventTemplate) queued(trigger storage.EventTrigger) storage.ActiveEvent {
	return storage.ActiveEvent{
		TemplateID: e.ID,
		Trigger:    trigger,
		Name:       e.Name,
		Duration:   e.Duration,
		MinPlayers: max(1, e.MinPlayers),
		HPPercent:  e.HPPercent,
	}
}

// ChainTask is one step of an engagement chain.
type ChainTask struct {
	ID          string
	Description string
	Matcher     Matcher
}
