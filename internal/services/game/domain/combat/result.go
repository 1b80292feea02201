package combat

import (
	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// Outcome names what a resolved action did.
type Outcome string

const (
	OutcomeHit          Outcome = "hit"
	OutcomeKill         Outcome = "kill"
	OutcomeKillBlocked  Outcome = "kill_blocked"
	OutcomeTooSmall     Outcome = "too_small"
	OutcomeRunCompleted Outcome = "run_completed"
	OutcomeRunFailed    Outcome = "run_failed"
)

// ActionResult is the outbound record of one resolved solo action.
type ActionResult struct {
	Outcome Outcome
	// Code is set for outcomes that did not deal a normal blow:
	// ACTION_TOO_SMALL and KILL_BLOCKED.
	Code        apperrors.Code
	CharacterID string
	RunID       string
	Seed        int64

	Damage          Damage
	Monster         encounter.Monster
	MonsterHPBefore int
	// Next is the monster the run advanced to after a kill.
	Next *encounter.Monster

	HP          int
	MaxHP       int
	Energy      int
	EnergySpent int

	// Retaliation is the damage of the monster's final blow; zero when
	// Dodged.
	Retaliation int
	Dodged      bool
	// RequiredHP is the HP needed to land a blocked killing blow.
	RequiredHP int
	// RequiredChars and GotChars describe a rejected short message.
	RequiredChars int
	GotChars      int

	Exp          int
	Gold         int
	LevelsGained int
	Level        int
	Loot         []loot.Item
	RunStatus    storage.RunStatus
	// ActUnlocked is the newly reachable act, zero when none.
	ActUnlocked int
	// PlusUnlocked is the plus level this completion opens, zero when none.
	PlusUnlocked int
}

// Status is the read-only view of a character's solo progress. Character
// is zero when the lookup failed.
type Status struct {
	Active    bool
	Run       storage.RunRecord
	Monster   encounter.Monster
	Character character.Character
}
