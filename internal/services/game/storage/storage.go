package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrActiveRunExists indicates a second active run for the same character.
var ErrActiveRunExists = apperrors.New(apperrors.CodeRunAlreadyActive, "active run already exists for character")

// ErrActiveSessionExists indicates a second active group session for the
// same room.
var ErrActiveSessionExists = apperrors.New(apperrors.CodeSessionAlreadyActive, "active session already exists for room")

// ErrConflict indicates a character row changed since it was read. The
// caller re-reads and retries.
var ErrConflict = apperrors.New(apperrors.CodeConflict, "character changed concurrently")

// RunStatus is the lifecycle state of a dungeon run.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunAbandoned RunStatus = "abandoned"
)

// Ended reports whether the run reached a terminal state.
func (s RunStatus) Ended() bool {
	return s == RunCompleted || s == RunFailed || s == RunAbandoned
}

// RunRecord is one character's generated dungeon run.
type RunRecord struct {
	ID           string
	CharacterID  string
	Act          int
	Dungeon      int
	LocationType string
	Seed         int64
	PlusLevel    int
	Budget       int
	Monsters     []encounter.Monster
	// Position is the 1-based index of the current monster.
	Position    int
	TotalDamage int
	GoldGained  int
	ExpGained   int
	EnergySpent int
	HPLost      int
	Status      RunStatus
	StartedAt   time.Time
	EndedAt     *time.Time
}

// Current returns the monster at Position.
func (r RunRecord) Current() (encounter.Monster, bool) {
	if r.Position < 1 || r.Position > len(r.Monsters) {
		return encounter.Monster{}, false
	}
	return r.Monsters[r.Position-1], true
}

// EndlessProgress tracks plus-level progression for one dungeon.
type EndlessProgress struct {
	CharacterID  string
	Act          int
	Dungeon      int
	UnlockedPlus int
	BestPlus     int
	UpdatedAt    time.Time
}

// RunCommit is the set of rows one resolved action writes atomically.
type RunCommit struct {
	Character character.Character
	Run       RunRecord
	// Items are inserted; loot rolled on run completion.
	Items    []loot.Item
	Progress *EndlessProgress
	Event    *BattleEvent
}

// CharacterStore persists character progression.
type CharacterStore interface {
	// PutCharacter inserts or replaces a character regardless of Version.
	PutCharacter(ctx context.Context, c character.Character) error
	GetCharacter(ctx context.Context, id string) (character.Character, error)
}

// InventoryStore persists generated items.
type InventoryStore interface {
	PutItem(ctx context.Context, item loot.Item) error
	GetItem(ctx context.Context, id string) (loot.Item, error)
	// ListItems returns every item owned by ownerID.
	ListItems(ctx context.Context, ownerID string) ([]loot.Item, error)
	// ListEquipped returns the owner's items with a non-empty equip slot.
	ListEquipped(ctx context.Context, ownerID string) ([]loot.Item, error)
	// EquipItem moves the item into slot, clearing whatever held it.
	EquipItem(ctx context.Context, ownerID, itemID string, slot loot.EquipSlot) error
	DeleteItem(ctx context.Context, ownerID, itemID string) error
}

// RunStore persists dungeon runs and endless progression.
type RunStore interface {
	// CreateRun inserts an active run. It returns ErrActiveRunExists when the
	// character already has one.
	CreateRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	GetActiveRun(ctx context.Context, characterID string) (RunRecord, error)
	// AbandonRun ends the character's active run. Ended runs are untouched;
	// ErrNotFound is returned when no run is active.
	AbandonRun(ctx context.Context, characterID string, at time.Time) (RunRecord, error)
	// CommitRunAction writes every row of commit in one transaction. It
	// returns ErrConflict when the character changed since it was read.
	CommitRunAction(ctx context.Context, commit RunCommit) error
	GetEndlessProgress(ctx context.Context, characterID string, act, dungeon int) (EndlessProgress, error)
}

// SessionStatus is the lifecycle state of a group session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// SessionOutcome records how a completed group session ended.
type SessionOutcome string

const (
	OutcomeNone    SessionOutcome = ""
	OutcomeVictory SessionOutcome = "victory"
)

// StageMonster is the precomputed monster of one group stage.
type StageMonster struct {
	Name   string
	Emoji  string
	BaseHP int
}

// EventTrigger identifies what queued a group event.
type EventTrigger string

const (
	TriggerHP50       EventTrigger = "hp_50"
	TriggerHP10       EventTrigger = "hp_10"
	TriggerBossUnique EventTrigger = "boss_unique"
	TriggerAdaptive   EventTrigger = "adaptive"
)

// ActiveEvent is one queued group event. The head of the queue is active.
type ActiveEvent struct {
	TemplateID string
	Trigger    EventTrigger
	Name       string
	// StartedAt is set when the event reaches the head of the queue.
	StartedAt    time.Time
	Duration     time.Duration
	MinPlayers   int
	HPPercent    int
	Participants []string
}

// ChainState is the engagement chain of the current stage.
type ChainState struct {
	TaskIDs      []string
	Next         int
	StartedAt    time.Time
	Participants []string
}

// SessionRecord is one room's shared group encounter.
type SessionRecord struct {
	ID             string
	RoomID         string
	TemplateID     string
	InitiatorID    string
	Stage          int
	Stages         []StageMonster
	CurrentHP      int
	StartedAt      time.Time
	LastActivityAt time.Time
	LastSavedAt    time.Time
	// LastRegressionAt is when inactivity regression was last evaluated.
	LastRegressionAt time.Time
	CompletedAt      *time.Time
	Events           []ActiveEvent
	Chain            *ChainState
	// ChainUsedStage is the last stage that started an engagement chain.
	ChainUsedStage  int
	Fired50         bool
	Fired10         bool
	RegressionCount int
	Status          SessionStatus
	Outcome         SessionOutcome
}

// StageBase returns the base HP of the current stage.
func (s SessionRecord) StageBase() int {
	if s.Stage < 1 || s.Stage > len(s.Stages) {
		return 0
	}
	return s.Stages[s.Stage-1].BaseHP
}

// ContributionRecord is one participant's ledger row in a group session.
type ContributionRecord struct {
	SessionID       string
	PlayerID        string
	Damage          int
	EventsCompleted int
	StageJoined     int
	JoinedAt        time.Time
	Multiplier      float64
	Finalized       bool
	LastDamageAt    time.Time
	LastMessage     string
}

// CompletionRecord is the per-participant settlement of a finished session.
type CompletionRecord struct {
	SessionID       string
	PlayerID        string
	Damage          int
	EventsCompleted int
	Share           float64
	Exp             int
	Gold            int
	LevelsGained    int
	CompletedAt     time.Time
}

// GroupCompletion is the set of rows settling a session atomically.
type GroupCompletion struct {
	Session       SessionRecord
	Contributions []ContributionRecord
	Completions   []CompletionRecord
	Characters    []character.Character
}

// GroupStore persists group sessions and their ledgers.
type GroupStore interface {
	// CreateSession inserts an active session. It returns
	// ErrActiveSessionExists when the room already has one.
	CreateSession(ctx context.Context, session SessionRecord) error
	GetActiveSession(ctx context.Context, roomID string) (SessionRecord, error)
	ListActiveSessions(ctx context.Context) ([]SessionRecord, error)
	// SaveSession updates the session row and upserts contributions in one
	// transaction.
	SaveSession(ctx context.Context, session SessionRecord, contributions []ContributionRecord) error
	ListContributions(ctx context.Context, sessionID string) ([]ContributionRecord, error)
	// CommitGroupCompletion ends the session, writes completion rows, and
	// updates participant characters in one transaction. It returns
	// ErrConflict when a participant changed since it was read.
	CommitGroupCompletion(ctx context.Context, completion GroupCompletion) error
	ListCompletions(ctx context.Context, sessionID string) ([]CompletionRecord, error)
	// ActiveSessionsForPlayer lists active sessions the player contributed to.
	ActiveSessionsForPlayer(ctx context.Context, playerID string) ([]SessionRecord, error)
}

// RoomActivity is one observed message in a room.
type RoomActivity struct {
	RoomID     string
	PlayerID   string
	At         time.Time
	GameAction bool
}

// RoomActivityStore records room messages for group start gates and
// inactivity regression.
type RoomActivityStore interface {
	RecordActivity(ctx context.Context, activity RoomActivity) error
	// FirstSeen returns when the player was first observed in the room.
	FirstSeen(ctx context.Context, roomID, playerID string) (time.Time, error)
	CountGameActions(ctx context.Context, roomID, playerID string, since time.Time) (int, error)
	// CountActivePlayers counts players with at least minActions game actions
	// since the given time.
	CountActivePlayers(ctx context.Context, roomID string, since time.Time, minActions int) (int, error)
	CountMessages(ctx context.Context, roomID string, since time.Time) (int, error)
	PruneActivity(ctx context.Context, before time.Time) (int64, error)
}

// BattleEventKind names battle log entries.
type BattleEventKind string

const (
	BattleHit         BattleEventKind = "hit"
	BattleKill        BattleEventKind = "kill"
	BattleKillBlocked BattleEventKind = "kill_blocked"
	BattleTooSmall    BattleEventKind = "too_small"
	BattleRunStarted  BattleEventKind = "run_started"
	BattleRunEnded    BattleEventKind = "run_ended"
	BattleGroupHit    BattleEventKind = "group_hit"
	BattleGroupEvent  BattleEventKind = "group_event"
	BattleGroupStage  BattleEventKind = "group_stage"
	BattleGroupEnded  BattleEventKind = "group_ended"
)

// BattleEvent is one append-only battle log entry.
type BattleEvent struct {
	ID          string
	Kind        BattleEventKind
	RunID       string
	SessionID   string
	CharacterID string
	HPBefore    int
	HPAfter     int
	Payload     map[string]any
	Timestamp   time.Time
}

// BattleLogStore appends and reads battle log entries.
type BattleLogStore interface {
	AppendBattleEvent(ctx context.Context, evt BattleEvent) error
	// ListBattleEvents returns entries for a run or session id, oldest first.
	ListBattleEvents(ctx context.Context, subjectID string, limit int) ([]BattleEvent, error)
}

//go:generate go tool mockgen -destination=./mocks/ephemeral_mock.go -package=mocks . EphemeralStore

// EphemeralStore is the TTL side channel for rate limits and cooldowns. It
// holds no authoritative state: callers treat its errors as "permit".
type EphemeralStore interface {
	// AddToWindow records one hit at at and returns the hits of key within
	// the trailing window, including this one.
	AddToWindow(ctx context.Context, key string, at time.Time, window time.Duration) (int, error)
	// CountWindow returns the hits of key within the trailing window.
	CountWindow(ctx context.Context, key string, at time.Time, window time.Duration) (int, error)
	// SetIfAbsent stores value under key for ttl unless a live value exists.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	// TTL returns the remaining lifetime of a live key.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Delete(ctx context.Context, key string) error
}

// Store is the full durable storage surface.
type Store interface {
	CharacterStore
	InventoryStore
	RunStore
	GroupStore
	RoomActivityStore
	BattleLogStore
	Close() error
}
