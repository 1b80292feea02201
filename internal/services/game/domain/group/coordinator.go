package group

import (
	"context"
	"errors"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/platform/id"
	platformotel "github.com/louisbranch/delving.space/internal/platform/otel"
	"github.com/louisbranch/delving.space/internal/random"
	"github.com/louisbranch/delving.space/internal/services/game/battlelog"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

var tracer = platformotel.Tracer("game/group")

const (
	roomCooldownPrefix      = "group:cooldown:room:"
	initiatorCooldownPrefix = "group:cooldown:initiator:"
)

// Store is the durable surface the coordinator needs.
type Store interface {
	storage.CharacterStore
	storage.InventoryStore
	storage.GroupStore
	storage.RoomActivityStore
}

// Options wires a Coordinator.
type Options struct {
	Config    Config
	Store     Store
	Ephemeral storage.EphemeralStore
	Templates []Template
	Events    []EventTemplate
	Chains    []ChainTask
	Emitter   *battlelog.Emitter
	Source    random.Source
	Clock     func() time.Time
	NewID     func() (string, error)
}

// Coordinator owns every active group session of the process.
type Coordinator struct {
	cfg       Config
	store     Store
	ephemeral storage.EphemeralStore
	templates []Template
	byID      map[string]Template
	events    []EventTemplate
	eventByID map[string]EventTemplate
	chains    []ChainTask
	chainByID map[string]ChainTask
	emitter   *battlelog.Emitter
	source    random.Source
	clock     func() time.Time
	newID     func() (string, error)

	mu    sync.Mutex
	rooms map[string]*room
}

// New builds a Coordinator. The store and at least one template are
// required.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("group: store is required")
	}
	if len(opts.Templates) == 0 {
		return nil, errors.New("group: at least one template is required")
	}
	c := &Coordinator{
		cfg:       opts.Config.withDefaults(),
		store:     opts.Store,
		ephemeral: opts.Ephemeral,
		templates: opts.Templates,
		byID:      make(map[string]Template, len(opts.Templates)),
		events:    opts.Events,
		eventByID: make(map[string]EventTemplate, len(opts.Events)),
		chains:    opts.Chains,
		chainByID: make(map[string]ChainTask, len(opts.Chains)),
		emitter:   opts.Emitter,
		source:    opts.Source,
		clock:     opts.Clock,
		newID:     opts.NewID,
		rooms:     map[string]*room{},
	}
	for _, t := range opts.Templates {
		c.byID[t.ID] = t
	}
	for _, e := range opts.Events {
		c.eventByID[e.ID] = e
	}
	for _, t := range opts.Chains {
		c.chainByID[t.ID] = t
	}
	if c.source == nil {
		c.source = random.CryptoSource
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.newID == nil {
		c.newID = id.NewID
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// room serializes every mutation of one room's session. state caches the
// last persisted session; nil means it must be reloaded from the store.
type room struct {
	mu    sync.Mutex
	state *roomState
}

type roomState struct {
	session  storage.SessionRecord
	contribs map[string]storage.ContributionRecord
	dirty    map[string]struct{}
	// pending battle log entries are written once the state is persisted.
	pending []storage.BattleEvent
	// ended is set once the session was settled and must not be saved.
	ended bool
}

func (s *roomState) clone() *roomState {
	session := s.session
	session.Stages = slices.Clone(s.session.Stages)
	session.Events = make([]storage.ActiveEvent, len(s.session.Events))
	for i, e := range s.session.Events {
		e.Participants = slices.Clone(e.Participants)
		session.Events[i] = e
	}
	if s.session.Chain != nil {
		chain := *s.session.Chain
		chain.TaskIDs = slices.Clone(chain.TaskIDs)
		chain.Participants = slices.Clone(chain.Participants)
		session.Chain = &chain
	}
	return &roomState{
		session:  session,
		contribs: maps.Clone(s.contribs),
		dirty:    map[string]struct{}{},
	}
}

// contribution returns the player's ledger row, creating it at now.
func (s *roomState) contribution(playerID string, now time.Time) storage.ContributionRecord {
	if c, ok := s.contribs[playerID]; ok {
		return c
	}
	return storage.ContributionRecord{
		SessionID:   s.session.ID,
		PlayerID:    playerID,
		StageJoined: s.session.Stage,
		JoinedAt:    now,
		Multiplier:  1,
	}
}

func (s *roomState) put(c storage.ContributionRecord) {
	s.contribs[c.PlayerID] = c
	s.dirty[c.PlayerID] = struct{}{}
}

// credit adds one completed event to every listed participant.
func (s *roomState) credit(players []string, now time.Time) {
	for _, p := range players {
		c := s.contribution(p, now)
		c.EventsCompleted++
		s.put(c)
	}
}

func (s *roomState) record(evt storage.BattleEvent) {
	evt.SessionID = s.session.ID
	s.pending = append(s.pending, evt)
}

func (s *roomState) changed() []storage.ContributionRecord {
	ids := slices.Sorted(maps.Keys(s.dirty))
	out := make([]storage.ContributionRecord, 0, len(ids))
	for _, playerID := range ids {
		out = append(out, s.contribs[playerID])
	}
	return out
}

// ledger returns every contribution ordered by player id.
func (s *roomState) ledger() []storage.ContributionRecord {
	ids := slices.Sorted(maps.Keys(s.contribs))
	out := make([]storage.ContributionRecord, 0, len(ids))
	for _, playerID := range ids {
		out = append(out, s.contribs[playerID])
	}
	return out
}

func (c *Coordinator) room(roomID string) *room {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[roomID]
	if !ok {
		r = &room{}
		c.rooms[roomID] = r
	}
	return r
}

// load returns the cached state of the room's active session. Callers hold
// r.mu.
func (c *Coordinator) load(ctx context.Context, r *room, roomID string) (*roomState, error) {
	if r.state != nil {
		return r.state, nil
	}
	session, err := c.store.GetActiveSession(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.WithMetadata(apperrors.CodeNoActiveSession, "no active session",
			map[string]string{"RoomID": roomID})
	}
	if err != nil {
		return nil, apperrors.Transient("load group session", err)
	}
	rows, err := c.store.ListContributions(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Transient("load contributions", err)
	}
	state := &roomState{
		session:  session,
		contribs: make(map[string]storage.ContributionRecord, len(rows)),
		dirty:    map[string]struct{}{},
	}
	for _, row := range rows {
		state.contribs[row.PlayerID] = row
	}
	r.state = state
	return state, nil
}

// mutate runs fn on a copy of the room's session and persists the copy.
// The cached state only changes when the write succeeds.
func (c *Coordinator) mutate(ctx context.Context, roomID string, fn func(st *roomState) error) error {
	r := c.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := c.load(ctx, r, roomID)
	if err != nil {
		return err
	}
	work := current.clone()
	if err := fn(work); err != nil {
		if work.ended {
			r.state = nil
		}
		return err
	}
	if work.ended {
		r.state = nil
		c.flush(ctx, work)
		return nil
	}
	if err := c.store.SaveSession(ctx, work.session, work.changed()); err != nil {
		r.state = nil
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNoActiveSession, "session is no longer active", err)
		}
		return apperrors.Transient("save group session", err)
	}
	work.dirty = map[string]struct{}{}
	c.flush(ctx, work)
	r.state = work
	return nil
}

func (c *Coordinator) flush(ctx context.Context, st *roomState) {
	for _, evt := range st.pending {
		c.emit(ctx, evt)
	}
	st.pending = nil
}

// read returns a copy of the room's active session and ledger.
func (c *Coordinator) read(ctx context.Context, roomID string) (*roomState, error) {
	r := c.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	current, err := c.load(ctx, r, roomID)
	if err != nil {
		return nil, err
	}
	return current.clone(), nil
}

// Observe records a room message for start gates and regression. Failures
// are logged; activity is advisory.
func (c *Coordinator) Observe(ctx context.Context, a action.Action, gameAction bool) {
	if a.RoomID == "" || a.ActorID == "" {
		return
	}
	at := a.At
	if at.IsZero() {
		at = c.clock()
	}
	err := c.store.RecordActivity(ctx, storage.RoomActivity{
		RoomID:     a.RoomID,
		PlayerID:   a.ActorID,
		At:         at.UTC(),
		GameAction: gameAction,
	})
	if err != nil {
		log.Printf("record activity for room %s: %v", a.RoomID, err)
	}
}

func (c *Coordinator) emit(ctx context.Context, evt storage.BattleEvent) {
	if err := c.emitter.Emit(ctx, evt); err != nil {
		log.Printf("battle log %s for session %s: %v", evt.Kind, evt.SessionID, err)
	}
}

// cooldown reports the remaining lifetime of key. Ephemeral failures read
// as no cooldown.
func (c *Coordinator) cooldown(ctx context.Context, key string) (time.Duration, bool) {
	if c.ephemeral == nil {
		return 0, false
	}
	ttl, ok, err := c.ephemeral.TTL(ctx, key)
	if err != nil {
		log.Printf("cooldown lookup %s: %v", key, err)
		return 0, false
	}
	return ttl, ok
}

func (c *Coordinator) setCooldown(ctx context.Context, key, value string, ttl time.Duration) {
	if c.ephemeral == nil {
		return
	}
	if err := c.ephemeral.Set(ctx, key, value, ttl); err != nil {
		log.Printf("set cooldown %s: %v", key, err)
	}
}
