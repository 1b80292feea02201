package battlelog

import (
	"context"
	"time"

	"github.com/louisbranch/delving.space/internal/platform/id"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// Emitter records battle log entries.
type Emitter struct {
	store storage.BattleLogStore
	clock func() time.Time
	newID func() (string, error)
}

// NewEmitter creates a new battle log emitter.
func NewEmitter(store storage.BattleLogStore) *Emitter {
	return &Emitter{store: store, clock: time.Now, newID: id.NewID}
}

// Stamp fills the id and timestamp of evt when unset. Entries written as
// part of a larger commit are stamped here and persisted by the store.
func (e *Emitter) Stamp(evt storage.BattleEvent) (storage.BattleEvent, error) {
	if evt.Timestamp.IsZero() {
		if e == nil || e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.ID == "" {
		newID := id.NewID
		if e != nil && e.newID != nil {
			newID = e.newID
		}
		value, err := newID()
		if err != nil {
			return evt, err
		}
		evt.ID = value
	}
	return evt, nil
}

// Emit records a battle event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.BattleEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	evt, err := e.Stamp(evt)
	if err != nil {
		return err
	}
	return e.store.AppendBattleEvent(ctx, evt)
}
