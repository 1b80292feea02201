package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// AppendBattleEvent appends one battle log entry.
func (s *Store) AppendBattleEvent(ctx context.Context, evt storage.BattleEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return appendBattleEvent(ctx, s.sqlDB, evt)
}

func appendBattleEvent(ctx context.Context, q queryer, evt storage.BattleEvent) error {
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("battle event id is required")
	}
	if strings.TrimSpace(string(evt.Kind)) == "" {
		return fmt.Errorf("battle event kind is required")
	}
	payload := evt.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode battle event payload: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO battle_events (
		   id, kind, run_id, session_id, character_id, hp_before, hp_after, payload_json, timestamp
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Kind), evt.RunID, evt.SessionID, evt.CharacterID, evt.HPBefore, evt.HPAfter,
		string(payloadJSON), toMillis(evt.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append battle event: %w", err)
	}
	return nil
}

// ListBattleEvents returns entries whose run or session id matches, oldest
// first.
func (s *Store) ListBattleEvents(ctx context.Context, subjectID string, limit int) ([]storage.BattleEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, kind, run_id, session_id, character_id, hp_before, hp_after, payload_json, timestamp
		   FROM battle_events
		  WHERE run_id = ? OR session_id = ?
		  ORDER BY timestamp, rowid
		  LIMIT ?`,
		subjectID, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query battle events: %w", err)
	}
	defer rows.Close()

	var out []storage.BattleEvent
	for rows.Next() {
		var (
			evt         storage.BattleEvent
			kind        string
			payloadJSON string
			ts          int64
		)
		if err := rows.Scan(&evt.ID, &kind, &evt.RunID, &evt.SessionID, &evt.CharacterID,
			&evt.HPBefore, &evt.HPAfter, &payloadJSON, &ts); err != nil {
			return nil, fmt.Errorf("scan battle event: %w", err)
		}
		evt.Kind = storage.BattleEventKind(kind)
		evt.Timestamp = fromMillis(ts)
		if err := json.Unmarshal([]byte(payloadJSON), &evt.Payload); err != nil {
			return nil, fmt.Errorf("decode battle event payload: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

var _ queryer = (*sql.Tx)(nil)
