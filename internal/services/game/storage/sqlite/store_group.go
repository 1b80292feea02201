package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

const sessionColumns = `id, room_id, template_id, initiator_id, stage, stages_json, current_hp,
	started_at, last_activity_at, last_saved_at, last_regression_at, completed_at,
	events_json, chain_json, chain_used_stage, fired_50, fired_10, regression_count,
	status, outcome`

const contributionColumns = `session_id, player_id, damage, events_completed, stage_joined,
	joined_at, multiplier, finalized, last_damage_at, last_message`

// CreateSession inserts an active group session.
func (s *Store) CreateSession(ctx context.Context, session storage.SessionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.RoomID) == "" {
		return fmt.Errorf("session id and room id are required")
	}
	if session.Status == "" {
		session.Status = storage.SessionActive
	}
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_sessions (`+sessionColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...,
		)
		if err != nil {
			if isUniqueViolation(err, "group_sessions.room_id") {
				return storage.ErrActiveSessionExists
			}
			return fmt.Errorf("insert group session: %w", err)
		}
		return nil
	})
}

// GetActiveSession returns the room's active session.
func (s *Store) GetActiveSession(ctx context.Context, roomID string) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	sessions, err := s.querySessions(ctx, s.sqlDB,
		`SELECT `+sessionColumns+` FROM group_sessions WHERE room_id = ? AND status = 'active'`, roomID)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	if len(sessions) == 0 {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return sessions[0], nil
}

// ListActiveSessions returns every active session ordered by start time.
func (s *Store) ListActiveSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.querySessions(ctx, s.sqlDB,
		`SELECT `+sessionColumns+` FROM group_sessions WHERE status = 'active' ORDER BY started_at, id`)
}

// ActiveSessionsForPlayer returns active sessions with a contribution row
// for the player.
func (s *Store) ActiveSessionsForPlayer(ctx context.Context, playerID string) ([]storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.querySessions(ctx, s.sqlDB,
		`SELECT `+prefixed("gs", sessionColumns)+`
		   FROM group_sessions gs
		   JOIN group_contributions gc ON gc.session_id = gs.id
		  WHERE gc.player_id = ? AND gs.status = 'active'
		  ORDER BY gs.started_at, gs.id`, playerID)
}

// SaveSession updates the session row and upserts its contributions.
func (s *Store) SaveSession(ctx context.Context, session storage.SessionRecord, contributions []storage.ContributionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateSession(ctx, tx, args); err != nil {
			return err
		}
		for _, c := range contributions {
			if err := putContribution(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListContributions returns the ledger of a session ordered by player id.
func (s *Store) ListContributions(ctx context.Context, sessionID string) ([]storage.ContributionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+contributionColumns+` FROM group_contributions WHERE session_id = ? ORDER BY player_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []storage.ContributionRecord
	for rows.Next() {
		var (
			c                      storage.ContributionRecord
			joinedAt, lastDamageAt int64
			finalized              int
		)
		if err := rows.Scan(&c.SessionID, &c.PlayerID, &c.Damage, &c.EventsCompleted, &c.StageJoined,
			&joinedAt, &c.Multiplier, &finalized, &lastDamageAt, &c.LastMessage); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.JoinedAt = fromMillis(joinedAt)
		c.LastDamageAt = fromMillis(lastDamageAt)
		c.Finalized = finalized != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// CommitGroupCompletion settles a finished session in one transaction.
func (s *Store) CommitGroupCompletion(ctx context.Context, completion storage.GroupCompletion) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	session := completion.Session
	session.Status = storage.SessionCompleted
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM group_sessions WHERE id = ?`, session.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && status != string(storage.SessionActive)) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load group session status: %w", err)
		}
		if err := updateSession(ctx, tx, args); err != nil {
			return err
		}
		for _, c := range completion.Contributions {
			if err := putContribution(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, c := range completion.Completions {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO group_completions (
				   session_id, player_id, damage, events_completed, share, exp, gold, levels_gained, completed_at
				 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.SessionID, c.PlayerID, c.Damage, c.EventsCompleted, c.Share, c.Exp, c.Gold, c.LevelsGained,
				toMillis(c.CompletedAt),
			)
			if err != nil {
				return fmt.Errorf("insert group completion: %w", err)
			}
		}
		for _, ch := range completion.Characters {
			if err := commitCharacter(ctx, tx, ch); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListCompletions returns the settlement rows of a session.
func (s *Store) ListCompletions(ctx context.Context, sessionID string) ([]storage.CompletionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id, player_id, damage, events_completed, share, exp, gold, levels_gained, completed_at
		   FROM group_completions
		  WHERE session_id = ?
		  ORDER BY player_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query group completions: %w", err)
	}
	defer rows.Close()

	var out []storage.CompletionRecord
	for rows.Next() {
		var c storage.CompletionRecord
		var completedAt int64
		if err := rows.Scan(&c.SessionID, &c.PlayerID, &c.Damage, &c.EventsCompleted, &c.Share,
			&c.Exp, &c.Gold, &c.LevelsGained, &completedAt); err != nil {
			return nil, fmt.Errorf("scan group completion: %w", err)
		}
		c.CompletedAt = fromMillis(completedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func updateSession(ctx context.Context, q queryer, args []any) error {
	// args follow sessionColumns; id moves to the WHERE clause.
	id := args[0]
	res, err := q.ExecContext(ctx,
		`UPDATE group_sessions SET
		   room_id = ?, template_id = ?, initiator_id = ?, stage = ?, stages_json = ?, current_hp = ?,
		   started_at = ?, last_activity_at = ?, last_saved_at = ?, last_regression_at = ?, completed_at = ?,
		   events_json = ?, chain_json = ?, chain_used_stage = ?, fired_50 = ?, fired_10 = ?, regression_count = ?,
		   status = ?, outcome = ?
		 WHERE id = ?`,
		append(append([]any{}, args[1:]...), id)...,
	)
	if err != nil {
		return fmt.Errorf("update group session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func putContribution(ctx context.Context, q queryer, c storage.ContributionRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO group_contributions (`+contributionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, player_id) DO UPDATE SET
		   damage = excluded.damage,
		   events_completed = excluded.events_completed,
		   multiplier = excluded.multiplier,
		   finalized = excluded.finalized,
		   last_damage_at = excluded.last_damage_at,
		   last_message = excluded.last_message`,
		c.SessionID, c.PlayerID, c.Damage, c.EventsCompleted, c.StageJoined,
		toMillis(c.JoinedAt), c.Multiplier, boolInt(c.Finalized), toMillis(c.LastDamageAt), c.LastMessage,
	)
	if err != nil {
		return fmt.Errorf("put contribution: %w", err)
	}
	return nil
}

func sessionArgs(session storage.SessionRecord) ([]any, error) {
	stagesJSON, err := json.Marshal(session.Stages)
	if err != nil {
		return nil, fmt.Errorf("encode stages: %w", err)
	}
	events := session.Events
	if events == nil {
		events = []storage.ActiveEvent{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	chainJSON := ""
	if session.Chain != nil {
		raw, err := json.Marshal(session.Chain)
		if err != nil {
			return nil, fmt.Errorf("encode chain: %w", err)
		}
		chainJSON = string(raw)
	}
	return []any{
		session.ID, session.RoomID, session.TemplateID, session.InitiatorID, session.Stage, string(stagesJSON),
		session.CurrentHP, toMillis(session.StartedAt), toMillis(session.LastActivityAt), toMillis(session.LastSavedAt),
		toMillis(session.LastRegressionAt), toNullMillis(session.CompletedAt), string(eventsJSON), chainJSON,
		session.ChainUsedStage, boolInt(session.Fired50), boolInt(session.Fired10), session.RegressionCount,
		string(session.Status), string(session.Outcome),
	}, nil
}

func (s *Store) querySessions(ctx context.Context, q queryer, query string, args ...any) ([]storage.SessionRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query group sessions: %w", err)
	}
	defer rows.Close()

	var out []storage.SessionRecord
	for rows.Next() {
		var (
			rec                                       storage.SessionRecord
			stagesJSON, eventsJSON, chainJSON         string
			status, outcome                           string
			startedAt, activityAt, savedAt, regressAt int64
			completedAt                               sql.NullInt64
			fired50, fired10                          int
		)
		if err := rows.Scan(
			&rec.ID, &rec.RoomID, &rec.TemplateID, &rec.InitiatorID, &rec.Stage, &stagesJSON, &rec.CurrentHP,
			&startedAt, &activityAt, &savedAt, &regressAt, &completedAt,
			&eventsJSON, &chainJSON, &rec.ChainUsedStage, &fired50, &fired10, &rec.RegressionCount,
			&status, &outcome,
		); err != nil {
			return nil, fmt.Errorf("scan group session: %w", err)
		}
		if err := json.Unmarshal([]byte(stagesJSON), &rec.Stages); err != nil {
			return nil, fmt.Errorf("decode stages: %w", err)
		}
		if eventsJSON != "" {
			if err := json.Unmarshal([]byte(eventsJSON), &rec.Events); err != nil {
				return nil, fmt.Errorf("decode events: %w", err)
			}
		}
		if chainJSON != "" {
			var chain storage.ChainState
			if err := json.Unmarshal([]byte(chainJSON), &chain); err != nil {
				return nil, fmt.Errorf("decode chain: %w", err)
			}
			rec.Chain = &chain
		}
		rec.StartedAt = fromMillis(startedAt)
		rec.LastActivityAt = fromMillis(activityAt)
		rec.LastSavedAt = fromMillis(savedAt)
		rec.LastRegressionAt = fromMillis(regressAt)
		rec.CompletedAt = fromNullMillis(completedAt)
		rec.Fired50 = fired50 != 0
		rec.Fired10 = fired10 != 0
		rec.Status = storage.SessionStatus(status)
		rec.Outcome = storage.SessionOutcome(outcome)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read group sessions: %w", err)
	}
	return out, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
