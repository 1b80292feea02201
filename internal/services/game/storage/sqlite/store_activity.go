package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// RecordActivity appends one room message and remembers when the player was
// first seen in the room.
func (s *Store) RecordActivity(ctx context.Context, activity storage.RoomActivity) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(activity.RoomID) == "" || strings.TrimSpace(activity.PlayerID) == "" {
		return fmt.Errorf("room id and player id are required")
	}
	at := toMillis(activity.At)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, player_id, first_seen) VALUES (?, ?, ?)
			 ON CONFLICT(room_id, player_id) DO UPDATE SET first_seen = MIN(room_members.first_seen, excluded.first_seen)`,
			activity.RoomID, activity.PlayerID, at); err != nil {
			return fmt.Errorf("record room member: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_activity (room_id, player_id, at, game_action) VALUES (?, ?, ?, ?)`,
			activity.RoomID, activity.PlayerID, at, boolInt(activity.GameAction)); err != nil {
			return fmt.Errorf("record room activity: %w", err)
		}
		return nil
	})
}

// FirstSeen returns when the player first appeared in the room.
func (s *Store) FirstSeen(ctx context.Context, roomID, playerID string) (time.Time, error) {
	if err := s.ready(ctx); err != nil {
		return time.Time{}, err
	}
	var firstSeen int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT first_seen FROM room_members WHERE room_id = ? AND player_id = ?`, roomID, playerID,
	).Scan(&firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, storage.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get first seen: %w", err)
	}
	return fromMillis(firstSeen), nil
}

// CountGameActions counts the player's game actions in the room since the
// given time.
func (s *Store) CountGameActions(ctx context.Context, roomID, playerID string, since time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	return s.count(ctx,
		`SELECT COUNT(*) FROM room_activity WHERE room_id = ? AND player_id = ? AND game_action = 1 AND at >= ?`,
		roomID, playerID, toMillis(since))
}

// CountActivePlayers counts players with at least minActions game actions in
// the room since the given time.
func (s *Store) CountActivePlayers(ctx context.Context, roomID string, since time.Time, minActions int) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	return s.count(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT player_id FROM room_activity
		    WHERE room_id = ? AND game_action = 1 AND at >= ?
		    GROUP BY player_id
		   HAVING COUNT(*) >= ?
		 )`,
		roomID, toMillis(since), minActions)
}

// CountMessages counts every room message since the given time.
func (s *Store) CountMessages(ctx context.Context, roomID string, since time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	return s.count(ctx, `SELECT COUNT(*) FROM room_activity WHERE room_id = ? AND at >= ?`, roomID, toMillis(since))
}

// PruneActivity deletes activity rows older than before. Membership rows are
// kept.
func (s *Store) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM room_activity WHERE at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("prune room activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune room activity: %w", err)
	}
	return n, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
