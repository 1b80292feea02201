package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

const runColumns = `id, character_id, act, dungeon, location_type, seed, plus_level, budget,
	position, total_damage, gold_gained, exp_gained, energy_spent, hp_lost,
	status, started_at, ended_at`

// CreateRun inserts an active run with its monsters.
func (s *Store) CreateRun(ctx context.Context, run storage.RunRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(run.ID) == "" || strings.TrimSpace(run.CharacterID) == "" {
		return fmt.Errorf("run id and character id are required")
	}
	if run.Status == "" {
		run.Status = storage.RunActive
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CharacterID, run.Act, run.Dungeon, run.LocationType, run.Seed, run.PlusLevel, run.Budget,
			run.Position, run.TotalDamage, run.GoldGained, run.ExpGained, run.EnergySpent, run.HPLost,
			string(run.Status), toMillis(run.StartedAt), toNullMillis(run.EndedAt),
		)
		if err != nil {
			if isUniqueViolation(err, "runs.character_id") {
				return storage.ErrActiveRunExists
			}
			return fmt.Errorf("insert run: %w", err)
		}
		for _, m := range run.Monsters {
			if err := insertMonster(ctx, tx, run.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMonster(ctx context.Context, q queryer, runID string, m encounter.Monster) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO run_monsters (
		   run_id, position, template_id, name, emoji, family, boss, level, difficulty,
		   max_hp, current_hp, damage, exp, gold
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Position, m.TemplateID, m.Name, m.Emoji, string(m.Family), boolInt(m.Boss), m.Level, m.Difficulty,
		m.MaxHP, m.CurrentHP, m.Damage, m.Exp, m.Gold,
	)
	if err != nil {
		return fmt.Errorf("insert run monster: %w", err)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (storage.RunRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RunRecord{}, err
	}
	return s.loadRun(ctx, s.sqlDB, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
}

// GetActiveRun returns the character's active run.
func (s *Store) GetActiveRun(ctx context.Context, characterID string) (storage.RunRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RunRecord{}, err
	}
	return s.loadRun(ctx, s.sqlDB, `SELECT `+runColumns+` FROM runs WHERE character_id = ? AND status = 'active'`, characterID)
}

// AbandonRun marks the active run abandoned.
func (s *Store) AbandonRun(ctx context.Context, characterID string, at time.Time) (storage.RunRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RunRecord{}, err
	}
	var run storage.RunRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		loaded, err := s.loadRun(ctx, tx, `SELECT `+runColumns+` FROM runs WHERE character_id = ? AND status = 'active'`, characterID)
		if err != nil {
			return err
		}
		ended := at.UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, ended_at = ? WHERE id = ? AND status = 'active'`,
			string(storage.RunAbandoned), toMillis(ended), loaded.ID); err != nil {
			return fmt.Errorf("abandon run: %w", err)
		}
		loaded.Status = storage.RunAbandoned
		loaded.EndedAt = &ended
		run = loaded
		return nil
	})
	if err != nil {
		return storage.RunRecord{}, err
	}
	return run, nil
}

// CommitRunAction writes the character, run, monster HP, new items, endless
// progress, and battle event of one action atomically.
func (s *Store) CommitRunAction(ctx context.Context, commit storage.RunCommit) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	run := commit.Run
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET
			   position = ?, total_damage = ?, gold_gained = ?, exp_gained = ?,
			   energy_spent = ?, hp_lost = ?, status = ?, ended_at = ?
			 WHERE id = ? AND status = 'active'`,
			run.Position, run.TotalDamage, run.GoldGained, run.ExpGained,
			run.EnergySpent, run.HPLost, string(run.Status), toNullMillis(run.EndedAt), run.ID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrNotFound
		}
		if err := commitCharacter(ctx, tx, commit.Character); err != nil {
			return err
		}
		for _, m := range run.Monsters {
			if _, err := tx.ExecContext(ctx,
				`UPDATE run_monsters SET current_hp = ? WHERE run_id = ? AND position = ?`,
				m.CurrentHP, run.ID, m.Position); err != nil {
				return fmt.Errorf("update run monster: %w", err)
			}
		}
		for _, item := range commit.Items {
			if err := putItem(ctx, tx, item); err != nil {
				return err
			}
		}
		if p := commit.Progress; p != nil {
			if err := putEndlessProgress(ctx, tx, *p); err != nil {
				return err
			}
		}
		if evt := commit.Event; evt != nil {
			if err := appendBattleEvent(ctx, tx, *evt); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEndlessProgress returns plus-level progress for one dungeon. Missing
// rows read as zero progress.
func (s *Store) GetEndlessProgress(ctx context.Context, characterID string, act, dungeon int) (storage.EndlessProgress, error) {
	if err := s.ready(ctx); err != nil {
		return storage.EndlessProgress{}, err
	}
	progress := storage.EndlessProgress{CharacterID: characterID, Act: act, Dungeon: dungeon}
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT unlocked_plus, best_plus, updated_at FROM endless_progress
		  WHERE character_id = ? AND act = ? AND dungeon = ?`,
		characterID, act, dungeon,
	).Scan(&progress.UnlockedPlus, &progress.BestPlus, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress, nil
	}
	if err != nil {
		return storage.EndlessProgress{}, fmt.Errorf("get endless progress: %w", err)
	}
	progress.UpdatedAt = fromMillis(updatedAt)
	return progress, nil
}

func putEndlessProgress(ctx context.Context, q queryer, p storage.EndlessProgress) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO endless_progress (character_id, act, dungeon, unlocked_plus, best_plus, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(character_id, act, dungeon) DO UPDATE SET
		   unlocked_plus = MAX(endless_progress.unlocked_plus, excluded.unlocked_plus),
		   best_plus = MAX(endless_progress.best_plus, excluded.best_plus),
		   updated_at = excluded.updated_at`,
		p.CharacterID, p.Act, p.Dungeon, p.UnlockedPlus, p.BestPlus, toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put endless progress: %w", err)
	}
	return nil
}

func (s *Store) loadRun(ctx context.Context, q queryer, query string, args ...any) (storage.RunRecord, error) {
	var (
		run       storage.RunRecord
		status    string
		startedAt int64
		endedAt   sql.NullInt64
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&run.ID, &run.CharacterID, &run.Act, &run.Dungeon, &run.LocationType, &run.Seed, &run.PlusLevel, &run.Budget,
		&run.Position, &run.TotalDamage, &run.GoldGained, &run.ExpGained, &run.EnergySpent, &run.HPLost,
		&status, &startedAt, &endedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RunRecord{}, storage.ErrNotFound
		}
		return storage.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	run.Status = storage.RunStatus(status)
	run.StartedAt = fromMillis(startedAt)
	run.EndedAt = fromNullMillis(endedAt)

	rows, err := q.QueryContext(ctx,
		`SELECT position, template_id, name, emoji, family, boss, level, difficulty,
		        max_hp, current_hp, damage, exp, gold
		   FROM run_monsters
		  WHERE run_id = ?
		  ORDER BY position`, run.ID)
	if err != nil {
		return storage.RunRecord{}, fmt.Errorf("query run monsters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m      encounter.Monster
			family string
			boss   int
		)
		if err := rows.Scan(&m.Position, &m.TemplateID, &m.Name, &m.Emoji, &family, &boss, &m.Level, &m.Difficulty,
			&m.MaxHP, &m.CurrentHP, &m.Damage, &m.Exp, &m.Gold); err != nil {
			return storage.RunRecord{}, fmt.Errorf("scan run monster: %w", err)
		}
		m.Family = encounter.Family(family)
		m.Boss = boss != 0
		run.Monsters = append(run.Monsters, m)
	}
	if err := rows.Err(); err != nil {
		return storage.RunRecord{}, fmt.Errorf("read run monsters: %w", err)
	}
	return run, nil
}
