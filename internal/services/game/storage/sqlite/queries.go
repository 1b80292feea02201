package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

const characterColumns = `id, name, level, exp, stat_points,
	strength, agility, intelligence, endurance, luck, charm,
	hp, max_hp, energy, max_energy, gold, current_act, plus_unlocked,
	energy_updated_at, hp_updated_at, created_at, version`

const getCharacter = `SELECT ` + characterColumns + ` FROM characters WHERE id = ?`

const upsertCharacter = `INSERT INTO characters (` + characterColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  level = excluded.level,
  exp = excluded.exp,
  stat_points = excluded.stat_points,
  strength = excluded.strength,
  agility = excluded.agility,
  intelligence = excluded.intelligence,
  endurance = excluded.endurance,
  luck = excluded.luck,
  charm = excluded.charm,
  hp = excluded.hp,
  max_hp = excluded.max_hp,
  energy = excluded.energy,
  max_energy = excluded.max_energy,
  gold = excluded.gold,
  current_act = excluded.current_act,
  plus_unlocked = excluded.plus_unlocked,
  energy_updated_at = excluded.energy_updated_at,
  hp_updated_at = excluded.hp_updated_at,
  version = characters.version + 1`

const updateCharacterAtVersion = `UPDATE characters SET
  name = ?, level = ?, exp = ?, stat_points = ?,
  strength = ?, agility = ?, intelligence = ?, endurance = ?, luck = ?, charm = ?,
  hp = ?, max_hp = ?, energy = ?, max_energy = ?, gold = ?, current_act = ?, plus_unlocked = ?,
  energy_updated_at = ?, hp_updated_at = ?,
  version = version + 1
WHERE id = ? AND version = ?`

// queries binds the character statements to a connection or transaction.
type queries struct {
	db queryer
}

func newQueries(db queryer) queries {
	return queries{db: db}
}

func (q queries) GetCharacter(ctx context.Context, id string) (character.Character, error) {
	return scanCharacter(q.db.QueryRowContext(ctx, getCharacter, id))
}

func (q queries) UpsertCharacter(ctx context.Context, c character.Character) error {
	_, err := q.db.ExecContext(ctx, upsertCharacter,
		c.ID, c.Name, c.Level, c.Exp, c.StatPoints,
		c.Stats.Strength, c.Stats.Agility, c.Stats.Intelligence, c.Stats.Endurance, c.Stats.Luck, c.Stats.Charm,
		c.HP, c.MaxHP, c.Energy, c.MaxEnergy, c.Gold, c.CurrentAct, boolInt(c.PlusUnlocked),
		toMillis(c.EnergyUpdatedAt), toMillis(c.HPUpdatedAt), toMillis(c.CreatedAt),
	)
	return err
}

// UpdateCharacterAtVersion writes c only while the row is still at
// c.Version. It reports false when the row moved on or is missing.
func (q queries) UpdateCharacterAtVersion(ctx context.Context, c character.Character) (bool, error) {
	res, err := q.db.ExecContext(ctx, updateCharacterAtVersion,
		c.Name, c.Level, c.Exp, c.StatPoints,
		c.Stats.Strength, c.Stats.Agility, c.Stats.Intelligence, c.Stats.Endurance, c.Stats.Luck, c.Stats.Charm,
		c.HP, c.MaxHP, c.Energy, c.MaxEnergy, c.Gold, c.CurrentAct, boolInt(c.PlusUnlocked),
		toMillis(c.EnergyUpdatedAt), toMillis(c.HPUpdatedAt),
		c.ID, c.Version,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// commitCharacter is the versioned write of the commit transactions.
func commitCharacter(ctx context.Context, tx *sql.Tx, c character.Character) error {
	ok, err := newQueries(tx).UpdateCharacterAtVersion(ctx, c)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	if !ok {
		return storage.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (character.Character, error) {
	var (
		c                         character.Character
		plus                      int
		energyAt, hpAt, createdAt int64
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Level, &c.Exp, &c.StatPoints,
		&c.Stats.Strength, &c.Stats.Agility, &c.Stats.Intelligence, &c.Stats.Endurance, &c.Stats.Luck, &c.Stats.Charm,
		&c.HP, &c.MaxHP, &c.Energy, &c.MaxEnergy, &c.Gold, &c.CurrentAct, &plus,
		&energyAt, &hpAt, &createdAt, &c.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return character.Character{}, storage.ErrNotFound
		}
		return character.Character{}, err
	}
	c.PlusUnlocked = plus != 0
	c.EnergyUpdatedAt = fromMillis(energyAt)
	c.HPUpdatedAt = fromMillis(hpAt)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}
