package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/encounter"
	"github.com/louisbranch/delving.space/internal/services/game/domain/loot"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

const itemColumns = `id, owner_id, base_id, name, slot, weapon_type, attack_type,
	rarity, tier, level, total_level, damage_min, damage_max, attack_speed,
	base_stat, base_stat_value, value, equipped`

// PutItem inserts or replaces an item together with its affixes.
func (s *Store) PutItem(ctx context.Context, item loot.Item) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return putItem(ctx, tx, item)
	})
}

func putItem(ctx context.Context, q queryer, item loot.Item) error {
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.OwnerID) == "" {
		return fmt.Errorf("item id and owner id are required")
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   equipped = excluded.equipped,
		   value = excluded.value`,
		item.ID, item.OwnerID, item.BaseID, item.Name, string(item.Slot), item.WeaponType, string(item.AttackType),
		int(item.Rarity), item.Tier, item.Level, item.TotalLevel, item.DamageMin, item.DamageMax, item.AttackSpeed,
		string(item.BaseStat), item.BaseStatValue, item.Value, string(item.Equipped),
	)
	if err != nil {
		if isUniqueViolation(err, "items.owner_id") {
			return fmt.Errorf("equip slot %s already used: %w", item.Equipped, err)
		}
		return fmt.Errorf("put item: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM item_affixes WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clear item affixes: %w", err)
	}
	for i, a := range item.Affixes {
		targetKind := ""
		if a.TargetKind != action.KindUnspecified {
			targetKind = a.TargetKind.String()
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO item_affixes (
			   item_id, position, name, family_id, kind, effect, target_kind, target_family,
			   value, percent, tier, exclusive_group, level_delta
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, i, a.Name, a.FamilyID, string(a.Kind), string(a.Effect), targetKind, string(a.TargetFamily),
			a.Value, boolInt(a.Percent), a.Tier, a.ExclusiveGroup, a.LevelDelta,
		)
		if err != nil {
			return fmt.Errorf("insert item affix: %w", err)
		}
	}
	return nil
}

// GetItem returns one item by id.
func (s *Store) GetItem(ctx context.Context, id string) (loot.Item, error) {
	if err := s.ready(ctx); err != nil {
		return loot.Item{}, err
	}
	items, err := s.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if err != nil {
		return loot.Item{}, err
	}
	if len(items) == 0 {
		return loot.Item{}, storage.ErrNotFound
	}
	return items[0], nil
}

// ListItems returns every item of the owner.
func (s *Store) ListItems(ctx context.Context, ownerID string) ([]loot.Item, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE owner_id = ? ORDER BY id`, ownerID)
}

// ListEquipped returns the owner's equipped items.
func (s *Store) ListEquipped(ctx context.Context, ownerID string) ([]loot.Item, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE owner_id = ? AND equipped <> '' ORDER BY equipped`, ownerID)
}

// EquipItem moves an owned item into slot. Passing loot.EquipNone unequips.
func (s *Store) EquipItem(ctx context.Context, ownerID, itemID string, slot loot.EquipSlot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM items WHERE id = ?`, itemID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != ownerID) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load item owner: %w", err)
		}
		if slot != loot.EquipNone {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET equipped = '' WHERE owner_id = ? AND equipped = ?`, ownerID, string(slot)); err != nil {
				return fmt.Errorf("clear equip slot: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE items SET equipped = ? WHERE id = ?`, string(slot), itemID); err != nil {
			return fmt.Errorf("equip item: %w", err)
		}
		return nil
	})
}

// DeleteItem removes an owned item and its affixes.
func (s *Store) DeleteItem(ctx context.Context, ownerID, itemID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_affixes WHERE item_id IN (SELECT id FROM items WHERE id = ? AND owner_id = ?)`, itemID, ownerID); err != nil {
			return fmt.Errorf("delete item affixes: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND owner_id = ?`, itemID, ownerID)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]loot.Item, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	var items []loot.Item
	for rows.Next() {
		var (
			it                                loot.Item
			slot, attackType, baseStat, equip string
			rarity                            int
		)
		if err := rows.Scan(
			&it.ID, &it.OwnerID, &it.BaseID, &it.Name, &slot, &it.WeaponType, &attackType,
			&rarity, &it.Tier, &it.Level, &it.TotalLevel, &it.DamageMin, &it.DamageMax, &it.AttackSpeed,
			&baseStat, &it.BaseStatValue, &it.Value, &equip,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Slot = loot.SlotType(slot)
		it.AttackType = loot.AttackType(attackType)
		it.BaseStat = loot.Effect(baseStat)
		it.Equipped = loot.EquipSlot(equip)
		it.Rarity = loot.Rarity(rarity)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("read items: %w", err)
	}
	_ = rows.Close()

	for i := range items {
		affixes, err := s.loadAffixes(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Affixes = affixes
	}
	return items, nil
}

func (s *Store) loadAffixes(ctx context.Context, itemID string) ([]loot.Affix, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, family_id, kind, effect, target_kind, target_family,
		        value, percent, tier, exclusive_group, level_delta
		   FROM item_affixes
		  WHERE item_id = ?
		  ORDER BY position`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query item affixes: %w", err)
	}
	defer rows.Close()

	var affixes []loot.Affix
	for rows.Next() {
		var (
			a                                   loot.Affix
			kind, effect, targetKind, targetFam string
			percent                             int
		)
		if err := rows.Scan(&a.Name, &a.FamilyID, &kind, &effect, &targetKind, &targetFam,
			&a.Value, &percent, &a.Tier, &a.ExclusiveGroup, &a.LevelDelta); err != nil {
			return nil, fmt.Errorf("scan item affix: %w", err)
		}
		a.Kind = loot.AffixKind(kind)
		a.Effect = loot.Effect(effect)
		a.TargetFamily = encounter.Family(targetFam)
		a.Percent = percent != 0
		if k, ok := action.ParseKind(targetKind); ok {
			a.TargetKind = k
		}
		affixes = append(affixes, a)
	}
	return affixes, rows.Err()
}
