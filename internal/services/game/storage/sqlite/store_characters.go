package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/delving.space/internal/services/game/domain/character"
	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

// PutCharacter inserts or replaces a character and bumps its version.
func (s *Store) PutCharacter(ctx context.Context, c character.Character) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("character id is required")
	}
	if err := newQueries(s.sqlDB).UpsertCharacter(ctx, c); err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}

// GetCharacter returns one character by id.
func (s *Store) GetCharacter(ctx context.Context, id string) (character.Character, error) {
	if err := s.ready(ctx); err != nil {
		return character.Character{}, err
	}
	c, err := newQueries(s.sqlDB).GetCharacter(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return character.Character{}, err
		}
		return character.Character{}, fmt.Errorf("get character: %w", err)
	}
	return c, nil
}
