package database

import (
	"context"
	"fmt"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"
)

func (db *DB) AddPrefix(ctx context.Context, characterID uint, prefix string) (*models.Prefix, error) {
	p := &models.Prefix{CharacterID: characterID, Prefix: prefix}
	if err := db.ctx(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("add prefix: %w", err)
	}
	return p, nil
}

func (db *DB) RemovePrefix(ctx context.Context, characterID uint, prefix string) error {
	res := db.ctx(ctx).Where("cid = ? AND prefix = ?", characterID, prefix).Delete(&models.Prefix{})
	if res.Error != nil {
		return fmt.Errorf("remove prefix: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("prefix %q on character %d: %w", prefix, characterID, apperr.ErrNotFound)
	}
	return nil
}

// OwnedPrefixes returns every prefix registered to a character of owner,
// with the character loaded.
func (db *DB) OwnedPrefixes(ctx context.Context, owner string) ([]models.Prefix, error) {
	var prefixes []models.Prefix
	err := db.ctx(ctx).
		InnerJoins("Character", db.Where(&models.Character{Owner: owner})).
		Order("prefixes.id").
		Find(&prefixes).Error
	if err != nil {
		return nil, fmt.Errorf("owned prefixes: %w", err)
	}
	return prefixes, nil
}
