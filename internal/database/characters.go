package database

import (
	"context"
	"fmt"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"

	"gorm.io/gorm"
)

func (db *DB) CreateCharacter(ctx context.Context, c *models.Character) error {
	if err := db.ctx(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create character: %w", err)
	}
	return nil
}

func (db *DB) Character(ctx context.Context, id uint) (*models.Character, error) {
	var c models.Character
	if err := db.ctx(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "character %d", id)
	}
	return &c, nil
}

// CharactersByName returns every character whose name matches exactly.
func (db *DB) CharactersByName(ctx context.Context, name string) ([]models.Character, error) {
	var chars []models.Character
	err := db.ctx(ctx).Where("name = ?", name).Order("id").Find(&chars).Error
	return chars, err
}

func (db *DB) CharactersByOwner(ctx context.Context, owner string) ([]models.Character, error) {
	var chars []models.Character
	err := db.ctx(ctx).Where("owner = ?", owner).Order("id").Find(&chars).Error
	return chars, err
}

// UpdateCharacterField sets one editable column.
func (db *DB) UpdateCharacterField(ctx context.Context, id uint, field, value string) error {
	column, ok := models.EditableFields[field]
	if !ok {
		return fmt.Errorf("field %q: %w", field, apperr.ErrInvalidInput)
	}
	res := db.ctx(ctx).Model(&models.Character{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update character %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("character %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteCharacter removes a character with its prefixes, bindings, relay
// log entries and embedding.
func (db *DB) DeleteCharacter(ctx context.Context, id uint) error {
	return db.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dep := range []any{&models.Prefix{}, &models.Proxy{}, &models.Relay{}} {
			if err := tx.Where("cid = ?", id).Delete(dep).Error; err != nil {
				return fmt.Errorf("delete dependents of character %d: %w", id, err)
			}
		}
		if db.SupportsVectors() {
			if err := tx.Where("cid = ?", id).Delete(&models.CharacterEmbedding{}).Error; err != nil {
				return fmt.Errorf("delete embedding of character %d: %w", id, err)
			}
		}
		res := tx.Delete(&models.Character{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete character %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("character %d: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
}
