package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discord-proxy-bot/internal/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"
)

var errNoVectors = errors.New("vector search needs the postgres driver")

// StoreEmbedding creates or replaces the embedding for a character.
func (db *DB) StoreEmbedding(ctx context.Context, characterID uint, embedding []float32) error {
	if !db.SupportsVectors() {
		return errNoVectors
	}
	row := &models.CharacterEmbedding{
		CharacterID: characterID,
		Embedding:   pgvector.NewVector(embedding),
		UpdatedAt:   time.Now(),
	}
	err := db.ctx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cid"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("store embedding for %d: %w", characterID, err)
	}
	return nil
}

// SearchSimilarCharacters returns the characters nearest to embedding.
func (db *DB) SearchSimilarCharacters(ctx context.Context, embedding []float32, limit int) ([]models.Character, error) {
	if !db.SupportsVectors() {
		return nil, errNoVectors
	}
	var rows []models.CharacterEmbedding
	err := db.ctx(ctx).
		Preload("Character").
		Order(clause.Expr{SQL: "embedding <-> ?", Vars: []any{pgvector.NewVector(embedding)}}).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search characters: %w", err)
	}

	chars := make([]models.Character, 0, len(rows))
	for _, r := range rows {
		chars = append(chars, r.Character)
	}
	return chars, nil
}
