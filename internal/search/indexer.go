// Package search finds characters by meaning rather than by name, using
// OpenAI embeddings stored in pgvector.
package search

import (
	"context"
	"fmt"
	"strings"

	"discord-proxy-bot/internal/models"

	"go.uber.org/zap"
)

// Embedder turns text into a vector.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists and queries character embeddings.
type VectorStore interface {
	StoreEmbedding(ctx context.Context, characterID uint, embedding []float32) error
	SearchSimilarCharacters(ctx context.Context, embedding []float32, limit int) ([]models.Character, error)
}

type Indexer struct {
	embedder Embedder
	store    VectorStore
	logger   *zap.Logger
}

func NewIndexer(embedder Embedder, store VectorStore, logger *zap.Logger) *Indexer {
	return &Indexer{embedder: embedder, store: store, logger: logger.Named("search")}
}

// Index embeds c's sheet and stores it. Errors are logged and returned;
// callers carry on without search for that character.
func (ix *Indexer) Index(ctx context.Context, c *models.Character) error {
	text := Document(c)
	if text == "" {
		return nil
	}

	embedding, err := ix.embedder.CreateEmbedding(ctx, text)
	if err == nil {
		err = ix.store.StoreEmbedding(ctx, c.ID, embedding)
	}
	if err != nil {
		ix.logger.Warn("index character", zap.Uint("character", c.ID), zap.Error(err))
		return fmt.Errorf("index character %d: %w", c.ID, err)
	}
	return nil
}

// Search returns up to limit characters closest to query.
func (ix *Indexer) Search(ctx context.Context, query string, limit int) ([]models.Character, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	embedding, err := ix.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	chars, err := ix.store.SearchSimilarCharacters(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar characters: %w", err)
	}
	return chars, nil
}

// Document is the text embedded for a character.
func Document(c *models.Character) string {
	var parts []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Name", c.Name)
	add("Pronouns", c.Pronouns)
	add("Race", c.Race)
	add("Classes", c.Classes)
	add("Appearance", c.Description)
	add("Demeanor", c.Demeanor)
	add("Info", c.Info)
	return strings.Join(parts, "\n")
}
