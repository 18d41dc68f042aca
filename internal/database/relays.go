package database

import (
	"context"
	"fmt"

	"discord-proxy-bot/internal/models"
)

func (db *DB) RecordRelay(ctx context.Context, r *models.Relay) error {
	if err := db.ctx(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("record relay %s: %w", r.MessageID, err)
	}
	return nil
}

func (db *DB) Relay(ctx context.Context, messageID string) (*models.Relay, error) {
	var r models.Relay
	if err := db.ctx(ctx).First(&r, "message_id = ?", messageID).Error; err != nil {
		return nil, notFound(err, "relay %s", messageID)
	}
	return &r, nil
}
