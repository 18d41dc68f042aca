package database

import (
	"context"
	"fmt"
	"time"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"

	"gorm.io/gorm/clause"
)

func (db *DB) Binding(ctx context.Context, userID, channelID, threadID string) (*models.Proxy, error) {
	var p models.Proxy
	err := db.ctx(ctx).
		Where("user_id = ? AND channel = ? AND thread = ?", userID, channelID, threadID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "binding for %s in %s/%s", userID, channelID, threadID)
	}
	return &p, nil
}

// UpsertBinding stores p, replacing any binding with the same user,
// channel and thread.
func (db *DB) UpsertBinding(ctx context.Context, p *models.Proxy) error {
	p.UpdatedAt = time.Now()
	err := db.ctx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel"}, {Name: "thread"}},
		DoUpdates: clause.AssignmentColumns([]string{"cid", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert binding: %w", err)
	}
	return nil
}

// DeleteBinding removes the binding only when every field matches.
func (db *DB) DeleteBinding(ctx context.Context, userID string, characterID uint, channelID, threadID string) error {
	res := db.ctx(ctx).
		Where("user_id = ? AND cid = ? AND channel = ? AND thread = ?", userID, characterID, channelID, threadID).
		Delete(&models.Proxy{})
	if res.Error != nil {
		return fmt.Errorf("delete binding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("binding for %s in %s/%s: %w", userID, channelID, threadID, apperr.ErrNotFound)
	}
	return nil
}
