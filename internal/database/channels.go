package database

import (
	"context"
	"fmt"
	"time"

	"discord-proxy-bot/internal/models"

	"gorm.io/gorm/clause"
)

func (db *DB) ChannelPolicy(ctx context.Context, id string) (*models.ChannelPolicy, error) {
	var p models.ChannelPolicy
	if err := db.ctx(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "channel policy %s", id)
	}
	return &p, nil
}

// SetChannelPolicy creates or overwrites the row for p.ID.
func (db *DB) SetChannelPolicy(ctx context.Context, p *models.ChannelPolicy) error {
	p.UpdatedAt = time.Now()
	err := db.ctx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"whitelisted", "cooldown", "type", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("set channel policy %s: %w", p.ID, err)
	}
	return nil
}
