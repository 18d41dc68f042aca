package proxy

import (
	"context"

	"discord-proxy-bot/internal/models"
)

// Store is the slice of the persona store the proxy core reads and writes.
// Lookups that find nothing return an error wrapping apperr.ErrNotFound.
type Store interface {
	Character(ctx context.Context, id uint) (*models.Character, error)
	CharactersByName(ctx context.Context, name string) ([]models.Character, error)
	OwnedPrefixes(ctx context.Context, owner string) ([]models.Prefix, error)

	Binding(ctx context.Context, userID, channelID, threadID string) (*models.Proxy, error)
	UpsertBinding(ctx context.Context, p *models.Proxy) error
	DeleteBinding(ctx context.Context, userID string, characterID uint, channelID, threadID string) error

	ChannelPolicy(ctx context.Context, id string) (*models.ChannelPolicy, error)

	RecordRelay(ctx context.Context, r *models.Relay) error
	Relay(ctx context.Context, messageID string) (*models.Relay, error)
}
