package proxy

import (
	"context"
	"errors"
	"fmt"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"
)

// BindingRegistry keeps the sticky (user, channel, thread) to character
// bindings. A binding on a channel does not reach into its threads.
type BindingRegistry struct {
	store Store
}

func NewBindingRegistry(store Store) *BindingRegistry {
	return &BindingRegistry{store: store}
}

// Bind makes characterID speak for userID at loc, replacing any earlier
// binding there.
func (r *BindingRegistry) Bind(ctx context.Context, userID string, characterID uint, loc Location) error {
	return r.store.UpsertBinding(ctx, &models.Proxy{
		UserID:      userID,
		CharacterID: characterID,
		ChannelID:   loc.TrueChannel(),
		ThreadID:    loc.ThreadID,
	})
}

// Unbind removes the binding only if it is exactly this character at loc.
func (r *BindingRegistry) Unbind(ctx context.Context, userID string, characterID uint, loc Location) error {
	return r.store.DeleteBinding(ctx, userID, characterID, loc.TrueChannel(), loc.ThreadID)
}

// Resolve returns the character bound for userID at loc, or nil.
func (r *BindingRegistry) Resolve(ctx context.Context, userID string, loc Location) (*models.Character, error) {
	b, err := r.store.Binding(ctx, userID, loc.TrueChannel(), loc.ThreadID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve binding: %w", err)
	}

	char, err := r.store.Character(ctx, b.CharacterID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve binding: %w", err)
	}
	if char.Owner != userID {
		return nil, nil
	}
	return char, nil
}
