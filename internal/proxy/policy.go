package proxy

import (
	"context"
	"errors"
	"fmt"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"
)

// PolicyGate decides whether relaying is allowed at a location and with
// what cooldown.
type PolicyGate struct {
	store Store
}

func NewPolicyGate(store Store) *PolicyGate {
	return &PolicyGate{store: store}
}

// Cooldown returns the cooldown seconds for loc and whether relaying is
// allowed there. The true channel's own row decides when it exists;
// otherwise the category's row does. With neither, the channel is treated
// as blacklisted.
func (g *PolicyGate) Cooldown(ctx context.Context, loc Location) (int, bool, error) {
	policy, err := g.lookup(ctx, loc.TrueChannel())
	if err != nil {
		return 0, false, err
	}
	if policy == nil && loc.CategoryID != "" {
		if policy, err = g.lookup(ctx, loc.CategoryID); err != nil {
			return 0, false, err
		}
	}
	if policy == nil || !policy.Whitelisted {
		return 0, false, nil
	}
	return max(policy.Cooldown, 0), true, nil
}

func (g *PolicyGate) lookup(ctx context.Context, id string) (*models.ChannelPolicy, error) {
	p, err := g.store.ChannelPolicy(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("channel policy %s: %w", id, err)
	}
	return p, nil
}
