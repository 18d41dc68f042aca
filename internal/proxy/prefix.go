package proxy

import (
	"context"
	"fmt"
	"strings"

	"discord-proxy-bot/internal/models"
)

// PrefixResolver picks the character a message's prefix speaks for.
type PrefixResolver struct {
	store Store
}

func NewPrefixResolver(store Store) *PrefixResolver {
	return &PrefixResolver{store: store}
}

// Resolve returns the author's character whose prefix starts content, and
// that prefix. The longest matching prefix wins; among equal lengths the
// most recently registered one does. A nil character means no match.
func (r *PrefixResolver) Resolve(ctx context.Context, content, authorID string) (*models.Character, string, error) {
	prefixes, err := r.store.OwnedPrefixes(ctx, authorID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve prefix: %w", err)
	}

	var best *models.Prefix
	for i := range prefixes {
		p := &prefixes[i]
		if p.Prefix == "" || p.Character.Owner != authorID || !strings.HasPrefix(content, p.Prefix) {
			continue
		}
		if best == nil || len(p.Prefix) > len(best.Prefix) ||
			(len(p.Prefix) == len(best.Prefix) && p.ID > best.ID) {
			best = p
		}
	}
	if best == nil {
		return nil, "", nil
	}

	char := best.Character
	return &char, best.Prefix, nil
}
