package proxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixResolver(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	aria := store.addCharacter("Aria", "u1")
	arianne := store.addCharacter("Arianne", "u1")
	bram := store.addCharacter("Bram", "u2")
	store.addPrefix(aria, "a:")
	store.addPrefix(arianne, "a::")
	store.addPrefix(bram, "b:")
	store.addPrefix(bram, "a:::")

	r := NewPrefixResolver(store)

	tests := []struct {
		name       string
		content    string
		author     string
		wantID     uint
		wantPrefix string
	}{
		{"single match", "a: hello", "u1", aria.ID, "a:"},
		{"longest wins", "a:: hello", "u1", arianne.ID, "a::"},
		{"other owner's longer prefix ignored", "a::: hello", "u1", arianne.ID, "a::"},
		{"other owner's prefix never resolves", "b: hello", "u1", 0, ""},
		{"owner resolves own prefix", "b: hello", "u2", bram.ID, "b:"},
		{"no match", "hello", "u1", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			char, prefix, err := r.Resolve(ctx, tt.content, tt.author)
			require.NoError(t, err)
			if tt.wantID == 0 {
				assert.Nil(t, char)
				assert.Empty(t, prefix)
				return
			}
			require.NotNil(t, char)
			assert.Equal(t, tt.wantID, char.ID)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestPrefixResolverTiePrefersNewest(t *testing.T) {
	store := newFakeStore()
	first := store.addCharacter("First", "u1")
	second := store.addCharacter("Second", "u1")
	store.addPrefix(second, "x:")
	store.addPrefix(first, "x:")

	char, prefix, err := NewPrefixResolver(store).Resolve(context.Background(), "x: hi", "u1")
	require.NoError(t, err)
	require.NotNil(t, char)
	assert.Equal(t, first.ID, char.ID)
	assert.Equal(t, "x:", prefix)
}

func TestPrefixResolverSkipsEmptyPrefix(t *testing.T) {
	store := newFakeStore()
	store.addPrefix(store.addCharacter("Blank", "u1"), "")

	char, _, err := NewPrefixResolver(store).Resolve(context.Background(), "anything", "u1")
	require.NoError(t, err)
	assert.Nil(t, char)
}
