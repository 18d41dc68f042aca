package bot

import (
	"testing"

	"discord-proxy-bot/internal/apperr"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content  string
		wantName string
		wantLine string
		wantOK   bool
	}{
		{">create Bob img", "create", "Bob img", true},
		{">Help", "help", "", true},
		{">edit 3 info\nmulti line", "edit", "3 info\nmulti line", true},
		{">", "", "", false},
		{"> create", "", "", false},
		{"hello", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, line, ok := parseCommand(tt.content, ">")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantLine, line)
		})
	}
}

func TestLookupCommandAliases(t *testing.T) {
	for _, name := range []string{"cc", "create_character", "dc", "ec", "lc", "ap", "rp", "dp", "delete_prefix", "allow_channel", "deny_category"} {
		assert.NotNil(t, lookupCommand(name), name)
	}
	assert.Nil(t, lookupCommand("join"))

	admin := lookupCommand("whitelist_category")
	require.NotNil(t, admin)
	assert.True(t, admin.manageChannels)
	assert.True(t, admin.guildOnly)
	assert.False(t, lookupCommand("create").manageChannels)
}

func TestCommandNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		for _, n := range c.names {
			assert.False(t, seen[n], "duplicate command name %q", n)
			seen[n] = true
		}
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, bad)
	}
}

func TestAttachmentURL(t *testing.T) {
	assert.Empty(t, attachmentURL(&discordgo.Message{}))
	assert.Equal(t, "https://cdn/a.png", attachmentURL(&discordgo.Message{
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/a.png"}, {URL: "https://cdn/b.png"}},
	}))
}

func TestEditableFieldNames(t *testing.T) {
	assert.Equal(t, "classes, demeanor, description, image, info, name, pronouns, race, wiki", editableFieldNames())
}
