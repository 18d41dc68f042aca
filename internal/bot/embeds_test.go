package bot

import (
	"fmt"
	"strings"
	"testing"

	"discord-proxy-bot/internal/models"
	"discord-proxy-bot/internal/proxy"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetEmbed(t *testing.T) {
	sheet := proxy.BuildSheet(&models.Character{
		Name:  "Aria",
		Race:  "Elf",
		Info:  strings.Repeat("x", 2000),
		Owner: "u1",
	}, "http://localhost:8080/images/1")

	embed := sheetEmbed(sheet)
	assert.Equal(t, "Info for Aria", embed.Title)
	require.NotNil(t, embed.Image)
	assert.Equal(t, "http://localhost:8080/images/1", embed.Image.URL)
	require.Len(t, embed.Fields, len(sheet.Fields))
	for _, f := range embed.Fields {
		assert.LessOrEqual(t, len([]rune(f.Value)), maxFieldValue, f.Name)
		assert.True(t, f.Inline)
	}
	assert.Equal(t, "<@u1>", embed.Fields[len(embed.Fields)-1].Value)
}

func TestSheetEmbedWithoutImage(t *testing.T) {
	embed := sheetEmbed(&proxy.Sheet{Title: "Info for Bram"})
	assert.Nil(t, embed.Image)
}

func TestListEmbedsAndBatches(t *testing.T) {
	var chars []models.Character
	for i := 1; i <= 260; i++ {
		chars = append(chars, models.Character{ID: uint(i), Name: fmt.Sprintf("char %d", i)})
	}

	embeds := listEmbeds("Your Characters", chars)
	require.Len(t, embeds, 11)
	assert.Len(t, embeds[0].Fields, fieldsPerEmbed)
	assert.Len(t, embeds[10].Fields, 10)
	assert.Equal(t, "ID: 26", embeds[1].Fields[0].Value)

	groups := batches(embeds)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], embedsPerMessage)
	assert.Len(t, groups[1], 1)

	assert.Empty(t, batches([]*discordgo.MessageEmbed{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
