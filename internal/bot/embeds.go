package bot

import (
	"fmt"
	"time"

	"discord-proxy-bot/internal/models"
	"discord-proxy-bot/internal/proxy"

	"github.com/bwmarrin/discordgo"
)

const (
	embedColor       = 0xF1C40F
	maxFieldValue    = 1024
	fieldsPerEmbed   = 25
	embedsPerMessage = 10
)

func sheetEmbed(sh *proxy.Sheet) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     sh.Title,
		Color:     embedColor,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range sh.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  truncate(f.Value, maxFieldValue),
			Inline: true,
		})
	}
	if sh.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: sh.ImageURL}
	}
	return embed
}

// listEmbeds lays characters out as name/id fields, 25 per embed.
func listEmbeds(title string, chars []models.Character) []*discordgo.MessageEmbed {
	var embeds []*discordgo.MessageEmbed
	for i, c := range chars {
		if i%fieldsPerEmbed == 0 {
			embeds = append(embeds, &discordgo.MessageEmbed{Title: title, Color: embedColor})
		}
		last := embeds[len(embeds)-1]
		last.Fields = append(last.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(c.Name, 256),
			Value:  fmt.Sprintf("ID: %d", c.ID),
			Inline: true,
		})
	}
	return embeds
}

// batches splits embeds into groups that fit in one message.
func batches(embeds []*discordgo.MessageEmbed) [][]*discordgo.MessageEmbed {
	var out [][]*discordgo.MessageEmbed
	for len(embeds) > embedsPerMessage {
		out = append(out, embeds[:embedsPerMessage])
		embeds = embeds[embedsPerMessage:]
	}
	if len(embeds) > 0 {
		out = append(out, embeds)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
