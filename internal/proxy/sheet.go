package proxy

import (
	"strings"

	"discord-proxy-bot/internal/models"
)

// Sheet is a platform-neutral rendering of a character's information.
type Sheet struct {
	Title    string
	Fields   []SheetField
	ImageURL string
}

type SheetField struct {
	Name  string
	Value string
}

// BuildSheet renders c. Empty values are shown as "-" since embeds reject
// blank fields.
func BuildSheet(c *models.Character, imageURL string) *Sheet {
	field := func(name, value string) SheetField {
		if strings.TrimSpace(value) == "" {
			value = "-"
		}
		return SheetField{Name: name, Value: value}
	}
	return &Sheet{
		Title: "Info for " + c.Name,
		Fields: []SheetField{
			field("Pronouns", c.Pronouns),
			field("Race", c.Race),
			field("Class(es)", c.Classes),
			field("Physical Appearance", c.Description),
			field("Demeanor", c.Demeanor),
			field("Info", c.Info),
			field("Wiki", c.Wiki),
			field("Player", "<@"+c.Owner+">"),
		},
		ImageURL: imageURL,
	}
}

// Text flattens the sheet, one "Name: value" line per field.
func (s *Sheet) Text() string {
	var b strings.Builder
	b.WriteString(s.Title)
	for _, f := range s.Fields {
		b.WriteString("\n")
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}
