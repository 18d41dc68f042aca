// internal/models/models.go
package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Character is a persona a member can speak through.
type Character struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null;index"`
	Pronouns    string
	Race        string
	Classes     string
	Description string `gorm:"type:text"`
	Demeanor    string `gorm:"type:text"`
	Info        string `gorm:"type:text"`
	Image       string
	Wiki        string
	Owner       string `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Prefixes []Prefix `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
}

func (Character) TableName() string { return "characters" }

// EditableFields lists the character columns members may change with the
// edit command, keyed by the name they type.
var EditableFields = map[string]string{
	"name":        "name",
	"pronouns":    "pronouns",
	"race":        "race",
	"classes":     "classes",
	"description": "description",
	"demeanor":    "demeanor",
	"info":        "info",
	"image":       "image",
	"wiki":        "wiki",
}

// Prefix triggers a relay as its character when a message starts with it.
type Prefix struct {
	ID          uint      `gorm:"primaryKey"`
	CharacterID uint      `gorm:"column:cid;not null;index"`
	Prefix      string    `gorm:"not null"`
	Character   Character `gorm:"foreignKey:CharacterID"`
	CreatedAt   time.Time
}

func (Prefix) TableName() string { return "prefixes" }

// Proxy binds a member's unprefixed messages in one channel or thread to a
// character. ThreadID is empty outside threads.
type Proxy struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_proxy_scope"`
	ChannelID   string    `gorm:"column:channel;not null;uniqueIndex:idx_proxy_scope"`
	ThreadID    string    `gorm:"column:thread;not null;default:'';uniqueIndex:idx_proxy_scope"`
	CharacterID uint      `gorm:"column:cid;not null;index"`
	Character   Character `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
	UpdatedAt   time.Time
}

func (Proxy) TableName() string { return "proxies" }

// ChannelKind tells a channel row apart from a category row.
type ChannelKind string

const (
	KindText     ChannelKind = "text"
	KindCategory ChannelKind = "category"
)

// ChannelPolicy whitelists a channel or category for relaying.
type ChannelPolicy struct {
	ID          string      `gorm:"primaryKey"`
	Whitelisted bool        `gorm:"not null;default:false"`
	Cooldown    int         `gorm:"not null;default:0"`
	Kind        ChannelKind `gorm:"column:type;not null;default:'text'"`
	UpdatedAt   time.Time
}

func (ChannelPolicy) TableName() string { return "channels" }

// Relay records which character a webhook message was posted as.
type Relay struct {
	MessageID   string    `gorm:"primaryKey"`
	CharacterID uint      `gorm:"column:cid;not null;index"`
	ChannelID   string    `gorm:"not null"`
	ThreadID    string    `gorm:"not null;default:''"`
	AuthorID    string    `gorm:"not null"`
	Character   Character `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
}

func (Relay) TableName() string { return "relays" }

// CharacterEmbedding holds the sheet embedding used by persona search.
// Only migrated on postgres.
type CharacterEmbedding struct {
	CharacterID uint            `gorm:"primaryKey;autoIncrement:false;column:cid"`
	Embedding   pgvector.Vector `gorm:"type:vector(1536)"` // OpenAI embedding size
	Character   Character       `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE"`
	UpdatedAt   time.Time
}

func (CharacterEmbedding) TableName() string { return "character_embeddings" }
