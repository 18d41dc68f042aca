// Package bot connects the proxy core to Discord: gateway events, webhook
// relays, reply prompts and the text commands.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"discord-proxy-bot/internal/avatar"
	"discord-proxy-bot/internal/database"
	"discord-proxy-bot/internal/models"
	"discord-proxy-bot/internal/proxy"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Config carries the settings of the Discord adapter.
type Config struct {
	CommandPrefix     string
	PromptTimeout     time.Duration
	NoticeTTL         time.Duration
	AvatarURLTemplate string
	StaffChannelID    string
}

// Searcher is the optional semantic persona search.
type Searcher interface {
	Index(ctx context.Context, c *models.Character) error
	Search(ctx context.Context, query string, limit int) ([]models.Character, error)
}

type BotHandler struct {
	db        *database.DB
	avatars   *avatar.Cache
	search    Searcher
	cooldowns *proxy.CooldownTracker
	cfg       Config
	logger    *zap.Logger

	session    *discordgo.Session
	botID      string
	platform   *Platform
	dispatcher *proxy.Dispatcher
	reactions  *proxy.ReactionHandler
}

// NewBotHandler builds a handler. search may be nil when semantic search
// is disabled.
func NewBotHandler(db *database.DB, avatars *avatar.Cache, search Searcher, cooldowns *proxy.CooldownTracker, cfg Config, logger *zap.Logger) *BotHandler {
	return &BotHandler{
		db:        db,
		avatars:   avatars,
		search:    search,
		cooldowns: cooldowns,
		cfg:       cfg,
		logger:    logger.Named("bot"),
	}
}

// SetSession wires the handler to s and registers the gateway handlers.
// It must be called before the session is opened.
func (h *BotHandler) SetSession(s *discordgo.Session) error {
	user, err := s.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	h.session = s
	h.botID = user.ID
	h.platform = NewPlatform(s, h.botID, h.logger)

	h.dispatcher = proxy.NewDispatcher(h.db, h.platform, h.cooldowns, proxy.DispatcherConfig{
		BotID:         h.botID,
		CommandPrefix: h.cfg.CommandPrefix,
		AvatarURL:     h.avatarURL,
	}, h.logger)
	h.reactions = proxy.NewReactionHandler(h.db, h.platform, proxy.ReactionConfig{
		BotID:          h.botID,
		CommandPrefix:  h.cfg.CommandPrefix,
		PromptTimeout:  h.cfg.PromptTimeout,
		StaffChannelID: h.cfg.StaffChannelID,
		AvatarURL:      h.avatarURL,
	}, h.logger)

	s.AddHandler(h.OnMessageCreate)
	s.AddHandler(h.OnMessageReactionAdd)
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		h.logger.Info("connected", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
	return nil
}

func (h *BotHandler) avatarURL(id uint) string {
	return avatar.URL(h.cfg.AvatarURLTemplate, id)
}

func (h *BotHandler) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == h.botID {
		return
	}
	human := !m.Author.Bot && m.WebhookID == ""
	if human && h.platform.waiter.deliver(m.Message) {
		return
	}

	ctx := context.Background()
	if human && h.runCommand(ctx, m) {
		return
	}
	if m.GuildID == "" {
		return
	}

	loc, err := h.platform.Locate(ctx, m.ChannelID)
	if err != nil {
		h.logger.Error("locate channel", zap.String("channel", m.ChannelID), zap.Error(err))
		return
	}
	outcome, err := h.dispatcher.Handle(ctx, proxy.Message{
		ID:          m.ID,
		GuildID:     m.GuildID,
		AuthorID:    m.Author.ID,
		AuthorIsBot: !human,
		Content:     m.Content,
		Location:    loc,
		ReplyURL:    replyURL(m.Message),
	})
	if err != nil {
		h.logger.Error("relay failed", zap.String("message", m.ID), zap.Error(err))
		return
	}
	h.logger.Debug("message handled", zap.String("message", m.ID), zap.Stringer("outcome", outcome))
}

// replyURL links to the message m replies to, if any.
func replyURL(m *discordgo.Message) string {
	ref := m.MessageReference
	if ref == nil || ref.MessageID == "" {
		return ""
	}
	guildID := ref.GuildID
	if guildID == "" {
		guildID = m.GuildID
	}
	channelID := ref.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, ref.MessageID)
}

func (h *BotHandler) OnMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == h.botID {
		return
	}
	ctx := context.Background()
	if r.GuildID == "" {
		h.cleanupDirect(ctx, r)
		return
	}
	if proxy.ParseControl(r.Emoji.Name) == proxy.ControlNone {
		return
	}

	loc, err := h.platform.Locate(ctx, r.ChannelID)
	if err != nil {
		h.logger.Error("locate channel", zap.String("channel", r.ChannelID), zap.Error(err))
		return
	}
	err = h.reactions.Handle(ctx, proxy.Reaction{
		MessageID: r.MessageID,
		GuildID:   r.GuildID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
		Location:  loc,
	})
	if err != nil {
		h.logger.Error("reaction failed", zap.String("message", r.MessageID), zap.Error(err))
	}
}

// isCleanupEmoji reports whether emoji asks to delete a direct message.
func isCleanupEmoji(emoji string) bool {
	switch strings.TrimSuffix(emoji, "\ufe0f") {
	case proxy.SymbolDelete, "\u274c":
		return true
	}
	return false
}

// cleanupDirect deletes a direct message the bot sent when the recipient
// reacts to it with a cross.
func (h *BotHandler) cleanupDirect(ctx context.Context, r *discordgo.MessageReactionAdd) {
	if !isCleanupEmoji(r.Emoji.Name) {
		return
	}
	msg, err := h.session.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		h.logger.Warn("load direct message", zap.String("message", r.MessageID), zap.Error(err))
		return
	}
	if msg.Author == nil || msg.Author.ID != h.botID {
		return
	}
	if err := h.platform.DeleteMessage(ctx, r.ChannelID, r.MessageID); err != nil {
		h.logger.Warn("delete direct message", zap.String("message", r.MessageID), zap.Error(err))
	}
}
