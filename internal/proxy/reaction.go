package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"

	"go.uber.org/zap"
)

// Reaction is a reaction-added event.
type Reaction struct {
	MessageID string
	GuildID   string
	UserID    string
	// Emoji is the name exactly as reported, used again to revoke it.
	Emoji    string
	Location Location
}

// ReactionConfig carries the settings the reaction handler needs.
type ReactionConfig struct {
	BotID         string
	CommandPrefix string
	PromptTimeout time.Duration
	// StaffChannelID receives notices when a direct message cannot be
	// delivered. Empty means the channel the reaction was made in.
	StaffChannelID string
	AvatarURL      func(id uint) string
}

// ReactionHandler executes the control reactions on relayed messages.
type ReactionHandler struct {
	store    Store
	platform Platform
	cfg      ReactionConfig
	logger   *zap.Logger
}

func NewReactionHandler(store Store, platform Platform, cfg ReactionConfig, logger *zap.Logger) *ReactionHandler {
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = 120 * time.Second
	}
	return &ReactionHandler{
		store:    store,
		platform: platform,
		cfg:      cfg,
		logger:   logger.Named("reactions"),
	}
}

// Handle runs the control named by r's emoji, if r is on a relayed message.
func (h *ReactionHandler) Handle(ctx context.Context, r Reaction) error {
	if r.UserID == h.cfg.BotID || r.GuildID == "" {
		return nil
	}
	control := ParseControl(r.Emoji)
	if control == ControlNone {
		return nil
	}

	msg, err := h.platform.Relayed(ctx, r.Location, r.MessageID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load relayed message %s: %w", r.MessageID, err)
	}

	char, err := h.character(ctx, msg)
	if err != nil || char == nil {
		return err
	}

	logger := h.logger.With(
		zap.Stringer("control", control),
		zap.String("message", r.MessageID),
		zap.Uint("character", char.ID),
		zap.String("user", r.UserID))

	switch control {
	case ControlDelete:
		if r.UserID != char.Owner {
			logger.Debug("delete by non-owner")
			return h.revoke(ctx, msg, r)
		}
		if err := msg.Delete(ctx); err != nil {
			return fmt.Errorf("delete relayed message: %w", err)
		}
		return nil

	case ControlEdit:
		if r.UserID != char.Owner {
			logger.Debug("edit by non-owner")
			return h.revoke(ctx, msg, r)
		}
		return h.edit(ctx, msg, r)

	case ControlInfo:
		h.direct(ctx, r, Direct{Sheet: BuildSheet(char, h.avatarURL(char.ID))})
		return h.revoke(ctx, msg, r)

	case ControlHelp:
		h.direct(ctx, r, Direct{Content: HelpText(h.cfg.CommandPrefix)})
		return h.revoke(ctx, msg, r)
	}
	return nil
}

// character maps a relayed message back to its character: by the relay log
// when the message is in it, otherwise by a unique exact name match.
func (h *ReactionHandler) character(ctx context.Context, msg Relayed) (*models.Character, error) {
	relay, err := h.store.Relay(ctx, msg.ID())
	switch {
	case err == nil:
		char, err := h.store.Character(ctx, relay.CharacterID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return char, err
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("relay log %s: %w", msg.ID(), err)
	}

	chars, err := h.store.CharactersByName(ctx, msg.AuthorName())
	if err != nil {
		return nil, fmt.Errorf("characters named %q: %w", msg.AuthorName(), err)
	}
	if len(chars) != 1 {
		if len(chars) > 1 {
			h.logger.Warn("ambiguous character name on relayed message",
				zap.String("message", msg.ID()),
				zap.String("name", msg.AuthorName()),
				zap.Int("matches", len(chars)))
		}
		return nil, nil
	}
	return &chars[0], nil
}

// edit prompts the owner for replacement content. The triggering reaction
// is revoked whatever happens.
func (h *ReactionHandler) edit(ctx context.Context, msg Relayed, r Reaction) (err error) {
	channelID := r.Location.PostChannel()
	defer func() {
		err = errors.Join(err, h.revoke(ctx, msg, r))
	}()

	promptID, err := h.platform.Send(ctx, channelID, "Enter new message content:")
	if err != nil {
		return fmt.Errorf("send edit prompt: %w", err)
	}
	defer func() {
		if derr := h.platform.DeleteMessage(ctx, channelID, promptID); derr != nil {
			err = errors.Join(err, fmt.Errorf("delete edit prompt: %w", derr))
		}
	}()

	reply, err := h.platform.AwaitReply(ctx, r.UserID, channelID, h.cfg.PromptTimeout)
	if errors.Is(err, apperr.ErrTimeout) {
		if _, serr := h.platform.Send(ctx, channelID, "Timed out!"); serr != nil {
			return fmt.Errorf("send timeout notice: %w", serr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("await edit: %w", err)
	}

	if err := msg.Edit(ctx, reply.Content); err != nil {
		return fmt.Errorf("edit relayed message: %w", err)
	}
	if err := h.platform.DeleteMessage(ctx, reply.ChannelID, reply.ID); err != nil {
		return fmt.Errorf("delete edit reply: %w", err)
	}
	return nil
}

// direct sends dm to the reactor, falling back to a public notice when
// their privacy settings refuse it.
func (h *ReactionHandler) direct(ctx context.Context, r Reaction, dm Direct) {
	err := h.platform.SendDirect(ctx, r.UserID, dm)
	if err == nil {
		return
	}
	h.logger.Info("direct message failed", zap.String("user", r.UserID), zap.Error(err))

	channelID := h.cfg.StaffChannelID
	if channelID == "" {
		channelID = r.Location.PostChannel()
	}
	notice := fmt.Sprintf("<@%s>: I couldn't send you a direct message. Please allow direct messages from server members.", r.UserID)
	if _, err := h.platform.Send(ctx, channelID, notice); err != nil {
		h.logger.Warn("send delivery notice", zap.String("channel", channelID), zap.Error(err))
	}
}

func (h *ReactionHandler) revoke(ctx context.Context, msg Relayed, r Reaction) error {
	if err := msg.RemoveReaction(ctx, r.Emoji, r.UserID); err != nil {
		return fmt.Errorf("revoke reaction: %w", err)
	}
	return nil
}

func (h *ReactionHandler) avatarURL(id uint) string {
	if h.cfg.AvatarURL == nil {
		return ""
	}
	return h.cfg.AvatarURL(id)
}
