package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/proxy"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// webhookName is the name given to the per-channel relay webhooks.
const webhookName = "hook"

// Platform implements proxy.Platform on top of a discordgo session.
type Platform struct {
	session *discordgo.Session
	botID   string
	waiter  *waiter
	logger  *zap.Logger

	// lookups collapses concurrent webhook lookups of one channel, so a
	// channel never gets two webhooks from racing first relays.
	lookups  singleflight.Group
	mu       sync.Mutex
	webhooks map[string]*discordgo.Webhook
}

func NewPlatform(s *discordgo.Session, botID string, logger *zap.Logger) *Platform {
	return &Platform{
		session:  s,
		botID:    botID,
		waiter:   newWaiter(),
		logger:   logger.Named("discord"),
		webhooks: make(map[string]*discordgo.Webhook),
	}
}

// Locate maps a channel id to a proxy.Location, resolving thread parents
// and categories.
func (p *Platform) Locate(ctx context.Context, channelID string) (proxy.Location, error) {
	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return proxy.Location{}, err
	}
	if !ch.IsThread() {
		return proxy.InChannel(ch.ID, ch.ParentID), nil
	}

	parent, err := p.channel(ctx, ch.ParentID)
	if err != nil {
		return proxy.Location{}, err
	}
	return proxy.InThread(ch.ID, parent.ID, parent.ParentID), nil
}

func (p *Platform) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if ch, err := p.session.State.Channel(id); err == nil {
		return ch, nil
	}
	ch, err := p.session.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, restError(err, "channel %s", id)
	}
	return ch, nil
}

func (p *Platform) Impersonation(ctx context.Context, channelID string) (proxy.Identity, error) {
	hook, err := p.webhook(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return &webhookIdentity{platform: p, hook: hook, channelID: channelID}, nil
}

// webhook finds the bot's webhook on channelID, creating one if needed.
func (p *Platform) webhook(ctx context.Context, channelID string) (*discordgo.Webhook, error) {
	if hook := p.cachedWebhook(channelID); hook != nil {
		return hook, nil
	}

	v, err, _ := p.lookups.Do(channelID, func() (any, error) {
		// An earlier flight may have filled the cache meanwhile.
		if hook := p.cachedWebhook(channelID); hook != nil {
			return hook, nil
		}
		hook, err := p.lookupWebhook(ctx, channelID)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.webhooks[channelID] = hook
		p.mu.Unlock()
		return hook, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discordgo.Webhook), nil
}

func (p *Platform) cachedWebhook(channelID string) *discordgo.Webhook {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.webhooks[channelID]
}

func (p *Platform) lookupWebhook(ctx context.Context, channelID string) (*discordgo.Webhook, error) {
	hooks, err := p.session.ChannelWebhooks(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, restError(err, "webhooks of %s", channelID)
	}
	for _, h := range hooks {
		if p.ownsWebhook(h, channelID) {
			return h, nil
		}
	}
	hook, err := p.session.WebhookCreate(channelID, webhookName, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create webhook in %s: %w", channelID, err)
	}
	return hook, nil
}

func (p *Platform) ownsWebhook(h *discordgo.Webhook, channelID string) bool {
	return h.User != nil && h.User.ID == p.botID && h.Token != "" &&
		(h.ChannelID == "" || h.ChannelID == channelID)
}

func (p *Platform) Relayed(ctx context.Context, loc proxy.Location, messageID string) (proxy.Relayed, error) {
	msg, err := p.session.ChannelMessage(loc.PostChannel(), messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, restError(err, "message %s", messageID)
	}
	if msg.WebhookID == "" {
		return nil, fmt.Errorf("message %s is not a relay: %w", messageID, apperr.ErrNotFound)
	}

	hook := p.cachedWebhook(loc.TrueChannel())
	if hook == nil || hook.ID != msg.WebhookID {
		// Any webhook of ours on the channel counts, including ones left
		// over from before the cache was filled.
		hook, err = p.session.Webhook(msg.WebhookID, discordgo.WithContext(ctx))
		if hasStatus(err, http.StatusForbidden) {
			return nil, fmt.Errorf("webhook %s is not ours: %w", msg.WebhookID, apperr.ErrNotFound)
		}
		if err != nil {
			return nil, restError(err, "webhook %s", msg.WebhookID)
		}
		if !p.ownsWebhook(hook, loc.TrueChannel()) {
			return nil, fmt.Errorf("message %s is not a relay: %w", messageID, apperr.ErrNotFound)
		}
	}
	return &relayedMessage{platform: p, hook: hook, loc: loc, msg: msg}, nil
}

func (p *Platform) Send(ctx context.Context, channelID, content string) (string, error) {
	msg, err := p.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return restError(err, "delete message %s", messageID)
	}
	return nil
}

func (p *Platform) SendDirect(ctx context.Context, userID string, dm proxy.Direct) error {
	ch, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: open dm with %s: %v", apperr.ErrDelivery, userID, err)
	}

	send := &discordgo.MessageSend{Content: dm.Content}
	if dm.Sheet != nil {
		send.Embeds = []*discordgo.MessageEmbed{sheetEmbed(dm.Sheet)}
	}
	if _, err := p.session.ChannelMessageSendComplex(ch.ID, send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: dm %s: %v", apperr.ErrDelivery, userID, err)
	}
	return nil
}

func (p *Platform) AwaitReply(ctx context.Context, userID, channelID string, timeout time.Duration) (*proxy.Reply, error) {
	msg, err := p.waiter.wait(ctx, userID, channelID, timeout)
	if err != nil {
		return nil, err
	}
	return &proxy.Reply{ID: msg.ID, ChannelID: msg.ChannelID, Content: msg.Content}, nil
}

// Notice sends content and deletes it again after ttl.
func (p *Platform) Notice(ctx context.Context, channelID, content string, ttl time.Duration) error {
	id, err := p.Send(ctx, channelID, content)
	if err != nil {
		return err
	}
	time.AfterFunc(ttl, func() {
		if err := p.DeleteMessage(context.Background(), channelID, id); err != nil {
			p.logger.Warn("auto-delete notice failed",
				zap.String("channel", channelID),
				zap.String("message", id),
				zap.Error(err))
		}
	})
	return nil
}

type webhookIdentity struct {
	platform  *Platform
	hook      *discordgo.Webhook
	channelID string
}

func (w *webhookIdentity) Post(ctx context.Context, post proxy.Post) (proxy.Relayed, error) {
	params := &discordgo.WebhookParams{
		Content:   post.Content,
		Username:  post.Username,
		AvatarURL: post.AvatarURL,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{
				discordgo.AllowedMentionTypeUsers,
				discordgo.AllowedMentionTypeRoles,
			},
		},
	}

	s := w.platform.session
	var (
		msg *discordgo.Message
		err error
	)
	if post.ThreadID != "" {
		msg, err = s.WebhookThreadExecute(w.hook.ID, w.hook.Token, true, post.ThreadID, params, discordgo.WithContext(ctx))
	} else {
		msg, err = s.WebhookExecute(w.hook.ID, w.hook.Token, true, params, discordgo.WithContext(ctx))
	}
	if err != nil {
		w.platform.forgetWebhook(w.channelID, err)
		return nil, fmt.Errorf("execute webhook: %w", err)
	}

	loc := proxy.InChannel(w.channelID, "")
	if post.ThreadID != "" {
		loc = proxy.InThread(post.ThreadID, w.channelID, "")
	}
	return &relayedMessage{platform: w.platform, hook: w.hook, loc: loc, msg: msg}, nil
}

// forgetWebhook drops a cached webhook that Discord no longer knows.
func (p *Platform) forgetWebhook(channelID string, err error) {
	if !isNotFound(err) {
		return
	}
	p.mu.Lock()
	delete(p.webhooks, channelID)
	p.mu.Unlock()
}

type relayedMessage struct {
	platform *Platform
	hook     *discordgo.Webhook
	loc      proxy.Location
	msg      *discordgo.Message
}

func (m *relayedMessage) ID() string { return m.msg.ID }

func (m *relayedMessage) AuthorName() string {
	if m.msg.Author == nil {
		return ""
	}
	return m.msg.Author.Username
}

func (m *relayedMessage) AddReaction(ctx context.Context, symbol string) error {
	return m.platform.session.MessageReactionAdd(m.loc.PostChannel(), m.msg.ID, symbol, discordgo.WithContext(ctx))
}

func (m *relayedMessage) RemoveReaction(ctx context.Context, symbol, userID string) error {
	return m.platform.session.MessageReactionRemove(m.loc.PostChannel(), m.msg.ID, symbol, userID, discordgo.WithContext(ctx))
}

func (m *relayedMessage) Edit(ctx context.Context, content string) error {
	edit := &discordgo.WebhookEdit{Content: &content}
	if !m.loc.IsThread() {
		_, err := m.platform.session.WebhookMessageEdit(m.hook.ID, m.hook.Token, m.msg.ID, edit, discordgo.WithContext(ctx))
		return err
	}
	return m.threadRequest(ctx, http.MethodPatch, edit)
}

func (m *relayedMessage) Delete(ctx context.Context) error {
	if !m.loc.IsThread() {
		return m.platform.session.WebhookMessageDelete(m.hook.ID, m.hook.Token, m.msg.ID, discordgo.WithContext(ctx))
	}
	return m.threadRequest(ctx, http.MethodDelete, nil)
}

// threadRequest addresses a webhook message inside a thread, which needs
// the thread_id query parameter.
func (m *relayedMessage) threadRequest(ctx context.Context, method string, body any) error {
	endpoint := discordgo.EndpointWebhookMessage(m.hook.ID, m.hook.Token, m.msg.ID) +
		"?thread_id=" + url.QueryEscape(m.loc.ThreadID)
	_, err := m.platform.session.RequestWithBucketID(method, endpoint, body,
		discordgo.EndpointWebhookToken(m.hook.ID, ""), discordgo.WithContext(ctx))
	return err
}

func isNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func hasStatus(err error, status int) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == status
}

// restError wraps err, mapping Discord 404s to apperr.ErrNotFound.
func restError(err error, format string, args ...any) error {
	if isNotFound(err) {
		return fmt.Errorf(format+": %w", append(args, apperr.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
