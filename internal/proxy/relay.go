package proxy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"discord-proxy-bot/internal/models"

	"go.uber.org/zap"
)

// Outcome is how the dispatcher disposed of a message.
type Outcome int

const (
	// OutcomePassThrough leaves the message alone.
	OutcomePassThrough Outcome = iota
	// OutcomeEmptyEcho deleted a message that was only a prefix.
	OutcomeEmptyEcho
	// OutcomeBlocked dropped a relay in a channel that is not whitelisted.
	OutcomeBlocked
	// OutcomeCooldown deleted the message because the character is cooling down.
	OutcomeCooldown
	// OutcomeRelayed replaced the message with an impersonated post.
	OutcomeRelayed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmptyEcho:
		return "empty-echo"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeCooldown:
		return "cooldown-rejected"
	case OutcomeRelayed:
		return "relayed"
	}
	return "pass-through"
}

// Message is an inbound chat message as the dispatcher sees it.
type Message struct {
	ID       string
	GuildID  string
	AuthorID string
	// AuthorIsBot is set for bot accounts and webhooks, including our own relays.
	AuthorIsBot bool
	Content     string
	Location    Location
	// ReplyURL links to the message this one replies to, if any.
	ReplyURL string
}

// DispatcherConfig carries the settings the dispatcher needs.
type DispatcherConfig struct {
	BotID         string
	CommandPrefix string
	// AvatarURL maps a character id to the avatar shown on its relays.
	AvatarURL func(id uint) string
}

// Dispatcher turns prefixed or bound messages into impersonated relays.
type Dispatcher struct {
	store     Store
	platform  Platform
	bindings  *BindingRegistry
	prefixes  *PrefixResolver
	policy    *PolicyGate
	cooldowns *CooldownTracker
	cfg       DispatcherConfig
	logger    *zap.Logger

	locks keyedMutex
}

func NewDispatcher(store Store, platform Platform, cooldowns *CooldownTracker, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		platform:  platform,
		bindings:  NewBindingRegistry(store),
		prefixes:  NewPrefixResolver(store),
		policy:    NewPolicyGate(store),
		cooldowns: cooldowns,
		cfg:       cfg,
		logger:    logger.Named("relay"),
	}
}

// Bindings exposes the registry so commands can bind and unbind.
func (d *Dispatcher) Bindings() *BindingRegistry { return d.bindings }

// Prefixes exposes the resolver so commands can look characters up by prefix.
func (d *Dispatcher) Prefixes() *PrefixResolver { return d.prefixes }

// Handle runs one inbound message through the relay pipeline.
func (d *Dispatcher) Handle(ctx context.Context, m Message) (Outcome, error) {
	if d.ignored(m) {
		return OutcomePassThrough, nil
	}

	char, content, err := d.resolve(ctx, m)
	if err != nil {
		return OutcomePassThrough, err
	}
	if char == nil {
		return OutcomePassThrough, nil
	}

	channelID := m.Location.TrueChannel()
	seconds, allowed, err := d.policy.Cooldown(ctx, m.Location)
	if err != nil {
		return OutcomePassThrough, err
	}
	if !allowed {
		d.logger.Debug("channel not whitelisted",
			zap.String("channel", channelID),
			zap.Uint("character", char.ID))
		return OutcomeBlocked, nil
	}

	// Blacklisted channels are left untouched, even for prefix-only messages.
	if content == "" {
		if err := d.platform.DeleteMessage(ctx, m.Location.PostChannel(), m.ID); err != nil {
			return OutcomeEmptyEcho, fmt.Errorf("delete empty message %s: %w", m.ID, err)
		}
		return OutcomeEmptyEcho, nil
	}

	unlock := d.locks.lock(cooldownKey{char.ID, channelID})
	defer unlock()

	// Read before IsActive, which may drop an expired entry.
	remaining := d.cooldowns.Remaining(char.ID, channelID)
	if d.cooldowns.IsActive(char.ID, channelID) {
		return OutcomeCooldown, d.rejectCooldown(ctx, m, remaining)
	}

	if err := d.relay(ctx, m, char, content); err != nil {
		return OutcomePassThrough, err
	}
	d.cooldowns.Arm(char.ID, channelID, seconds)

	d.logger.Info("relayed message",
		zap.Uint("character", char.ID),
		zap.String("channel", channelID),
		zap.String("thread", m.Location.ThreadID),
		zap.Int("cooldown", seconds))
	return OutcomeRelayed, nil
}

func (d *Dispatcher) ignored(m Message) bool {
	return m.AuthorIsBot ||
		m.AuthorID == d.cfg.BotID ||
		m.GuildID == "" ||
		m.Content == "" ||
		strings.HasPrefix(m.Content, "[") ||
		(d.cfg.CommandPrefix != "" && strings.HasPrefix(m.Content, d.cfg.CommandPrefix))
}

// resolve finds the speaking character: a binding first, then a prefix.
func (d *Dispatcher) resolve(ctx context.Context, m Message) (*models.Character, string, error) {
	char, err := d.bindings.Resolve(ctx, m.AuthorID, m.Location)
	if err != nil {
		return nil, "", err
	}
	if char != nil {
		return char, strings.TrimSpace(m.Content), nil
	}

	char, prefix, err := d.prefixes.Resolve(ctx, m.Content, m.AuthorID)
	if err != nil || char == nil {
		return nil, "", err
	}
	return char, strings.TrimSpace(m.Content[len(prefix):]), nil
}

func (d *Dispatcher) rejectCooldown(ctx context.Context, m Message, remaining int) error {
	if err := d.platform.DeleteMessage(ctx, m.Location.PostChannel(), m.ID); err != nil {
		return fmt.Errorf("delete message on cooldown %s: %w", m.ID, err)
	}
	notice := fmt.Sprintf("This character is on cooldown! Please wait %d seconds.", remaining)
	if _, err := d.platform.Send(ctx, m.Location.PostChannel(), notice); err != nil {
		return fmt.Errorf("send cooldown notice: %w", err)
	}
	return nil
}

func (d *Dispatcher) relay(ctx context.Context, m Message, char *models.Character, content string) error {
	identity, err := d.platform.Impersonation(ctx, m.Location.TrueChannel())
	if err != nil {
		return fmt.Errorf("impersonation for %s: %w", m.Location.TrueChannel(), err)
	}

	if m.ReplyURL != "" {
		content += fmt.Sprintf("\n\n[Replied message](%s)", m.ReplyURL)
	}

	if err := d.platform.DeleteMessage(ctx, m.Location.PostChannel(), m.ID); err != nil {
		return fmt.Errorf("delete original %s: %w", m.ID, err)
	}

	posted, err := identity.Post(ctx, Post{
		Username:  char.Name,
		AvatarURL: d.avatarURL(char.ID),
		Content:   content,
		ThreadID:  m.Location.ThreadID,
	})
	if err != nil {
		return fmt.Errorf("post as %d: %w", char.ID, err)
	}

	err = d.store.RecordRelay(ctx, &models.Relay{
		MessageID:   posted.ID(),
		CharacterID: char.ID,
		ChannelID:   m.Location.TrueChannel(),
		ThreadID:    m.Location.ThreadID,
		AuthorID:    m.AuthorID,
	})
	if err != nil {
		d.logger.Warn("record relay", zap.String("message", posted.ID()), zap.Error(err))
	}

	for _, c := range relayControls {
		if err := posted.AddReaction(ctx, c.Symbol()); err != nil {
			d.logger.Warn("add control reaction",
				zap.String("message", posted.ID()),
				zap.Stringer("control", c),
				zap.Error(err))
		}
	}
	return nil
}

func (d *Dispatcher) avatarURL(id uint) string {
	if d.cfg.AvatarURL == nil {
		return ""
	}
	return d.cfg.AvatarURL(id)
}

// keyedMutex serialises relays of one character in one channel, so the
// cooldown check and the arm that follows it cannot interleave with another
// message for the same pair.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[cooldownKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key cooldownKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[cooldownKey]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
