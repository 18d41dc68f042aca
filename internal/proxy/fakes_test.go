package proxy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu       sync.Mutex
	nextID   uint
	chars    map[uint]*models.Character
	prefixes []models.Prefix
	bindings map[[3]string]models.Proxy
	policies map[string]models.ChannelPolicy
	relays   map[string]models.Relay
	relayErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chars:    map[uint]*models.Character{},
		bindings: map[[3]string]models.Proxy{},
		policies: map[string]models.ChannelPolicy{},
		relays:   map[string]models.Relay{},
	}
}

func (s *fakeStore) addCharacter(name, owner string) *models.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := &models.Character{ID: s.nextID, Name: name, Owner: owner}
	s.chars[c.ID] = c
	return c
}

func (s *fakeStore) addPrefix(c *models.Character, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.prefixes = append(s.prefixes, models.Prefix{ID: s.nextID, CharacterID: c.ID, Prefix: prefix})
}

func (s *fakeStore) setPolicy(id string, whitelisted bool, cooldown int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[id] = models.ChannelPolicy{ID: id, Whitelisted: whitelisted, Cooldown: cooldown}
}

func (s *fakeStore) Character(_ context.Context, id uint) (*models.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chars[id]
	if !ok {
		return nil, fmt.Errorf("character %d: %w", id, apperr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) CharactersByName(_ context.Context, name string) ([]models.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Character
	for _, c := range s.chars {
		if c.Name == name {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) OwnedPrefixes(_ context.Context, owner string) ([]models.Prefix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Prefix
	for _, p := range s.prefixes {
		c := s.chars[p.CharacterID]
		if c == nil || c.Owner != owner {
			continue
		}
		p.Character = *c
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) Binding(_ context.Context, userID, channelID, threadID string) (*models.Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[[3]string{userID, channelID, threadID}]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &b, nil
}

func (s *fakeStore) UpsertBinding(_ context.Context, p *models.Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[[3]string{p.UserID, p.ChannelID, p.ThreadID}] = *p
	return nil
}

func (s *fakeStore) DeleteBinding(_ context.Context, userID string, characterID uint, channelID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [3]string{userID, channelID, threadID}
	b, ok := s.bindings[key]
	if !ok || b.CharacterID != characterID {
		return apperr.ErrNotFound
	}
	delete(s.bindings, key)
	return nil
}

func (s *fakeStore) ChannelPolicy(_ context.Context, id string) (*models.ChannelPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (s *fakeStore) RecordRelay(_ context.Context, r *models.Relay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.relayErr != nil {
		return s.relayErr
	}
	s.relays[r.MessageID] = *r
	return nil
}

func (s *fakeStore) Relay(_ context.Context, messageID string) (*models.Relay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relays[messageID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &r, nil
}

type sentMessage struct {
	ChannelID string
	Content   string
}

type fakeMessage struct {
	id     string
	author string
	post   Post

	mu        sync.Mutex
	content   string
	reactions []string
	removed   []string
	deleted   bool
}

func (m *fakeMessage) ID() string         { return m.id }
func (m *fakeMessage) AuthorName() string { return m.author }

func (m *fakeMessage) AddReaction(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, symbol)
	return nil
}

func (m *fakeMessage) RemoveReaction(_ context.Context, symbol, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, symbol+"/"+userID)
	return nil
}

func (m *fakeMessage) Edit(_ context.Context, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
	return nil
}

func (m *fakeMessage) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = true
	return nil
}

type fakeIdentity struct {
	platform  *fakePlatform
	channelID string
}

func (i *fakeIdentity) Post(_ context.Context, p Post) (Relayed, error) {
	i.platform.mu.Lock()
	delay := i.platform.postDelay
	i.platform.mu.Unlock()
	time.Sleep(delay)
	return i.platform.post(p), nil
}

type fakePlatform struct {
	mu         sync.Mutex
	seq        int
	identities map[string]int
	posted     []*fakeMessage
	byID       map[string]*fakeMessage
	deleted    []string
	sent       []sentMessage
	directs    map[string][]Direct
	directErr  error
	replies    chan *Reply
	// postDelay holds every webhook post open for a while.
	postDelay time.Duration
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		identities: map[string]int{},
		byID:       map[string]*fakeMessage{},
		directs:    map[string][]Direct{},
		replies:    make(chan *Reply, 1),
	}
}

func (p *fakePlatform) nextID(kind string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", kind, p.seq)
}

func (p *fakePlatform) post(post Post) *fakeMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := &fakeMessage{id: p.nextID("relay"), author: post.Username, post: post, content: post.Content}
	p.posted = append(p.posted, m)
	p.byID[m.id] = m
	return m
}

// relayedByName registers a message the relay log knows nothing about.
func (p *fakePlatform) relayedByName(name string) *fakeMessage {
	return p.post(Post{Username: name, Content: "legacy"})
}

func (p *fakePlatform) Impersonation(_ context.Context, channelID string) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identities[channelID]++
	return &fakeIdentity{platform: p, channelID: channelID}, nil
}

func (p *fakePlatform) Relayed(_ context.Context, _ Location, messageID string) (Relayed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.byID[messageID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return m, nil
}

func (p *fakePlatform) Send(_ context.Context, channelID, content string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{ChannelID: channelID, Content: content})
	return p.nextID("sent"), nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, channelID+"/"+messageID)
	return nil
}

func (p *fakePlatform) SendDirect(_ context.Context, userID string, dm Direct) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.directErr != nil {
		return p.directErr
	}
	p.directs[userID] = append(p.directs[userID], dm)
	return nil
}

func (p *fakePlatform) AwaitReply(ctx context.Context, _, _ string, timeout time.Duration) (*Reply, error) {
	select {
	case r := <-p.replies:
		return r, nil
	case <-time.After(timeout):
		return nil, apperr.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *fakePlatform) sentContents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sent))
	for _, s := range p.sent {
		out = append(out, s.Content)
	}
	return out
}

func (p *fakePlatform) postCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.posted)
}

func (p *fakePlatform) deletedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deleted)
}

func hasSent(p *fakePlatform, substr string) bool {
	for _, c := range p.sentContents() {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
