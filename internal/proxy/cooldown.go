package proxy

import (
	"sync"
	"time"
)

type cooldownKey struct {
	characterID uint
	channelID   string
}

type countdown struct {
	remaining int
	cancel    chan struct{}
}

// CooldownTracker holds the in-memory (character, channel) lockouts. Each
// armed cooldown is counted down by its own goroutine, one step per tick,
// and removes itself when it reaches zero. Nothing survives a restart.
type CooldownTracker struct {
	tick time.Duration

	mu      sync.Mutex
	entries map[cooldownKey]*countdown
	stopped bool

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewCooldownTracker returns a tracker that counts down once per tick.
// A non-positive tick means one second.
func NewCooldownTracker(tick time.Duration) *CooldownTracker {
	if tick <= 0 {
		tick = time.Second
	}
	return &CooldownTracker{
		tick:    tick,
		entries: make(map[cooldownKey]*countdown),
		stop:    make(chan struct{}),
	}
}

// Remaining reports the steps left for the pair without changing anything.
func (t *CooldownTracker) Remaining(characterID uint, channelID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.entries[cooldownKey{characterID, channelID}]; ok && c.remaining > 0 {
		return c.remaining
	}
	return 0
}

// IsActive reports whether the pair is cooling down. An expired entry that
// is still present is dropped and reported inactive.
func (t *CooldownTracker) IsActive(characterID uint, channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := cooldownKey{characterID, channelID}
	c, ok := t.entries[key]
	if !ok {
		return false
	}
	if c.remaining <= 0 {
		delete(t.entries, key)
		return false
	}
	return true
}

// Arm starts a countdown of seconds ticks for the pair, replacing any
// countdown already running for it. Non-positive values are ignored.
func (t *CooldownTracker) Arm(characterID uint, channelID string, seconds int) {
	if seconds <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	key := cooldownKey{characterID, channelID}
	if old, ok := t.entries[key]; ok {
		close(old.cancel)
	}
	c := &countdown{remaining: seconds, cancel: make(chan struct{})}
	t.entries[key] = c

	t.wg.Add(1)
	go t.run(key, c)
}

func (t *CooldownTracker) run(key cooldownKey, c *countdown) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-c.cancel:
			return
		case <-ticker.C:
			if t.step(key, c) {
				return
			}
		}
	}
}

// step decrements c and reports whether it has expired.
func (t *CooldownTracker) step(key cooldownKey, c *countdown) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c.remaining--
	if c.remaining > 0 {
		return false
	}
	if t.entries[key] == c {
		delete(t.entries, key)
	}
	return true
}

// Len returns the number of tracked cooldowns.
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stop ends every countdown and waits for their goroutines. Later calls to
// Arm are ignored.
func (t *CooldownTracker) Stop() {
	t.once.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		close(t.stop)
	})
	t.wg.Wait()
}
