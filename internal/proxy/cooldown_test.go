package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTick = 10 * time.Millisecond

func newTestTracker(t *testing.T) *CooldownTracker {
	t.Helper()
	tr := NewCooldownTracker(testTick)
	t.Cleanup(tr.Stop)
	return tr
}

func TestCooldownArmIgnoresNonPositive(t *testing.T) {
	tr := newTestTracker(t)
	tr.Arm(1, "c1", 0)
	tr.Arm(1, "c1", -3)
	assert.False(t, tr.IsActive(1, "c1"))
	assert.Equal(t, 0, tr.Len())
}

func TestCooldownExpires(t *testing.T) {
	tr := newTestTracker(t)
	tr.Arm(1, "c1", 3)

	assert.True(t, tr.IsActive(1, "c1"))
	assert.Positive(t, tr.Remaining(1, "c1"))

	require.Eventually(t, func() bool { return !tr.IsActive(1, "c1") }, time.Second, testTick)
	assert.False(t, tr.IsActive(1, "c1"), "re-check stays inactive")
	assert.Equal(t, 0, tr.Remaining(1, "c1"))
	assert.Equal(t, 0, tr.Len())
}

func TestCooldownKeyIsCharacterAndChannel(t *testing.T) {
	tr := newTestTracker(t)
	tr.Arm(1, "c1", 100)

	assert.True(t, tr.IsActive(1, "c1"))
	assert.False(t, tr.IsActive(1, "c2"))
	assert.False(t, tr.IsActive(2, "c1"))

	tr.Arm(2, "c1", 100)
	assert.True(t, tr.IsActive(2, "c1"))
	assert.Equal(t, 2, tr.Len())
}

func TestCooldownIsActiveDropsExpiredEntry(t *testing.T) {
	tr := newTestTracker(t)
	tr.mu.Lock()
	tr.entries[cooldownKey{1, "c1"}] = &countdown{remaining: 0, cancel: make(chan struct{})}
	tr.mu.Unlock()

	assert.False(t, tr.IsActive(1, "c1"))
	assert.Equal(t, 0, tr.Len())
	assert.False(t, tr.IsActive(1, "c1"))
}

func TestCooldownRearmReplaces(t *testing.T) {
	tr := newTestTracker(t)
	tr.Arm(1, "c1", 2)
	tr.Arm(1, "c1", 100)

	assert.Equal(t, 1, tr.Len())
	time.Sleep(5 * testTick)
	assert.True(t, tr.IsActive(1, "c1"), "the longer countdown replaced the short one")
}

func TestCooldownStopEndsCountdowns(t *testing.T) {
	tr := NewCooldownTracker(testTick)
	tr.Arm(1, "c1", 1000)
	tr.Arm(2, "c1", 1000)
	tr.Stop()
	tr.Stop()

	tr.Arm(3, "c1", 10)
	assert.False(t, tr.IsActive(3, "c1"))
}
