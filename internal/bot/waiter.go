package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discord-proxy-bot/internal/apperr"

	"github.com/bwmarrin/discordgo"
)

type waitKey struct {
	userID    string
	channelID string
}

// waiter hands the next message of a user in a channel to whoever is
// waiting for it. Waiters on the same key are served in order.
type waiter struct {
	mu      sync.Mutex
	pending map[waitKey][]chan *discordgo.Message
}

func newWaiter() *waiter {
	return &waiter{pending: make(map[waitKey][]chan *discordgo.Message)}
}

func (w *waiter) wait(ctx context.Context, userID, channelID string, timeout time.Duration) (*discordgo.Message, error) {
	key := waitKey{userID: userID, channelID: channelID}
	ch := make(chan *discordgo.Message, 1)

	w.mu.Lock()
	w.pending[key] = append(w.pending[key], ch)
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case msg := <-ch:
		return msg, nil
	case <-timer.C:
		err = fmt.Errorf("waiting for %s in %s: %w", userID, channelID, apperr.ErrTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	w.mu.Lock()
	w.remove(key, ch)
	w.mu.Unlock()

	// deliver may have won the race before the removal.
	select {
	case msg := <-ch:
		return msg, nil
	default:
		return nil, err
	}
}

func (w *waiter) remove(key waitKey, ch chan *discordgo.Message) {
	queue := w.pending[key]
	for i, c := range queue {
		if c == ch {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(w.pending, key)
		return
	}
	w.pending[key] = queue
}

// deliver passes m to the oldest waiter for its author and channel and
// reports whether anyone consumed it.
func (w *waiter) deliver(m *discordgo.Message) bool {
	if m.Author == nil {
		return false
	}
	key := waitKey{userID: m.Author.ID, channelID: m.ChannelID}

	w.mu.Lock()
	defer w.mu.Unlock()
	queue := w.pending[key]
	if len(queue) == 0 {
		return false
	}
	ch := queue[0]
	w.remove(key, ch)
	ch <- m
	return true
}
