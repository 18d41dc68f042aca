package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/proxy"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newTestPlatform points discordgo's REST endpoints at handler.
func newTestPlatform(t *testing.T, handler http.Handler, logger *zap.Logger) *Platform {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	channels, webhooks := discordgo.EndpointChannels, discordgo.EndpointWebhooks
	discordgo.EndpointChannels = srv.URL + "/channels/"
	discordgo.EndpointWebhooks = srv.URL + "/webhooks/"
	t.Cleanup(func() {
		discordgo.EndpointChannels, discordgo.EndpointWebhooks = channels, webhooks
	})

	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	return NewPlatform(s, "bot", logger)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func webhookJSON(id, channelID, ownerID string) string {
	return fmt.Sprintf(`{"id":%q,"token":"tok-%s","channel_id":%q,"user":{"id":%q}}`, id, id, channelID, ownerID)
}

func TestImpersonationCreatesOneWebhookPerChannel(t *testing.T) {
	var created atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /channels/c1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		writeJSON(w, http.StatusOK, `[]`)
	})
	mux.HandleFunc("POST /channels/c1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		n := created.Add(1)
		writeJSON(w, http.StatusOK, webhookJSON(fmt.Sprintf("w%d", n), "c1", "bot"))
	})
	p := newTestPlatform(t, mux, zap.NewNop())

	const callers = 5
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ids   = make(chan string, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			identity, err := p.Impersonation(context.Background(), "c1")
			if !assert.NoError(t, err) {
				return
			}
			ids <- identity.(*webhookIdentity).hook.ID
		}()
	}
	close(start)
	wg.Wait()
	close(ids)

	assert.Equal(t, int32(1), created.Load())
	for id := range ids {
		assert.Equal(t, "w1", id)
	}

	_, err := p.Impersonation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), created.Load(), "cached after the first lookup")
}

func TestImpersonationReusesExistingWebhook(t *testing.T) {
	var created atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /channels/c1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "["+webhookJSON("foreign", "c1", "someone")+","+webhookJSON("ours", "c1", "bot")+"]")
	})
	mux.HandleFunc("POST /channels/c1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		created.Add(1)
		writeJSON(w, http.StatusOK, webhookJSON("new", "c1", "bot"))
	})
	p := newTestPlatform(t, mux, zap.NewNop())

	identity, err := p.Impersonation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "ours", identity.(*webhookIdentity).hook.ID)
	assert.Zero(t, created.Load())
}

func TestRelayedAcceptsAnyOwnWebhook(t *testing.T) {
	messages := map[string]string{
		"m-new":     `{"id":"m-new","channel_id":"c1","webhook_id":"current","author":{"id":"current","username":"Aria"}}`,
		"m-old":     `{"id":"m-old","channel_id":"c1","webhook_id":"stale","author":{"id":"stale","username":"Bram"}}`,
		"m-foreign": `{"id":"m-foreign","channel_id":"c1","webhook_id":"foreign","author":{"id":"foreign","username":"Mallory"}}`,
		"m-plain":   `{"id":"m-plain","channel_id":"c1","author":{"id":"u1","username":"member"}}`,
		"m-hidden":  `{"id":"m-hidden","channel_id":"c1","webhook_id":"hidden","author":{"id":"hidden","username":"Eve"}}`,
	}
	hooks := map[string]string{
		"stale":   webhookJSON("stale", "c1", "bot"),
		"foreign": webhookJSON("foreign", "c1", "someone"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /channels/c1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "["+webhookJSON("current", "c1", "bot")+"]")
	})
	mux.HandleFunc("GET /channels/c1/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := messages[r.PathValue("id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, `{"message":"Unknown Message","code":10008}`)
			return
		}
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("GET /webhooks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "hidden" {
			writeJSON(w, http.StatusForbidden, `{"message":"Missing Permissions","code":50013}`)
			return
		}
		body, ok := hooks[r.PathValue("id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, `{"message":"Unknown Webhook","code":10015}`)
			return
		}
		writeJSON(w, http.StatusOK, body)
	})
	p := newTestPlatform(t, mux, zap.NewNop())

	ctx := context.Background()
	loc := proxy.InChannel("c1", "")
	_, err := p.Impersonation(ctx, "c1")
	require.NoError(t, err)

	msg, err := p.Relayed(ctx, loc, "m-new")
	require.NoError(t, err)
	assert.Equal(t, "Aria", msg.AuthorName())

	msg, err = p.Relayed(ctx, loc, "m-old")
	require.NoError(t, err)
	assert.Equal(t, "Bram", msg.AuthorName())

	for _, id := range []string{"m-foreign", "m-plain", "m-hidden", "m-missing"} {
		_, err := p.Relayed(ctx, loc, id)
		assert.ErrorIs(t, err, apperr.ErrNotFound, id)
	}
}

func TestNoticeLogsFailedAutoDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /channels/c1/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"n1","channel_id":"c1"}`)
	})
	mux.HandleFunc("DELETE /channels/c1/messages/n1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"message":"Missing Permissions","code":50013}`)
	})
	core, logs := observer.New(zap.WarnLevel)
	p := newTestPlatform(t, mux, zap.New(core))

	require.NoError(t, p.Notice(context.Background(), "c1", "Character proxied!", 10*time.Millisecond))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("auto-delete notice failed").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	entry := logs.FilterMessage("auto-delete notice failed").All()[0]
	assert.Equal(t, "n1", entry.ContextMap()["message"])
}
