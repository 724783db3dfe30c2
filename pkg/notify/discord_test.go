package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type webhook struct {
	srv    *httptest.Server
	calls  atomic.Int32
	last   atomic.Value
	status int
}

func newWebhook(t *testing.T, status int) *webhook {
	t.Helper()
	w := &webhook{status: status}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.calls.Add(1)
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			w.last.Store(payload["content"])
		}
		rw.WriteHeader(w.status)
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestNotifyPostsContent(t *testing.T) {
	hook := newWebhook(t, http.StatusNoContent)
	_, rdb := newRedis(t)
	n := NewDiscordNotifier(hook.srv.URL, rdb, zaptest.NewLogger(t))

	require.NoError(t, n.Notify(context.Background(), "", "zampto renovado"))
	assert.EqualValues(t, 1, hook.calls.Load())
	assert.Equal(t, "zampto renovado", hook.last.Load())
}

func TestNotifyDeduplicatesByKey(t *testing.T) {
	hook := newWebhook(t, http.StatusNoContent)
	mr, rdb := newRedis(t)
	n := NewDiscordNotifier(hook.srv.URL, rdb, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "hidencloud:fail", "falhou"))
	require.NoError(t, n.Notify(ctx, "hidencloud:fail", "falhou de novo"))
	assert.EqualValues(t, 1, hook.calls.Load())
	assert.True(t, mr.Exists("renewal:notify:hidencloud:fail"))
	assert.Equal(t, dedupTTL, mr.TTL("renewal:notify:hidencloud:fail"))

	mr.FastForward(dedupTTL)
	require.NoError(t, n.Notify(ctx, "hidencloud:fail", "falhou amanhã"))
	assert.EqualValues(t, 2, hook.calls.Load())
}

func TestNotifyReleasesKeyOnFailure(t *testing.T) {
	hook := newWebhook(t, http.StatusInternalServerError)
	mr, rdb := newRedis(t)
	n := NewDiscordNotifier(hook.srv.URL, rdb, zaptest.NewLogger(t))

	err := n.Notify(context.Background(), "x", "msg")
	assert.Error(t, err)
	assert.False(t, mr.Exists("renewal:notify:x"))
}

func TestNotifyWithoutWebhookIsNoop(t *testing.T) {
	n := NewDiscordNotifier("", nil, nil)
	assert.NoError(t, n.Notify(context.Background(), "k", "msg"))
}
