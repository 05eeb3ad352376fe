package telegram

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/postbot/core/config"
	"github.com/m3rciful/postbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "menu"}))
	require.NoError(t, reg.RegisterCommand("/history", commands.Command{Handler: noop, Description: "log", AdminOnly: true}))

	assert.ErrorIs(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}), commands.ErrInvalid)
	assert.ErrorIs(t, reg.RegisterCommand("/empty", commands.Command{Handler: noop}), commands.ErrInvalid)
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "again"}))

	key, cmd, ok := reg.LookupCommand("start")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	assert.Equal(t, "menu", cmd.Description)

	assert.Equal(t, []tele.Command{{Text: "start", Description: "menu"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 2)

	cmds := reg.Commands()
	delete(cmds, "/start")
	_, _, ok = reg.LookupCommand("/start")
	assert.True(t, ok, "Commands must return a copy")
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("group", noop))
	assert.Error(t, reg.RegisterCallback("group", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Error(t, reg.RegisterCallback("topic", nil))

	_, ok := reg.GetCallback("group")
	assert.True(t, ok)
	assert.Equal(t, []string{"group"}, reg.ListCallbacks())

	assert.NotNil(t, reg.CallbackNotFound())
	reg.SetCallbackNotFound(nil)
	assert.NotNil(t, reg.CallbackNotFound(), "nil must not clear the fallback")
}

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	lp, ok := NewPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)

	cfg.Telegram.LongPollTimeoutSeconds = 30
	assert.Equal(t, 30*time.Second, NewPoller(cfg).(*tele.LongPoller).Timeout)

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.org/hook"}
	wh, ok := NewPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.org/hook", wh.Endpoint.PublicURL)
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, 0, len(mws))
		for _, m := range mws {
			out = append(out, m.Name)
		}
		return out
	}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 500
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names(DefaultMiddlewares(cfg, nil)))
}

type stubTrip struct {
	calls  atomic.Int32
	fail   int32
	err    error
	bodies []string
}

func (s *stubTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	n := s.calls.Add(1)
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	if n <= s.fail {
		return nil, s.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestRetryTransport(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}

	t.Run("retries transient errors with a fresh body", func(t *testing.T) {
		stub := &stubTrip{fail: 2, err: dial}
		rt := &retryTransport{next: stub, retries: 3, backoff: time.Millisecond}
		req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/bot1:x/sendMessage", strings.NewReader("chat_id=1"))
		require.NoError(t, err)

		resp, err := rt.RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), stub.calls.Load())
		assert.Equal(t, []string{"chat_id=1", "chat_id=1", "chat_id=1"}, stub.bodies)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		stub := &stubTrip{fail: 10, err: dial}
		rt := &retryTransport{next: stub, retries: 1, backoff: time.Millisecond}
		req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/bot1:x/getMe", nil)
		_, err := rt.RoundTrip(req)
		assert.ErrorIs(t, err, dial)
		assert.Equal(t, int32(2), stub.calls.Load())
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		stub := &stubTrip{fail: 10, err: errors.New("tls: bad certificate")}
		rt := &retryTransport{next: stub, retries: 3, backoff: time.Millisecond}
		req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/bot1:x/getMe", nil)
		_, err := rt.RoundTrip(req)
		assert.Error(t, err)
		assert.Equal(t, int32(1), stub.calls.Load())
	})

	t.Run("context cancels the backoff", func(t *testing.T) {
		stub := &stubTrip{fail: 10, err: dial}
		rt := &retryTransport{next: stub, retries: 3, backoff: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.telegram.org/bot1:x/getMe", nil)
		_, err := rt.RoundTrip(req)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuildHTTPClientSkipsRetryWrapper(t *testing.T) {
	_, wrapped := BuildHTTPClient(0).Transport.(*retryTransport)
	assert.False(t, wrapped)
	_, wrapped = BuildHTTPClient(2).Transport.(*retryTransport)
	assert.True(t, wrapped)
}

func TestNewClientRejectsEmptyToken(t *testing.T) {
	_, err := NewClient("  ", 0)
	assert.Error(t, err)

	bot, err := NewClient("1:test", 0)
	require.NoError(t, err)
	assert.Equal(t, "1:test", bot.Token)
}
