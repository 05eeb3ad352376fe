package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type fakeSender struct {
	to   tele.Recipient
	what interface{}
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.to, f.what = to, what
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{ID: 1}, nil
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestRoot(t *testing.T) {
	code, body := get(t, NewRouter(Options{}), "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"message": "Bot is running"}, body)
}

func TestStartBotSendsGreeting(t *testing.T) {
	sender := &fakeSender{}
	built := 0
	h := NewRouter(Options{
		TriggerChatID: -100123,
		NewClient: func() (Sender, error) {
			built++
			return sender, nil
		},
	})

	for i := 1; i <= 2; i++ {
		code, body := get(t, h, "/start-bot")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]string{"message": "Bot started successfully!"}, body)
		assert.Equal(t, i, built, "a fresh client per call")
	}
	assert.Equal(t, tele.ChatID(-100123), sender.to)
	assert.Equal(t, "Bot started!", sender.what)
}

func TestStartBotFailures(t *testing.T) {
	cases := map[string]Options{
		"send error": {
			TriggerChatID: 1,
			NewClient:     func() (Sender, error) { return &fakeSender{err: errors.New("forbidden")}, nil },
		},
		"factory error": {
			TriggerChatID: 1,
			NewClient:     func() (Sender, error) { return nil, errors.New("empty token") },
		},
		"no chat": {
			NewClient: func() (Sender, error) { return &fakeSender{}, nil },
		},
		"no factory": {TriggerChatID: 1},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			code, body := get(t, NewRouter(opts), "/start-bot")
			assert.Equal(t, http.StatusBadGateway, code)
			assert.Equal(t, map[string]string{"message": "Failed to start bot"}, body)
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	srv := New(Options{Listen: "127.0.0.1:0"})
	require.NoError(t, srv.Start(context.Background()))
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Bot is running"}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))
}
