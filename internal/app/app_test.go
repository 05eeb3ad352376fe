package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/postbot/core/config"
	coretelegram "github.com/m3rciful/postbot/core/telegram"
	"github.com/m3rciful/postbot/internal/catalog"
	"github.com/m3rciful/postbot/internal/journal"

	tele "gopkg.in/telebot.v4"
)

func testConfig() *Config {
	return &Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "1:test", RunMode: coreconfig.RunModeLongpoll},
			HTTP:     coreconfig.HTTPConfig{Listen: "127.0.0.1:0", ShutdownSeconds: 1},
		},
		Dialogue: DialogueConfig{SenderWorkers: 1},
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Group{{ID: 1, Name: "News", Topics: []catalog.Topic{{ThreadID: 10, Name: "General"}}}})
	require.NoError(t, err)
	return cat
}

func endpoints(routes []coretelegram.Route) map[any]bool {
	out := make(map[any]bool, len(routes))
	for _, r := range routes {
		out[r.Endpoint] = true
	}
	return out
}

func TestTelegramRunOptions(t *testing.T) {
	a := build(testConfig(), nil, testCatalog(t))
	_, isNoop := a.journal.(journal.Noop)
	assert.True(t, isNoop)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	eps := endpoints(opts.Routes)
	for _, ep := range []any{"/start", "/cancel", "/history", tele.OnCallback, tele.OnText, tele.OnPhoto, tele.OnVideo, tele.OnMedia, tele.OnLocation, tele.OnContact, tele.OnDice} {
		assert.True(t, eps[ep], "missing route %v", ep)
	}
	assert.Equal(t, 1, opts.DispatcherOptions.Workers)
	assert.NotNil(t, opts.OnStart)
	assert.NotNil(t, opts.OnStop)

	for _, key := range []string{"new_post", "group", "topic"} {
		_, ok := opts.Registry.GetCallback(key)
		assert.True(t, ok, key)
	}
}

func TestOperatorAllowList(t *testing.T) {
	cfg := testConfig()
	base := len(build(cfg, nil, testCatalog(t)).middlewares())

	cfg.Dialogue.OperatorIDs = []int64{5}
	mws := build(cfg, nil, testCatalog(t)).middlewares()
	require.Len(t, mws, base+1)
	assert.Equal(t, "operators", mws[len(mws)-1].Name)
}

func TestLifecycleStartsAndStopsHTTP(t *testing.T) {
	a := build(testConfig(), nil, testCatalog(t))
	require.NoError(t, a.start(context.Background(), coretelegram.Runtime{}))
	assert.NotEmpty(t, a.http.Addr())
	require.NoError(t, a.stop(context.Background(), coretelegram.Runtime{}))
}
