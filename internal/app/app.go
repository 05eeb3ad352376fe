// Package app wires the posting bot: catalog, dialogue, publisher, journal,
// Telegram routes and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/postbot/core/bootstrap"
	"github.com/m3rciful/postbot/core/httpapi"
	"github.com/m3rciful/postbot/core/logger"
	coretelegram "github.com/m3rciful/postbot/core/telegram"
	"github.com/m3rciful/postbot/core/telegram/middleware"
	"github.com/m3rciful/postbot/core/telegram/router"
	"github.com/m3rciful/postbot/core/telegram/sender"
	"github.com/m3rciful/postbot/core/telegram/state"
	"github.com/m3rciful/postbot/internal/catalog"
	"github.com/m3rciful/postbot/internal/journal"
	"github.com/m3rciful/postbot/internal/posting"
)

// App holds the wired components for one bot process.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	catalog   *catalog.Catalog
	sessions  *state.Store[posting.Draft]
	journal   journal.Recorder
	publisher *posting.BotPublisher
	handlers  *posting.Handlers
	http      *httpapi.Server

	stopJanitor context.CancelFunc
}

// Bootstrap initializes logging and the optional database, loads the
// catalog and builds the dialogue.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Dialogue.GroupsFile)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	logger.LogEvent(ctx, logger.Posting, slog.LevelInfo, "catalog.loaded",
		slog.String("status", "ok"),
		slog.String("path", cfg.Dialogue.GroupsFile),
		slog.Int("count", len(cat.Groups())),
	)

	return build(cfg, infra, cat), nil
}

func build(cfg *Config, infra *bootstrap.Result, cat *catalog.Catalog) *App {
	var rec journal.Recorder = journal.Noop{}
	if infra != nil && infra.DB != nil {
		rec = journal.NewStore(infra.DB)
	}
	sessions := state.NewMemoryStore[posting.Draft]()
	publisher := posting.NewPublisher(rec)
	dialogue := posting.NewDialogue(cat, sessions, publisher)

	a := &App{
		cfg:       cfg,
		infra:     infra,
		catalog:   cat,
		sessions:  sessions,
		journal:   rec,
		publisher: publisher,
		handlers:  posting.NewHandlers(dialogue, rec),
	}
	a.http = httpapi.New(httpapi.Options{
		Listen:        cfg.HTTP.Listen,
		TriggerChatID: cfg.HTTP.TriggerChatID,
		NewClient:     a.triggerClient,
	})
	return a
}

func (a *App) triggerClient() (httpapi.Sender, error) {
	return coretelegram.NewClient(a.cfg.Telegram.Token, a.cfg.Telegram.HTTPRetries)
}

// TelegramRunOptions registers handlers and returns the runtime options.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg, a.sessions); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	textOpts, callbackOpts := router.FallbackOptions(a.handlers)
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, callbackOpts))
	routes = append(routes, router.TextRoutes(a.sessions, reg, textOpts)...)

	return coretelegram.RunOptions{
		Config:            &a.cfg.Config,
		Registry:          reg,
		DispatcherOptions: sender.Options{Workers: a.cfg.Dialogue.SenderWorkers},
		Middlewares:       a.middlewares(),
		Routes:            routes,
		OnStart:           a.start,
		OnStop:            a.stop,
	}, nil
}

func (a *App) middlewares() []coretelegram.Middleware {
	mws := coretelegram.DefaultMiddlewares(&a.cfg.Config, nil)
	if len(a.cfg.Dialogue.OperatorIDs) == 0 {
		return mws
	}
	users := make(map[int64]struct{}, len(a.cfg.Dialogue.OperatorIDs))
	for _, id := range a.cfg.Dialogue.OperatorIDs {
		users[id] = struct{}{}
	}
	return append(mws, coretelegram.Middleware{
		Name: "operators",
		Use:  middleware.AllowListMiddleware(middleware.AllowListOptions{Users: users}),
	})
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot != nil {
		a.publisher.Bind(rt.Bot)
	}
	if err := a.http.Start(ctx); err != nil {
		return err
	}

	janitorCtx, cancel := context.WithCancel(context.Background())
	a.stopJanitor = cancel
	go a.sessions.RunJanitor(janitorCtx, a.cfg.Dialogue.SessionTTL, a.cfg.Dialogue.SweepInterval)
	return nil
}

func (a *App) stop(context.Context, coretelegram.Runtime) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSeconds)*time.Second)
	defer cancel()
	return errors.Join(a.http.Shutdown(ctx), a.infra.Close())
}
