// Package httpapi serves the small HTTP surface next to the bot: a liveness
// response and a trigger that sends a fixed message through a fresh Bot API
// client.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/postbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	msgRunning      = "Bot is running"
	msgStarted      = "Bot started successfully!"
	msgStartFailed  = "Failed to start bot"
	triggerGreeting = "Bot started!"
)

// Sender is the part of a Bot API client the trigger needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ClientFactory builds a new Bot API client for every trigger call.
type ClientFactory func() (Sender, error)

// Options configures the HTTP surface.
type Options struct {
	Listen        string
	TriggerChatID int64
	NewClient     ClientFactory
}

// Server wraps http.Server with the chi router.
type Server struct {
	http *http.Server

	mu   sync.Mutex
	ln   net.Listener
	done chan error
}

// NewRouter returns the chi router with both endpoints.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, msgRunning)
	})
	r.Get("/start-bot", triggerHandler(opts))
	return r
}

func triggerHandler(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		if err := trigger(opts); err != nil {
			logger.LogEvent(ctx, logger.HTTP, slog.LevelError, "http.trigger",
				slog.String("status", logger.Status(err)),
				slog.Int64("chat_id", opts.TriggerChatID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			writeMessage(w, http.StatusBadGateway, msgStartFailed)
			return
		}
		logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "http.trigger",
			slog.String("status", logger.Status(nil)),
			slog.Int64("chat_id", opts.TriggerChatID),
		)
		writeMessage(w, http.StatusOK, msgStarted)
	}
}

func trigger(opts Options) error {
	if opts.NewClient == nil {
		return errors.New("no client factory")
	}
	if opts.TriggerChatID == 0 {
		return errors.New("trigger chat is not configured")
	}
	client, err := opts.NewClient()
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	if _, err := client.Send(tele.ChatID(opts.TriggerChatID), triggerGreeting); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	return nil
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.LogEvent(ctx, logger.HTTP, level, "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", ww.Status()),
			slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
		)
	})
}

// New builds a server for opts without listening yet.
func New(opts Options) *Server {
	return &Server{
		http: &http.Server{
			Addr:              opts.Listen,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.http.Addr, err)
	}
	done := make(chan error, 1)

	s.mu.Lock()
	s.ln = ln
	s.done = done
	s.mu.Unlock()

	logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "http.listen",
		slog.String("status", "ok"),
		slog.String("listen", ln.Addr().String()),
	)
	go func() {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	return nil
}

// Addr reports the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	err := s.http.Shutdown(ctx)
	if serveErr := <-done; serveErr != nil && err == nil {
		err = serveErr
	}
	logger.LogEvent(ctx, logger.HTTP, slog.LevelInfo, "http.shutdown",
		slog.String("status", logger.Status(err)),
	)
	return err
}
