// Package logger provides the process-wide structured logger and its
// component loggers.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/postbot/core/buildinfo"
	coreconfig "github.com/m3rciful/postbot/core/config"
)

const defaultDebugSample = "1/50"

var (
	initOnce sync.Once

	mu      sync.Mutex
	writers []*asyncWriter
	files   []io.Closer

	levelVar     slog.LevelVar
	debugSampler = newSampler(1, 50)

	// L is the base logger; component loggers below derive from it.
	L *slog.Logger

	// DB logs database connectivity.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs database migrations.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// HTTP logs the auxiliary HTTP surface.
	HTTP *slog.Logger
	// Posting logs dialogue transitions and publish attempts.
	Posting *slog.Logger
	// Journal logs publication journal writes.
	Journal *slog.Logger
)

// Component loggers use slog's default handler until InitLogger runs.
func init() {
	L = slog.Default()
	wireComponents()
}

// options is the resolved logging section.
type options struct {
	level    slog.Level
	format   logFormat
	keyOrder []string
	sampleN  int
	sampleD  int
	dir      string
	botFile  string
	errFile  string
	profile  string
}

func resolve(cfg *coreconfig.Config) options {
	o := options{
		level:    slog.LevelInfo,
		format:   formatJSON,
		keyOrder: defaultKeyOrder,
		profile:  "prod",
	}
	o.sampleN, o.sampleD = parseRatio(defaultDebugSample)
	if cfg == nil {
		return o
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		o.level = slog.LevelDebug
	case "warn", "warning":
		o.level = slog.LevelWarn
	case "error":
		o.level = slog.LevelError
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			o.keyOrder = order
		}
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		o.sampleN, o.sampleD = parseRatio(spec)
	}
	o.dir = strings.TrimSpace(lc.Dir)
	o.botFile = strings.TrimSpace(lc.BotFile)
	o.errFile = strings.TrimSpace(lc.ErrorsFile)
	return o
}

// InitLogger configures the global structured logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() { err = install(resolve(cfg), os.Stdout) })
	return err
}

func install(o options, stdout io.Writer) error {
	levelVar.Set(o.level)
	debugSampler.Set(o.sampleN, o.sampleD)

	sinks := []io.Writer{stdout}
	var errSinks []io.Writer
	if o.dir != "" && (o.botFile != "" || o.errFile != "") {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			return fmt.Errorf("logger: create dir %s: %w", o.dir, err)
		}
	}
	if f, err := openLogFile(o.dir, o.botFile); err != nil {
		return err
	} else if f != nil {
		sinks = append(sinks, f)
	}
	if f, err := openLogFile(o.dir, o.errFile); err != nil {
		return err
	} else if f != nil {
		errSinks = append(errSinks, f)
	}

	mu.Lock()
	out := newAsyncWriter(sinks, 64*1024)
	writers = append(writers, out)
	var errOut *asyncWriter
	if len(errSinks) > 0 {
		errOut = newAsyncWriter(errSinks, 16*1024)
		writers = append(writers, errOut)
	}
	mu.Unlock()

	L = slog.New(newLineHandler(handlerConfig{
		level:    &levelVar,
		out:      out,
		errOut:   errOut,
		format:   o.format,
		keyOrder: o.keyOrder,
	}))
	slog.SetDefault(L)
	wireComponents()

	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("go_version", runtime.Version()),
		slog.String("build", buildinfo.String()),
		slog.String("cfg_profile", o.profile),
		slog.String("level", o.level.String()),
	)
	return nil
}

func openLogFile(dir, name string) (*os.File, error) {
	if dir == "" || name == "" {
		return nil, nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	mu.Lock()
	files = append(files, f)
	mu.Unlock()
	return f, nil
}

func wireComponents() {
	DB = Component("db")
	TG = Component("tg")
	MIG = Component("db.migrate")
	TWire = Component("tg.wire")
	HTTP = Component("http")
	Posting = Component("posting")
	Journal = Component("journal")
}

// Shutdown flushes buffered output and closes log files. It is safe to call more than once.
func Shutdown() error {
	mu.Lock()
	ws, fs := writers, files
	writers, files = nil, nil
	mu.Unlock()

	var errs []error
	for _, w := range ws {
		errs = append(errs, w.Close())
	}
	for _, f := range fs {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Component returns L scoped to the given component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent logs an event through log, or the context logger when log is nil.
func LogEvent(ctx context.Context, log *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if log == nil {
		log = FromContext(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	log.LogAttrs(ctx, level, "", attrs...)
}

// Event logs an event for the named component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be logged.
func ShouldSampleDebug() bool {
	return debugSampler.Allow()
}
