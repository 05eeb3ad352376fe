package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/postbot/core/logger"
	tghelpers "github.com/m3rciful/postbot/core/telegram/helpers"
	"github.com/m3rciful/postbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary is the handler.handled line written once per routed update.
type summary struct {
	handler string
	start   time.Time
	status  string
	err     error
	extras  []slog.Attr
}

// run calls fn under the handler name and logs its summary.
func run(c tele.Context, handler string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handler)
	err := fn()
	summary{handler: handler, start: start, status: logger.Status(err), err: err, extras: extras}.log(c)
	return err
}

// skip logs an update that no handler took.
func skip(c tele.Context, handler string, start time.Time) {
	summary{handler: handler, start: start, status: "skip"}.log(c)
}

func (s summary) log(c tele.Context) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)
	outcome := "ok"
	if s.err != nil {
		outcome = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", s.status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}
	attrs = append(attrs, s.extras...)
	level := slog.LevelInfo
	if s.err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(s.err.Error(), 256)),
			slog.String("err_code", errorCode(s.err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode names the error for grouping: an explicit Code() if any error in
// the chain has one, otherwise the outermost concrete type name.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
