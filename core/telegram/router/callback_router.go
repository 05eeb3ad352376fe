package router

import (
	"errors"
	"log/slog"
	"time"

	tg "github.com/m3rciful/postbot/core/telegram"
	"github.com/m3rciful/postbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
	// Malformed runs when a known payload carries an unparsable id.
	Malformed tele.HandlerFunc
}

// CallbackRoute returns a handler that decodes button payloads into
// callbacks.Action values and routes them through the registry by kind.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		defer func() { _ = callbacks.Ack(c) }()

		action, err := callbacks.Decode(cb.Data)
		name := "callback." + normalizeHandlerName(string(action.Kind))
		extras := []slog.Attr{slog.String("cb_key", string(action.Kind))}

		switch {
		case errors.Is(err, callbacks.ErrMalformed):
			extras = append(extras, slog.String("reason", "malformed"))
			return run(c, name, start, func() error {
				if opts.Malformed != nil {
					return opts.Malformed(c)
				}
				return err
			}, extras...)
		case err != nil:
			return notFound(c, reg, opts, "callback.unknown", start, extras...)
		}

		cbHandler, ok := reg.GetCallback(string(action.Kind))
		if !ok || cbHandler == nil {
			return notFound(c, reg, opts, name, start, extras...)
		}

		callbacks.Bind(c, action)
		return run(c, name, start, func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  guard(handler),
	}
}

func notFound(c tele.Context, reg *tg.Registry, opts CallbackOptions, name string, start time.Time, extras ...slog.Attr) error {
	fallback := reg.CallbackNotFound()
	if fallback == nil {
		fallback = opts.NotFound
	}
	extras = append(extras, slog.String("reason", "not_found"))
	return run(c, name, start, func() error {
		if fallback != nil {
			return fallback(c)
		}
		return nil
	}, extras...)
}
