// Package helpers contains reply helpers and per-update logging context for
// telebot handlers.
package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/postbot/core/logger"
	"github.com/m3rciful/postbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var replies atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes replies through d; nil sends them inline.
func SetDispatcher(d *sender.Dispatcher) {
	replies.Store(d)
}

// deliver queues send on the dispatcher, or runs it inline when there is no
// dispatcher or the queue cannot take it.
func deliver(c tele.Context, action string, send func() error) error {
	d := replies.Load()
	if d == nil {
		return send()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, sender.Job{Action: action, Endpoint: "sendMessage", Send: send})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.inline",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return send()
	default:
		return err
	}
}

// SendText sends plain text (no parse mode) to the chat of the update.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var args []interface{}
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return deliver(c, "send.text", func() error { return c.Send(text, args...) })
}

// SendMarkup sends plain text with a reply markup attached.
func SendMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return SendText(c, text)
	}
	return deliver(c, "send.markup", func() error {
		return c.Send(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}
