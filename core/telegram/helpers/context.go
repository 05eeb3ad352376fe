package helpers

import (
	"context"

	"github.com/m3rciful/postbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxSlot = "postbot.ctx"

// Ident returns the update, chat and user ids of c; missing parts are zero.
func Ident(c tele.Context) (updateID int, chatID, userID int64) {
	if c == nil {
		return 0, 0, 0
	}
	updateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return updateID, chatID, userID
}

// BuildContext returns the logging context of the update, creating and
// caching it on first use.
func BuildContext(c tele.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get(ctxSlot).(context.Context); ok {
		return ctx
	}
	updateID, chatID, userID := Ident(c)
	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	c.Set(ctxSlot, ctx)
	return ctx
}

// WithHandler tags the update context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || c == nil {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxSlot, ctx)
	return ctx
}
