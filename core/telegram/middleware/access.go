package middleware

import (
	"log/slog"

	"github.com/m3rciful/postbot/core/logger"
	tghelpers "github.com/m3rciful/postbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream
// handlers. A zero AdminID disables the check.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	allowed := map[int64]struct{}{}
	if opts.AdminID != 0 {
		allowed[opts.AdminID] = struct{}{}
	}
	return AllowListMiddleware(AllowListOptions{Users: allowed, OnReject: opts.OnReject})
}

// AllowListOptions restricts handlers to a set of Telegram user ids.
type AllowListOptions struct {
	// Users is the allow-list; an empty set lets everyone through.
	Users    map[int64]struct{}
	OnReject tele.HandlerFunc
}

// AllowListMiddleware drops updates from senders outside opts.Users.
func AllowListMiddleware(opts AllowListOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if len(opts.Users) == 0 {
			return next
		}
		return func(c tele.Context) error {
			_, _, userID := tghelpers.Ident(c)
			if _, ok := opts.Users[userID]; ok {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.access",
				slog.String("status", "skip"),
				slog.Int("allowed", len(opts.Users)),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
