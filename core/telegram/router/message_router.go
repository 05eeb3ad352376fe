package router

import (
	"log/slog"
	"strings"
	"time"

	tg "github.com/m3rciful/postbot/core/telegram"
	"github.com/m3rciful/postbot/core/telegram/state"
	"github.com/m3rciful/postbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// FallbackOptions takes the text and callback fallbacks from p.
func FallbackOptions(p ui.FallbackProvider) (TextOptions, CallbackOptions) {
	if p == nil {
		return TextOptions{}, CallbackOptions{}
	}
	return TextOptions{
			UnknownText:  p.UnknownText(),
			UnknownMedia: p.UnknownMedia(),
		}, CallbackOptions{
			NotFound:  p.UnknownCallback(),
			Malformed: p.MalformedCallback(),
		}
}

// messageEndpoints are the non-text messages a conversation accepts as input.
// Photo and video carry content; the rest reach the FSM so each step can
// answer them. OnMedia covers voice, audio, animation, document, sticker and
// video notes.
var messageEndpoints = []string{
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnMedia,
	tele.OnContact,
	tele.OnLocation,
	tele.OnVenue,
	tele.OnDice,
	tele.OnGame,
}

// TextRoutes builds handlers for text and media routing. Messages from users
// with a conversation in progress go to the FSM; slash-prefixed text never
// does, so unknown commands cannot leak into a conversation as content.
func TextRoutes(fsmMgr state.Manager, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()
		command := strings.HasPrefix(text, "/")

		if !command && fsmMgr != nil && fsmMgr.InProgress(senderID(c)) {
			return run(c, "fsm", start, func() error {
				return fsmMgr.ManagerHandler(c)
			}, stateAttr(fsmMgr, c))
		}

		if reg != nil && command {
			if key, cmd, ok := reg.LookupCommand(commandName(text)); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return run(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return run(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return run(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		skip(c, "unknown_text", start)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if fsmMgr != nil && fsmMgr.InProgress(senderID(c)) {
			return run(c, "fsm_media", start, func() error {
				return fsmMgr.ManagerHandler(c)
			}, stateAttr(fsmMgr, c))
		}
		if opts.UnknownMedia != nil {
			return run(c, "unexpected_media", start, func() error {
				return opts.UnknownMedia(c)
			})
		}
		skip(c, "unexpected_media", start)
		return nil
	}

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: guard(handler)}}
	for _, endpoint := range messageEndpoints {
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: guard(mediaHandler)})
	}
	return routes
}

func stateAttr(fsmMgr state.Manager, c tele.Context) slog.Attr {
	return slog.String("state", string(fsmMgr.GetState(senderID(c))))
}

// commandName strips arguments and the @botname suffix from a command line.
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return name
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
