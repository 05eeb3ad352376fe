package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	actionKey   = "cb_action"
	answeredKey = "cb_answered"
)

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Plain payloads without the marker are returned as the unique part.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// Bind stores the decoded action on the update context for handlers.
func Bind(c tele.Context, a Action) {
	c.Set(actionKey, a)
}

// ActionFrom returns the action bound by the callback router.
func ActionFrom(c tele.Context) (Action, bool) {
	a, ok := c.Get(actionKey).(Action)
	return a, ok
}

// Respond answers the callback query and remembers that it was answered.
func Respond(c tele.Context, resp *tele.CallbackResponse) error {
	c.Set(answeredKey, true)
	if resp == nil {
		return c.Respond()
	}
	return c.Respond(resp)
}

// Ack answers the callback query with an empty response unless a handler
// already did. Telegram keeps a spinner on the button until it is answered.
func Ack(c tele.Context) error {
	if answered, _ := c.Get(answeredKey).(bool); answered {
		return nil
	}
	return Respond(c, nil)
}
