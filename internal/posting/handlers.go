package posting

import (
	"errors"
	"fmt"
	"strings"

	tg "github.com/m3rciful/postbot/core/telegram"
	"github.com/m3rciful/postbot/core/telegram/callbacks"
	"github.com/m3rciful/postbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/postbot/core/telegram/helpers"
	"github.com/m3rciful/postbot/core/telegram/keyboard"
	"github.com/m3rciful/postbot/core/telegram/state"
	"github.com/m3rciful/postbot/core/telegram/ui"
	"github.com/m3rciful/postbot/internal/journal"

	tele "gopkg.in/telebot.v4"
)

const historyLimit = 10

// Handlers adapts the dialogue to telebot updates.
type Handlers struct {
	dialogue *Dialogue
	journal  journal.Recorder
}

var _ ui.FallbackProvider = (*Handlers)(nil)

// NewHandlers returns telebot handlers for d. rec backs the /history command.
func NewHandlers(d *Dialogue, rec journal.Recorder) *Handlers {
	if rec == nil {
		rec = journal.Noop{}
	}
	return &Handlers{dialogue: d, journal: rec}
}

// Register installs commands, button handlers and per-state message handlers.
func (h *Handlers) Register(reg *tg.Registry, sessions *state.Store[Draft]) error {
	var errs []error
	for name, cmd := range map[string]commands.Command{
		"/start":   {Handler: h.start, Description: "Show the main menu"},
		"/cancel":  {Handler: h.cancel, Description: "Cancel the current post"},
		"/history": {Handler: h.history, Description: "Show recent publications", AdminOnly: true},
	} {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kind := range []callbacks.Kind{callbacks.KindNewPost, callbacks.KindGroup, callbacks.KindTopic} {
		if err := reg.RegisterCallback(string(kind), h.press); err != nil {
			errs = append(errs, err)
		}
	}

	for _, st := range []state.State{StateChoosingGroup, StateChoosingTopic, StateComposing, StateConfirming} {
		sessions.Handle(st, h.message)
	}
	return errors.Join(errs...)
}

func (h *Handlers) start(c tele.Context) error {
	return h.dialogue.Start(tghelpers.BuildContext(c), teleTurn{c})
}

func (h *Handlers) cancel(c tele.Context) error {
	return h.dialogue.Cancel(tghelpers.BuildContext(c), teleTurn{c})
}

func (h *Handlers) press(c tele.Context) error {
	action, ok := callbacks.ActionFrom(c)
	if !ok {
		return fmt.Errorf("press: %w", callbacks.ErrMalformed)
	}
	return h.dialogue.Press(tghelpers.BuildContext(c), teleTurn{c}, action)
}

func (h *Handlers) message(c tele.Context) error {
	return h.dialogue.Message(tghelpers.BuildContext(c), teleTurn{c}, ContentFrom(c.Message()))
}

func (h *Handlers) history(c tele.Context) error {
	if !h.journal.Enabled() {
		return tghelpers.SendText(c, textJournalDisabled)
	}
	entries, err := h.journal.Recent(tghelpers.BuildContext(c), historyLimit)
	if err != nil {
		_ = tghelpers.SendText(c, textJournalFailed)
		return err
	}
	return tghelpers.SendText(c, formatHistory(entries))
}

func formatHistory(entries []journal.Entry) string {
	if len(entries) == 0 {
		return textJournalEmpty
	}
	var b strings.Builder
	b.WriteString("Recent publications:")
	for _, e := range entries {
		media := e.MediaKind
		if media == "" {
			media = "text"
		}
		fmt.Fprintf(&b, "\n%s · group %d · thread %d · %s · %s",
			e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.GroupID, e.ThreadID, media, e.Status)
	}
	return b.String()
}

// UnknownText answers text no route claims: free text outside of a dialogue
// or an unregistered command during one.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.dialogue.Hint(tghelpers.BuildContext(c), teleTurn{c})
	}
}

// UnknownMedia answers media outside of a dialogue.
func (h *Handlers) UnknownMedia() tele.HandlerFunc {
	return h.UnknownText()
}

// UnknownCallback answers payloads no handler claims.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return callbacks.Respond(c, &tele.CallbackResponse{Text: textUnsupported})
	}
}

// MalformedCallback answers payloads that fail to decode.
func (h *Handlers) MalformedCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return callbacks.Respond(c, &tele.CallbackResponse{Text: textMalformedButton, ShowAlert: true})
	}
}

// teleTurn is a Turn backed by a telebot update.
type teleTurn struct{ c tele.Context }

func (t teleTurn) Operator() int64 {
	if u := t.c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func (t teleTurn) Reply(text string, buttons ...keyboard.Button) error {
	if len(buttons) == 0 {
		return tghelpers.SendText(t.c, text)
	}
	return tghelpers.SendMarkup(t.c, text, keyboard.Column(buttons))
}

func (t teleTurn) Edit(text string, buttons ...keyboard.Button) error {
	return t.c.Edit(text, keyboard.Column(buttons))
}

func (t teleTurn) Notify(text string, alert bool) error {
	if t.c.Callback() == nil {
		return tghelpers.SendText(t.c, text)
	}
	return callbacks.Respond(t.c, &tele.CallbackResponse{Text: text, ShowAlert: alert})
}
