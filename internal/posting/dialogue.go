package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/postbot/core/logger"
	"github.com/m3rciful/postbot/core/telegram/callbacks"
	"github.com/m3rciful/postbot/core/telegram/keyboard"
	"github.com/m3rciful/postbot/core/telegram/state"
	"github.com/m3rciful/postbot/internal/catalog"
)

// Dialogue states. Idle is shared with the session store.
const (
	StateIdle                      = state.StateIdle
	StateChoosingGroup state.State = "choosing_group"
	StateChoosingTopic state.State = "choosing_topic"
	StateComposing     state.State = "composing"
	StateConfirming    state.State = "confirming"
)

// Turn is a single inbound event from an operator together with the ways
// to answer it.
type Turn interface {
	Operator() int64
	// Reply sends a new message to the operator.
	Reply(text string, buttons ...keyboard.Button) error
	// Edit replaces the message whose button was pressed.
	Edit(text string, buttons ...keyboard.Button) error
	// Notify shows a short notice for the pressed button.
	Notify(text string, alert bool) error
}

// Groups is the read-only view of the catalog used by the dialogue.
type Groups interface {
	Groups() []catalog.Group
	Group(id int64) (catalog.Group, error)
}

// Publisher delivers a finished draft.
type Publisher interface {
	Publish(ctx context.Context, operatorID int64, d Draft) error
}

// Dialogue drives the posting wizard for every operator.
type Dialogue struct {
	groups    Groups
	sessions  *state.Store[Draft]
	publisher Publisher
}

// NewDialogue wires the wizard to its catalog, session store and publisher.
func NewDialogue(groups Groups, sessions *state.Store[Draft], publisher Publisher) *Dialogue {
	return &Dialogue{groups: groups, sessions: sessions, publisher: publisher}
}

// Session returns a snapshot of the operator's session.
func (d *Dialogue) Session(operatorID int64) state.Session[Draft] {
	return d.sessions.Get(operatorID)
}

// Start renders the entry menu. It never touches the session.
func (d *Dialogue) Start(_ context.Context, t Turn) error {
	return t.Reply(textWelcome, keyboard.Button{Text: btnNewPost, Data: callbacks.NewPost().Payload()})
}

// Press dispatches a decoded button press.
func (d *Dialogue) Press(ctx context.Context, t Turn, a callbacks.Action) error {
	switch a.Kind {
	case callbacks.KindNewPost:
		return d.NewPost(ctx, t)
	case callbacks.KindGroup:
		return d.ChooseGroup(ctx, t, a.ID)
	case callbacks.KindTopic:
		return d.ChooseTopic(ctx, t, a.ID)
	default:
		return fmt.Errorf("press %q: %w", a.Kind, callbacks.ErrUnknown)
	}
}

// NewPost opens a fresh draft and shows the group list.
func (d *Dialogue) NewPost(ctx context.Context, t Turn) error {
	return d.step(ctx, t, StateIdle, func(s *state.Session[Draft]) error {
		if err := t.Edit(textChooseGroup, d.groupButtons()...); err != nil {
			return fmt.Errorf("render groups: %w", err)
		}
		s.Data = Draft{}
		s.State = StateChoosingGroup
		return nil
	})
}

// ChooseGroup stores the group and shows its topics. An unknown group ends
// the dialogue.
func (d *Dialogue) ChooseGroup(ctx context.Context, t Turn, groupID int64) error {
	return d.step(ctx, t, StateChoosingGroup, func(s *state.Session[Draft]) error {
		g, err := d.groups.Group(groupID)
		if errors.Is(err, catalog.ErrGroupNotFound) {
			s.Data = Draft{}
			s.State = StateIdle
			logger.LogEvent(ctx, logger.Posting, slog.LevelWarn, "dialogue.group_not_found",
				slog.Int64("user_id", t.Operator()),
				slog.Int64("group_id", groupID),
			)
			return t.Edit(textGroupNotFound)
		}
		if err != nil {
			return err
		}
		if err := t.Edit(textChooseTopic, topicButtons(g)...); err != nil {
			return fmt.Errorf("render topics: %w", err)
		}
		s.Data.GroupID = g.ID
		s.State = StateChoosingTopic
		return nil
	})
}

// ChooseTopic stores the thread id and asks for the post content.
func (d *Dialogue) ChooseTopic(ctx context.Context, t Turn, threadID int64) error {
	return d.step(ctx, t, StateChoosingTopic, func(s *state.Session[Draft]) error {
		if err := t.Edit(textSendPost); err != nil {
			return fmt.Errorf("render prompt: %w", err)
		}
		s.Data.ThreadID = int(threadID)
		s.State = StateComposing
		return nil
	})
}

// Compose records the post content and waits for confirmation.
func (d *Dialogue) Compose(ctx context.Context, t Turn, c Content) error {
	return d.step(ctx, t, StateComposing, func(s *state.Session[Draft]) error {
		if err := t.Reply(textReady); err != nil {
			return fmt.Errorf("ask confirmation: %w", err)
		}
		s.Data.Text = c.Text
		s.Data.Media = c.Media()
		s.State = StateConfirming
		return nil
	})
}

// Confirm publishes the draft. The dialogue returns to idle whether or not
// delivery succeeds.
func (d *Dialogue) Confirm(ctx context.Context, t Turn) error {
	return d.step(ctx, t, StateConfirming, func(s *state.Session[Draft]) error {
		draft := s.Data
		s.Data = Draft{}
		s.State = StateIdle

		if err := d.publisher.Publish(ctx, t.Operator(), draft); err != nil {
			logger.LogEvent(ctx, logger.Posting, slog.LevelError, "dialogue.publish",
				slog.String("status", logger.Status(err)),
				slog.Int64("user_id", t.Operator()),
				slog.Int64("group_id", draft.GroupID),
				slog.Int("thread_id", draft.ThreadID),
				slog.String("err", logger.Redact(err)),
			)
			return t.Reply(textPublishFailed)
		}
		return t.Reply(textPostSent)
	})
}

// Cancel discards any draft in progress.
func (d *Dialogue) Cancel(ctx context.Context, t Turn) error {
	var from state.State
	_ = d.sessions.Transact(t.Operator(), func(s *state.Session[Draft]) error {
		from = s.State
		s.Data = Draft{}
		s.State = StateIdle
		return nil
	})
	if from == "" || from == StateIdle {
		return t.Reply(textNothingToCancel)
	}
	logTransition(ctx, t.Operator(), from, StateIdle)
	return t.Reply(textCancelled)
}

// Message handles a non-command message according to the current state.
func (d *Dialogue) Message(ctx context.Context, t Turn, c Content) error {
	switch d.sessions.GetState(t.Operator()) {
	case StateComposing:
		return d.Compose(ctx, t, c)
	case StateConfirming:
		if !c.IsText() {
			return d.Hint(ctx, t)
		}
		return d.Confirm(ctx, t)
	default:
		return d.Hint(ctx, t)
	}
}

// Hint answers input that cannot drive the current step, such as an
// unregistered command, with what the step expects instead.
func (d *Dialogue) Hint(_ context.Context, t Turn) error {
	switch d.sessions.GetState(t.Operator()) {
	case StateChoosingGroup, StateChoosingTopic:
		return t.Reply(textUseButtons)
	case StateComposing:
		return t.Reply(textSendPost)
	case StateConfirming:
		return t.Reply(textConfirmWithText)
	default:
		return t.Reply(textUnknownInput)
	}
}

// step runs fn under the operator's session lock when the session is in
// the expected state. Presses and messages arriving in any other state are
// stale and leave the session untouched.
func (d *Dialogue) step(ctx context.Context, t Turn, want state.State, fn func(*state.Session[Draft]) error) error {
	var (
		from, to state.State
		stale    bool
	)
	err := d.sessions.Transact(t.Operator(), func(s *state.Session[Draft]) error {
		from = s.State
		if from == "" {
			from = StateIdle
		}
		if from != want {
			stale = true
			return nil
		}
		err := fn(s)
		to = s.State
		return err
	})
	if stale {
		logger.LogEvent(ctx, logger.Posting, slog.LevelDebug, "dialogue.stale",
			slog.Int64("user_id", t.Operator()),
			slog.String("state", string(from)),
			slog.String("next_state", string(want)),
		)
		return t.Notify(textStaleButton, false)
	}
	if to != from {
		logTransition(ctx, t.Operator(), from, to)
	}
	return err
}

func logTransition(ctx context.Context, operatorID int64, from, to state.State) {
	logger.LogEvent(ctx, logger.Posting, slog.LevelInfo, "dialogue.transition",
		slog.Int64("user_id", operatorID),
		slog.String("state", string(from)),
		slog.String("next_state", string(to)),
	)
}

func (d *Dialogue) groupButtons() []keyboard.Button {
	groups := d.groups.Groups()
	buttons := make([]keyboard.Button, 0, len(groups))
	for _, g := range groups {
		buttons = append(buttons, keyboard.Button{Text: g.Name, Data: callbacks.Group(g.ID).Payload()})
	}
	return buttons
}

func topicButtons(g catalog.Group) []keyboard.Button {
	buttons := make([]keyboard.Button, 0, len(g.Topics))
	for _, tp := range g.Topics {
		name := tp.Name
		if name == "" {
			name = "#" + strconv.Itoa(tp.ThreadID)
		}
		buttons = append(buttons, keyboard.Button{Text: name, Data: callbacks.Topic(int64(tp.ThreadID)).Payload()})
	}
	return buttons
}
