package posting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m3rciful/postbot/core/telegram/keyboard"
	"github.com/m3rciful/postbot/core/telegram/state"
	"github.com/m3rciful/postbot/internal/catalog"
	"github.com/m3rciful/postbot/internal/journal"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type rendered struct {
	text    string
	buttons []keyboard.Button
}

type fakeTurn struct {
	op      int64
	replies []rendered
	edits   []rendered
	notices []string
	alerts  []bool
	editErr error
}

func (t *fakeTurn) Operator() int64 { return t.op }

func (t *fakeTurn) Reply(text string, buttons ...keyboard.Button) error {
	t.replies = append(t.replies, rendered{text: text, buttons: buttons})
	return nil
}

func (t *fakeTurn) Edit(text string, buttons ...keyboard.Button) error {
	if t.editErr != nil {
		return t.editErr
	}
	t.edits = append(t.edits, rendered{text: text, buttons: buttons})
	return nil
}

func (t *fakeTurn) Notify(text string, alert bool) error {
	t.notices = append(t.notices, text)
	t.alerts = append(t.alerts, alert)
	return nil
}

func (t *fakeTurn) lastReply() string {
	if len(t.replies) == 0 {
		return ""
	}
	return t.replies[len(t.replies)-1].text
}

func (t *fakeTurn) lastEdit() rendered {
	if len(t.edits) == 0 {
		return rendered{}
	}
	return t.edits[len(t.edits)-1]
}

type sendCall struct {
	to   tele.Recipient
	what interface{}
	opts *tele.SendOptions
}

type fakePoster struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

func (p *fakePoster) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := sendCall{to: to, what: what}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			call.opts = so
		}
	}
	p.calls = append(p.calls, call)
	if p.err != nil {
		return nil, p.err
	}
	return &tele.Message{ID: len(p.calls)}, nil
}

func (p *fakePoster) sent() []sendCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sendCall(nil), p.calls...)
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (j *memJournal) Record(_ context.Context, e journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return j.err
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit > len(j.entries) {
		limit = len(j.entries)
	}
	return append([]journal.Entry(nil), j.entries[:limit]...), nil
}

func (j *memJournal) Enabled() bool { return true }

var errBoom = errors.New("boom")

type harness struct {
	dialogue *Dialogue
	sessions *state.Store[Draft]
	poster   *fakePoster
	journal  *memJournal
}

func newsCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Group{
		{ID: 1, Name: "News", Topics: []catalog.Topic{{ThreadID: 10, Name: "General"}}},
		{ID: -1002, Name: "Chat", Topics: []catalog.Topic{{ThreadID: 3, Name: "Offtopic"}, {ThreadID: 4, Name: "Media"}}},
		{ID: 7, Name: "Empty"},
	})
	require.NoError(t, err)
	return cat
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: state.NewMemoryStore[Draft](),
		poster:   &fakePoster{},
		journal:  &memJournal{},
	}
	pub := NewPublisher(h.journal)
	pub.Bind(h.poster)
	h.dialogue = NewDialogue(newsCatalog(t), h.sessions, pub)
	return h
}
