package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "postbot.counters"

// replyCounters tracks what a handler sent back. Sends may complete on
// sender workers, so the fields are atomic.
type replyCounters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

func (rc *replyCounters) record(opts []interface{}) {
	rc.messages.Add(1)
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				rc.keyboard.Store(true)
			}
		case *tele.ReplyMarkup:
			if v != nil {
				rc.keyboard.Store(true)
			}
		}
	}
}

// countingContext counts successful sends and edits made through it.
type countingContext struct {
	tele.Context
	rc *replyCounters
}

func (m countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		m.rc.record(opts)
	}
	return err
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

func (m countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts replies so handler summaries can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		rc := &replyCounters{}
		c.Set(countersKey, rc)
		return next(countingContext{Context: c, rc: rc})
	}
}

// GetCounters returns how many messages the handler sent and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	rc, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return int(rc.messages.Load()), rc.keyboard.Load()
}
