package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/postbot/core/logger"
	tghelpers "github.com/m3rciful/postbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// entry guards a single user's session. dead is set once the entry has been
// removed from the store so waiters re-resolve a fresh one.
type entry[T any] struct {
	mu   sync.Mutex
	sess Session[T]
	dead bool
}

// Store is an in-memory session store. Transitions for one user are
// serialized; different users never contend beyond the map lookup.
type Store[T any] struct {
	mu       sync.Mutex
	sessions map[int64]*entry[T]
	handlers map[State]tele.HandlerFunc
	now      func() time.Time
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore[T any]() *Store[T] {
	return &Store[T]{
		sessions: make(map[int64]*entry[T]),
		handlers: make(map[State]tele.HandlerFunc),
		now:      time.Now,
	}
}

func (s *Store[T]) lookup(userID int64, create bool) *entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok && create {
		e = &entry[T]{sess: Session[T]{State: StateIdle}}
		s.sessions[userID] = e
	}
	return e
}

func (s *Store[T]) remove(userID int64, e *entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[userID]; ok && cur == e {
		delete(s.sessions, userID)
	}
	e.dead = true
}

// Get returns a copy of the user's session, or an idle session if none exists.
func (s *Store[T]) Get(userID int64) Session[T] {
	e := s.lookup(userID, false)
	if e == nil {
		return Session[T]{State: StateIdle}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return Session[T]{State: StateIdle}
	}
	return e.sess
}

// Transact runs fn with exclusive access to the user's session. Changes made
// by fn are kept even when it returns an error. A session left idle is
// dropped together with its data.
func (s *Store[T]) Transact(userID int64, fn func(sess *Session[T]) error) error {
	for {
		e := s.lookup(userID, true)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		err := fn(&e.sess)
		e.sess.Touched = s.now()
		if e.sess.Idle() {
			s.remove(userID, e)
		}
		e.mu.Unlock()
		return err
	}
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (s *Store[T]) GetState(userID int64) State {
	return s.Get(userID).State
}

// InProgress reports whether the user currently has an active FSM state.
func (s *Store[T]) InProgress(userID int64) bool {
	return !s.Get(userID).Idle()
}

// Len reports the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions untouched for longer than ttl and returns how many
// were removed. Sessions busy in a transition are skipped.
func (s *Store[T]) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess.Touched.Before(cutoff) {
			delete(s.sessions, id)
			e.dead = true
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (s *Store[T]) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ttl); n > 0 {
				logger.Info(ctx, "tg", "fsm.sweep",
					slog.String("status", "ok"),
					slog.Int("evicted", n),
					slog.Int("sessions", s.Len()),
				)
			}
		}
	}
}

// Handle associates a state with the handler run for free-form messages.
func (s *Store[T]) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[st] = h
}

// ManagerHandler executes the handler registered for the user's current state, if any.
func (s *Store[T]) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := s.GetState(userID)
	ctx := tghelpers.BuildContext(c)

	s.mu.Lock()
	handler, ok := s.handlers[current]
	s.mu.Unlock()

	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", logger.Status(nil)),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
		slog.Bool("handled", ok),
	)
	if ok {
		return handler(c)
	}
	return nil
}
