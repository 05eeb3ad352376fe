package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and the typed data collected so far.
type Session[T any] struct {
	State   State
	Data    T
	Touched time.Time
}

// Idle reports whether the session has no conversation in progress.
func (s Session[T]) Idle() bool {
	return s.State == "" || s.State == StateIdle
}

// Manager is the routing view of a session store used by message routers.
type Manager interface {
	GetState(userID int64) State
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}
