// Package state provides a lightweight FSM/session store for Telegram bots.
// Sessions are keyed by Telegram user id and carry a typed payload, so the
// package stays domain-agnostic while bots keep their drafts strongly typed.
package state
