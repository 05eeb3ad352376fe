// Package commands describes slash commands exposed by the bot.
package commands

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrInvalid is returned for a command that cannot be registered.
var ErrInvalid = errors.New("invalid command")

// Command is a slash command handler with its menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run behind the admin check and stay out of the menu.
	AdminOnly bool
	Hidden    bool
}

// Validate checks that name is a slash command and cmd is complete.
func Validate(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("%w: %q must start with a slash", ErrInvalid, name)
	case strings.ContainsAny(name, " @"):
		return fmt.Errorf("%w: %q contains spaces or a bot suffix", ErrInvalid, name)
	case cmd.Handler == nil:
		return fmt.Errorf("%w: %s has no handler", ErrInvalid, name)
	case strings.TrimSpace(cmd.Description) == "":
		return fmt.Errorf("%w: %s has no description", ErrInvalid, name)
	}
	return nil
}

// Listed reports whether the command belongs in the public command menu.
func (c Command) Listed() bool {
	return !c.Hidden && !c.AdminOnly
}
