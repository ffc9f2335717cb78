// Package commands describes slash commands and the reply labels bound to them.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are served to the configured admin only and never
	// show up in the menu or answer to aliases.
	AdminOnly bool
	Hidden    bool
	// Aliases are reply keyboard labels that run the command when sent as text.
	Aliases []string
}

var (
	ErrNoSlash     = errors.New("command name must start with /")
	ErrNoHandler   = errors.New("command has no handler")
	ErrNoDescribed = errors.New("command has no description")
)

// Validate checks that c can be registered under name.
func (c Command) Validate(name string) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return ErrNoSlash
	case c.Handler == nil:
		return ErrNoHandler
	case strings.TrimSpace(c.Description) == "":
		return ErrNoDescribed
	}
	return nil
}

// Listed reports whether the command belongs in the public Telegram menu.
func (c Command) Listed() bool {
	return !c.Hidden && !c.AdminOnly
}
