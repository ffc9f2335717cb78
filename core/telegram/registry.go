package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
	"github.com/m3rciful/meditationbot/core/telegram/commands"
)

const wireComponent = "tg.wire"

// Registry maps slash commands, reply labels and callback keys to handlers.
// Registration happens before the bot starts; lookups are safe afterwards.
type Registry struct {
	mu sync.RWMutex

	order    []string
	commands map[string]commands.Command
	aliases  map[string]string

	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown callbacks get a short
// toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// RegisterCommand adds cmd under name. Invalid and duplicate registrations
// are logged and ignored, and so is an alias already taken by another command.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if err := cmd.Validate(name); err != nil {
		return r.reject("command", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return r.reject("command", name, errors.New("duplicate command"))
	}
	for _, alias := range cmd.Aliases {
		if owner, taken := r.aliases[alias]; taken {
			return r.reject("command", name, fmt.Errorf("alias %q already bound to %s", alias, owner))
		}
	}
	r.commands[name] = cmd
	r.order = append(r.order, name)
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = name
	}
	return nil
}

// RegisterCallback binds handler to a callback key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	switch {
	case key == "":
		return r.reject("callback", key, errors.New("empty key"))
	case handler == nil:
		return r.reject("callback", key, errors.New("nil handler"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return r.reject("callback", key, errors.New("duplicate callback"))
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) reject(kind, name string, err error) error {
	logger.Warn(context.Background(), wireComponent, "register."+kind,
		slog.String("status", "skip"),
		slog.String("name", name),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("register %s %q: %w", kind, name, err)
}

// ListCommands returns commands in registration order. listedOnly drops
// hidden and admin-only ones.
func (r *Registry) ListCommands(listedOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tele.Command, 0, len(r.order))
	for _, name := range r.order {
		cmd := r.commands[name]
		if listedOnly && !cmd.Listed() {
			continue
		}
		out = append(out, tele.Command{Text: name, Description: cmd.Description})
	}
	return out
}

// Commands returns a copy of the command table.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for name, cmd := range r.commands {
		out[name] = cmd
	}
	return out
}

// LookupAlias finds the command bound to a reply keyboard label. Matching is
// exact after trimming, so free text never triggers a command by accident.
func (r *Registry) LookupAlias(text string) (string, commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[strings.TrimSpace(text)]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, r.commands[name], true
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys. nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the listed commands to the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	cmds := reg.ListCommands(true)
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(context.Background(), wireComponent, "set_commands",
			slog.String("status", "fail"),
			slog.Int("count", len(cmds)),
			slog.String("err", err.Error()),
		)
	}
}
