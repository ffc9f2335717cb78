package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandSkipsInvalid(t *testing.T) {
	reg := NewRegistry()
	invalid := map[string]struct {
		name string
		cmd  commands.Command
		want error
	}{
		"no slash":       {"stats", commands.Command{Handler: noop, Description: "x"}, commands.ErrNoSlash},
		"no handler":     {"/stats", commands.Command{Description: "x"}, commands.ErrNoHandler},
		"no description": {"/stats", commands.Command{Handler: noop, Description: " "}, commands.ErrNoDescribed},
	}
	for label, tc := range invalid {
		if err := reg.RegisterCommand(tc.name, tc.cmd); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", label, err, tc.want)
		}
	}
	if len(reg.Commands()) != 0 {
		t.Fatalf("commands = %v", reg.Commands())
	}

	if err := reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "first", Aliases: []string{"📊"}}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "second"}); err == nil {
		t.Fatal("duplicate should fail")
	}
	if err := reg.RegisterCommand("/top", commands.Command{Handler: noop, Description: "top", Aliases: []string{"📊"}}); err == nil {
		t.Fatal("taken alias should fail")
	}
	if got := reg.Commands()["/stats"].Description; got != "first" {
		t.Fatalf("duplicate replaced the original: %q", got)
	}
	if _, ok := reg.Commands()["/top"]; ok {
		t.Fatal("/top should not be registered")
	}
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/upload", commands.Command{Handler: noop, Description: "Upload"})
	reg.RegisterCommand("/menu", commands.Command{Handler: noop, Description: "Menu"})
	reg.RegisterCommand("/botstats", commands.Command{Handler: noop, Description: "Counters", AdminOnly: true})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true})

	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "/upload" || visible[1].Text != "/menu" {
		t.Fatalf("visible = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 4 {
		t.Fatalf("all = %+v", all)
	}
}

func TestLookupAliasExactOnly(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", Aliases: []string{"📊 Stats"}})

	key, _, ok := reg.LookupAlias("  📊 Stats ")
	if !ok || key != "/stats" {
		t.Fatalf("lookup = %q, %v", key, ok)
	}
	for _, text := range []string{"", "stats", "/stats", "📊 stats"} {
		if _, _, ok := reg.LookupAlias(text); ok {
			t.Fatalf("%q should not match", text)
		}
	}
}

func TestRegisterCallback(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("start", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCallback("start", noop); err == nil {
		t.Fatal("duplicate callback should fail")
	}
	if err := reg.RegisterCallback("", noop); err == nil {
		t.Fatal("empty key should fail")
	}
	if err := reg.RegisterCallback("end", nil); err == nil {
		t.Fatal("nil handler should fail")
	}
	if _, ok := reg.GetCallback("start"); !ok {
		t.Fatal("start not found")
	}
	if _, ok := reg.GetCallback("delete"); ok {
		t.Fatal("delete should be missing")
	}

	if reg.CallbackNotFound() == nil {
		t.Fatal("default not-found handler missing")
	}
	var called bool
	reg.SetCallbackNotFound(func(tele.Context) error { called = true; return nil })
	reg.SetCallbackNotFound(nil)
	_ = reg.CallbackNotFound()(nil)
	if !called {
		t.Fatal("nil must not replace the not-found handler")
	}
}
