package router

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/meditationbot/core/telegram"
	"github.com/m3rciful/meditationbot/core/telegram/commands"
)

type fakeCtx struct {
	tele.Context
	user      *tele.User
	msg       *tele.Message
	cb        *tele.Callback
	vals      map[string]interface{}
	responded bool
}

func newCtx(uid int64) *fakeCtx {
	return &fakeCtx{user: &tele.User{ID: uid}, vals: map[string]interface{}{}}
}

func textCtx(uid int64, text string) *fakeCtx {
	c := newCtx(uid)
	c.msg = &tele.Message{Text: text}
	return c
}

func (f *fakeCtx) Sender() *tele.User { return f.user }

func (f *fakeCtx) Chat() *tele.Chat { return &tele.Chat{ID: f.user.ID} }

func (f *fakeCtx) Message() *tele.Message { return f.msg }

func (f *fakeCtx) Callback() *tele.Callback { return f.cb }

func (f *fakeCtx) Update() tele.Update { return tele.Update{ID: 7, Message: f.msg, Callback: f.cb} }

func (f *fakeCtx) Get(key string) interface{} { return f.vals[key] }

func (f *fakeCtx) Set(key string, val interface{}) { f.vals[key] = val }

func (f *fakeCtx) Respond(...*tele.CallbackResponse) error {
	f.responded = true
	return nil
}

func (f *fakeCtx) Text() string {
	if f.msg == nil {
		return ""
	}
	return f.msg.Text
}

type fakeFSM struct {
	active  map[int64]bool
	decline bool
	calls   int
}

func (f *fakeFSM) InProgress(uid int64) bool { return f.active[uid] }

func (f *fakeFSM) ManagerHandler(tele.Context) error {
	f.calls++
	if f.decline {
		return ErrNotHandled
	}
	return nil
}

type hits map[string]int

func (h hits) handler(name string) tele.HandlerFunc {
	return func(tele.Context) error { h[name]++; return nil }
}

func textRoutes(t *testing.T, fsm FSM, h hits) (text, media tele.HandlerFunc) {
	t.Helper()
	reg := tg.NewRegistry()
	reg.RegisterCommand("/stats", commands.Command{Handler: h.handler("stats"), Description: "Stats", Aliases: []string{"📊 Stats"}})
	reg.RegisterCommand("/botstats", commands.Command{Handler: h.handler("botstats"), Description: "Admin", AdminOnly: true, Aliases: []string{"secret"}})
	routes := TextRoutes(fsm, reg, TextOptions{UnknownText: h.handler("unknown"), UnknownMedia: h.handler("media")})
	for _, r := range routes {
		switch r.Endpoint {
		case tele.OnText:
			text = r.Handler
		case tele.OnAudio:
			media = r.Handler
		}
	}
	if text == nil || media == nil {
		t.Fatalf("routes = %+v", routes)
	}
	return text, media
}

func TestTextRoutesAliasBeatsFlow(t *testing.T) {
	h := hits{}
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	text, _ := textRoutes(t, fsm, h)

	if err := text(textCtx(1, "📊 Stats")); err != nil {
		t.Fatal(err)
	}
	if h["stats"] != 1 || fsm.calls != 0 {
		t.Fatalf("hits = %v, fsm calls = %d", h, fsm.calls)
	}
}

func TestTextRoutesAdminAliasIgnored(t *testing.T) {
	h := hits{}
	text, _ := textRoutes(t, &fakeFSM{}, h)
	_ = text(textCtx(1, "secret"))
	if h["botstats"] != 0 || h["unknown"] != 1 {
		t.Fatalf("hits = %v", h)
	}
}

func TestTextRoutesFlowAndFallback(t *testing.T) {
	h := hits{}
	fsm := &fakeFSM{active: map[int64]bool{1: true}}
	text, media := textRoutes(t, fsm, h)

	_ = text(textCtx(1, "Evening calm"))
	if fsm.calls != 1 || h["unknown"] != 0 {
		t.Fatalf("flow should consume text: hits = %v", h)
	}

	fsm.decline = true
	_ = text(textCtx(1, "Evening calm"))
	if h["unknown"] != 1 {
		t.Fatalf("declined text should fall back: hits = %v", h)
	}

	_ = media(textCtx(2, ""))
	if h["media"] != 1 {
		t.Fatalf("media without a flow: hits = %v", h)
	}
}

func TestCallbackRouteDispatch(t *testing.T) {
	h := hits{}
	reg := tg.NewRegistry()
	_ = reg.RegisterCallback("start", h.handler("start"))
	reg.SetCallbackNotFound(h.handler("missing"))
	route := CallbackRoute(reg, CallbackOptions{})

	c := newCtx(1)
	c.cb = &tele.Callback{Data: "start_2"}
	if err := route.Handler(c); err != nil {
		t.Fatal(err)
	}
	if !c.responded || h["start"] != 1 {
		t.Fatalf("responded = %v, hits = %v", c.responded, h)
	}

	c = newCtx(1)
	c.cb = &tele.Callback{Data: "gone_1"}
	_ = route.Handler(c)
	if h["missing"] != 1 {
		t.Fatalf("unknown key: hits = %v", h)
	}
}

func TestCommandRoutesAdminOnly(t *testing.T) {
	h := hits{}
	reg := tg.NewRegistry()
	reg.RegisterCommand("/botstats", commands.Command{Handler: h.handler("botstats"), Description: "Admin", AdminOnly: true})
	reg.RegisterCommand("/menu", commands.Command{Handler: h.handler("menu"), Description: "Menu"})

	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: 42, OnAdminReject: h.handler("rejected")})
	byName := map[interface{}]tele.HandlerFunc{}
	for _, r := range routes {
		byName[r.Endpoint] = r.Handler
	}

	_ = byName["/botstats"](textCtx(1, "/botstats"))
	_ = byName["/botstats"](textCtx(42, "/botstats"))
	_ = byName["/menu"](textCtx(1, "/menu"))
	if h["rejected"] != 1 || h["botstats"] != 1 || h["menu"] != 1 {
		t.Fatalf("hits = %v", h)
	}

	routes = CommandRoutes(reg, CommandRouteOptions{OnAdminReject: h.handler("rejected")})
	for _, r := range routes {
		if r.Endpoint == "/botstats" {
			_ = r.Handler(textCtx(0, "/botstats"))
		}
	}
	if h["rejected"] != 2 {
		t.Fatalf("without an admin everyone is rejected: hits = %v", h)
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "blocked" }

func (codedErr) Code() string { return "bot blocked" }

func TestErrorCodeAndHandlerName(t *testing.T) {
	if got := errorCode(fmt.Errorf("send: %w", codedErr{})); got != "BOT_BLOCKED" {
		t.Fatalf("coded = %q", got)
	}
	if got := errorCode(fmt.Errorf("send: %w", errors.New("x"))); got != "ERRORSTRING" {
		t.Fatalf("plain = %q", got)
	}
	if got := handlerName(" /Stats "); got != "stats" {
		t.Fatalf("handlerName = %q", got)
	}
	if got := handlerName(""); got != "unknown" {
		t.Fatalf("empty handlerName = %q", got)
	}
}
