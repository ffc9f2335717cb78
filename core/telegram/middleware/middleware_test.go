package middleware

import (
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/meditationbot/core/logger"
	tghelpers "github.com/m3rciful/meditationbot/core/telegram/helpers"
)

type fakeCtx struct {
	tele.Context
	user *tele.User
	upd  tele.Update
	vals map[string]interface{}
}

func newCtx(uid int64) *fakeCtx {
	return &fakeCtx{
		user: &tele.User{ID: uid},
		upd:  tele.Update{ID: 42, Message: &tele.Message{Text: "hi"}},
		vals: map[string]interface{}{},
	}
}

func (f *fakeCtx) Sender() *tele.User { return f.user }

func (f *fakeCtx) Chat() *tele.Chat { return &tele.Chat{ID: f.user.ID} }

func (f *fakeCtx) Update() tele.Update { return f.upd }

func (f *fakeCtx) Get(key string) interface{} { return f.vals[key] }

func (f *fakeCtx) Set(key string, val interface{}) { f.vals[key] = val }

type calls []string

func (cs *calls) handler(name string) tele.HandlerFunc {
	return func(tele.Context) error {
		*cs = append(*cs, name)
		return nil
	}
}

func TestAdminOnly(t *testing.T) {
	var got calls
	guarded := AdminOnly(7, got.handler("reject"))(got.handler("ok"))
	_ = guarded(newCtx(7))
	_ = guarded(newCtx(8))

	nobody := AdminOnly(0, got.handler("reject"))(got.handler("ok"))
	_ = nobody(newCtx(0))

	if strings.Join(got, ",") != "ok,reject,reject" {
		t.Fatalf("calls = %v", got)
	}
}

func TestLoggerMiddlewareAttachesOnce(t *testing.T) {
	c := newCtx(5)
	var traces []string
	h := func(c tele.Context) error {
		ctx, ok := tghelpers.Context(c)
		if !ok {
			t.Fatal("no logging context")
		}
		traces = append(traces, logger.TraceIDFrom(ctx))
		return nil
	}
	wrapped := LoggerMiddleware(LoggerMiddleware(h))
	if err := wrapped(c); err != nil {
		t.Fatal(err)
	}
	if err := LoggerMiddleware(h)(c); err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 || traces[0] == "" || traces[0] != traces[1] {
		t.Fatalf("traces = %v", traces)
	}
	ctx, _ := tghelpers.Context(c)
	if logger.UserIDFrom(ctx) != 5 || logger.UpdateIDFrom(ctx) != 42 {
		t.Fatalf("meta user=%d update=%d", logger.UserIDFrom(ctx), logger.UpdateIDFrom(ctx))
	}
}

func TestRateLimitDropsBurstsPerUser(t *testing.T) {
	var got calls
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: got.handler("limited"),
	})
	h := mw(got.handler("ok"))
	_ = h(newCtx(1))
	_ = h(newCtx(1))
	_ = h(newCtx(2))
	if strings.Join(got, ",") != "ok,limited,ok" {
		t.Fatalf("calls = %v", got)
	}
}

func TestRateLimitExcludesKinds(t *testing.T) {
	var got calls
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	h := mw(got.handler("ok"))
	_ = h(newCtx(1))
	_ = h(newCtx(1))
	if len(got) != 2 {
		t.Fatalf("calls = %v", got)
	}
}

func TestLastSeenSweepsStaleUsers(t *testing.T) {
	seen := &lastSeen{byUser: map[int64]time.Time{}}
	start := time.Unix(1_700_000_000, 0)
	seen.allow(1, start, time.Second)
	seen.allow(2, start.Add(200*time.Second), time.Second)
	if _, ok := seen.byUser[1]; ok {
		t.Fatal("user 1 should have been swept")
	}
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newCtx(1))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":     {Callback: &tele.Callback{}},
		"message":      {Message: &tele.Message{}},
		"inline_query": {Query: &tele.Query{}},
		"other":        {},
	}
	for want, upd := range cases {
		if got := updateKind(upd); got != want {
			t.Fatalf("updateKind = %q, want %q", got, want)
		}
	}
}
