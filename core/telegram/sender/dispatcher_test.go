package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	err := d.Enqueue(context.Background(), "send.reminder", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	d.Close()
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "send.reminder", "sendMessage", func() error {
		calls.Add(1)
		return &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	})
	d.Close()
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherQueueFullAndClosed(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	started := make(chan struct{})
	release := make(chan struct{})
	noop := func() error { return nil }

	if err := d.Enqueue(context.Background(), "a", "", func() error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := d.Enqueue(context.Background(), "b", "", noop); err != nil {
		t.Fatalf("second job: %v", err)
	}
	if err := d.Enqueue(context.Background(), "c", "", noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third job: %v, want ErrQueueFull", err)
	}
	close(release)
	d.Close()

	if err := d.Enqueue(context.Background(), "d", "", noop); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("after close: %v", err)
	}
	if err := d.Enqueue(context.Background(), "e", "", nil); err == nil {
		t.Fatal("nil run should fail")
	}
}

func TestClassifyError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"deadline": {context.DeadlineExceeded, "timeout"},
		"dial":     {&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		"dns":      {&net.DNSError{Name: "api.telegram.org"}, "dns"},
		"api 5xx":  {&tele.Error{Code: 502}, "http_5xx"},
		"api 4xx":  {&tele.Error{Code: 400}, "http_4xx"},
		"plain":    {errors.New("boom"), "unknown"},
	}
	for name, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("%s: classifyError = %q, want %q", name, got, tc.want)
		}
	}
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAbb-CC_dd/sendMessage": timeout`)
	got := sanitizeErrorMessage(err)
	if got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout` {
		t.Fatalf("sanitized = %q", got)
	}
}

func TestRetryDelayHonoursFloodControl(t *testing.T) {
	delay, ok := retryDelay(tele.FloodError{RetryAfter: 3}, time.Second)
	if !ok || delay != 3*time.Second {
		t.Fatalf("flood: %v %v", delay, ok)
	}
	if _, ok := retryDelay(&tele.Error{Code: 502}, time.Second); !ok {
		t.Fatal("5xx should be retried")
	}
	if _, ok := retryDelay(&tele.Error{Code: 400}, time.Second); ok {
		t.Fatal("4xx should not be retried")
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2})
	d.Close()
	d.Close()
}
