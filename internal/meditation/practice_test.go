package meditation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestElapsedMinutes(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{30 * time.Second, 1},
		{90 * time.Second, 1},
		{2 * time.Minute, 2},
		{20*time.Minute + 59*time.Second, 20},
		{-time.Minute, 1},
	}
	for _, tc := range cases {
		if got := ElapsedMinutes(start, start.Add(tc.d)); got != tc.want {
			t.Fatalf("ElapsedMinutes(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestEndWithoutStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, 1, "a.mp3", "A", "")

	if _, err := f.mgr.End(ctx, 1); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("End = %v, want ErrNoActiveSession", err)
	}
	if got := len(f.mgr.Stats(1)); got != 0 {
		t.Fatalf("ledger modified: %v", f.mgr.Stats(1))
	}
	if _, err := f.store.Load(ctx, DocStats); err == nil {
		t.Fatal("stats document should not be written")
	}
}

func TestStartOutOfRange(t *testing.T) {
	f := newFixture(t)
	if _, err := f.mgr.Start(context.Background(), 1, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Start = %v, want ErrIndexOutOfRange", err)
	}
	if _, ok := f.mgr.Practicing(1); ok {
		t.Fatal("no session should be running")
	}
}

func TestImmediateEndCountsOneMinute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, 1, "a.mp3", "A", "")

	_, _ = f.mgr.Start(ctx, 1, 0)
	done, err := f.mgr.End(ctx, 1)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if done.Minutes != 1 {
		t.Fatalf("minutes = %d, want 1", done.Minutes)
	}
}

func TestSecondStartReplacesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, 1, "a.mp3", "A", "")
	f.upload(t, 1, "b.mp3", "B", "")

	_, _ = f.mgr.Start(ctx, 1, 0)
	f.clock.Advance(10 * time.Minute)
	_, _ = f.mgr.Start(ctx, 1, 1)
	f.clock.Advance(5 * time.Minute)

	done, err := f.mgr.End(ctx, 1)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if done.Title != "B" || done.Minutes != 5 {
		t.Fatalf("completion = %+v", done)
	}
	stats := f.mgr.Stats(1)
	if _, ok := stats["A"]; ok {
		t.Fatalf("replaced session should not be recorded: %v", stats)
	}
}

func TestSessionSurvivesDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, 1, "a.mp3", "Evening", "")

	_, _ = f.mgr.Start(ctx, 1, 0)
	if _, err := f.mgr.Delete(ctx, 1, 0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	f.clock.Advance(3 * time.Minute)
	done, err := f.mgr.End(ctx, 1)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if done.Title != "Evening" || f.mgr.Stats(1)["Evening"] != 3 {
		t.Fatalf("completion = %+v, stats = %v", done, f.mgr.Stats(1))
	}
}

func TestEndPersistsStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, 1, "a.mp3", "A", "")
	_, _ = f.mgr.Start(ctx, 1, 0)
	f.clock.Advance(4 * time.Minute)
	_, _ = f.mgr.End(ctx, 1)

	data, err := f.store.Load(ctx, DocStats)
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	want := `{"1":{"A":4,"Общее время":4}}`
	if string(data) != want {
		t.Fatalf("stats doc = %s, want %s", data, want)
	}
}
