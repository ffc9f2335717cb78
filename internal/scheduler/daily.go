// Package scheduler fires one daily callback per user at a wall-clock time.
// All jobs share a single goroutine driven by a min-heap of next firing times.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/m3rciful/meditationbot/core/logger"
)

const component = "scheduler"

// Func is invoked when a user's job fires.
type Func func(ctx context.Context, userID int64) error

// Option configures a Daily scheduler.
type Option func(*Daily)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Daily) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLocation sets the zone used to interpret hour and minute.
func WithLocation(loc *time.Location) Option {
	return func(d *Daily) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// Daily keeps at most one job per user.
type Daily struct {
	mu    sync.Mutex
	jobs  map[int64]*job
	queue jobQueue
	wake  chan struct{}

	fire Func
	now  func() time.Time
	loc  *time.Location
}

type job struct {
	userID int64
	spec   string
	expr   *cronexpr.Expression
	next   time.Time
	index  int
}

// NewDaily returns a scheduler that calls fire for due jobs once Run is started.
func NewDaily(fire Func, opts ...Option) *Daily {
	d := &Daily{
		jobs: make(map[int64]*job),
		wake: make(chan struct{}, 1),
		fire: fire,
		now:  time.Now,
		loc:  time.Local,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schedule arms or replaces the user's daily job.
func (d *Daily) Schedule(userID int64, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("scheduler: invalid time %02d:%02d", hour, minute)
	}
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	next := expr.Next(d.now().In(d.loc))

	d.mu.Lock()
	if existing, ok := d.jobs[userID]; ok {
		existing.spec = spec
		existing.expr = expr
		existing.next = next
		heap.Fix(&d.queue, existing.index)
	} else {
		j := &job{userID: userID, spec: spec, expr: expr, next: next}
		d.jobs[userID] = j
		heap.Push(&d.queue, j)
	}
	d.mu.Unlock()

	d.signal()
	logger.Debug(logger.Background(), component, "job.schedule",
		slog.Int64("user_id", userID),
		slog.String("spec", spec),
		slog.Time("next", next),
	)
	return nil
}

// Cancel removes the user's job. Cancelling an absent job is a no-op.
func (d *Daily) Cancel(userID int64) {
	d.mu.Lock()
	j, ok := d.jobs[userID]
	if ok {
		heap.Remove(&d.queue, j.index)
		delete(d.jobs, userID)
	}
	d.mu.Unlock()
	if ok {
		d.signal()
	}
}

// Next returns the next firing time of the user's job.
func (d *Daily) Next(userID int64) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[userID]
	if !ok {
		return time.Time{}, false
	}
	return j.next, true
}

// Len returns the number of armed jobs.
func (d *Daily) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

// Run drives the scheduler until ctx is cancelled.
func (d *Daily) Run(ctx context.Context) error {
	logger.Info(ctx, component, "run", slog.String("status", "start"), slog.Int("count", d.Len()))
	for {
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		d.mu.Lock()
		if len(d.queue) > 0 {
			wait := d.queue[0].next.Sub(d.now())
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info(ctx, component, "run", slog.String("status", "stop"))
			return ctx.Err()
		case <-d.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			d.fireDue(ctx, d.now())
		}
	}
}

// fireDue runs every job due at or before now and re-arms it for the next day.
func (d *Daily) fireDue(ctx context.Context, now time.Time) int {
	var due []int64
	d.mu.Lock()
	for len(d.queue) > 0 && !d.queue[0].next.After(now) {
		j := d.queue[0]
		j.next = j.expr.Next(now.In(d.loc))
		heap.Fix(&d.queue, 0)
		due = append(due, j.userID)
	}
	d.mu.Unlock()

	for _, userID := range due {
		d.invoke(ctx, userID)
	}
	return len(due)
}

func (d *Daily) invoke(ctx context.Context, userID int64) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, component, "job.fire",
				slog.Int64("user_id", userID),
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(rec)),
			)
		}
	}()
	if d.fire == nil {
		return
	}
	if err := d.fire(ctx, userID); err != nil {
		logger.Warn(ctx, component, "job.fire",
			slog.Int64("user_id", userID),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, component, "job.fire",
		slog.Int64("user_id", userID),
		slog.String("status", "ok"),
		slog.Duration("duration", logger.Took(start)),
	)
}

func (d *Daily) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].next.Equal(q[j].next) {
		return q[i].userID < q[j].userID
	}
	return q[i].next.Before(q[j].next)
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}
