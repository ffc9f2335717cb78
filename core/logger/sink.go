package logger

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	coreconfig "github.com/m3rciful/meditationbot/core/config"
)

var errSinkClosed = errors.New("logger: sink closed")

// sink writes each line to every output under one lock so lines never interleave.
type sink struct {
	mu      sync.Mutex
	outs    []io.Writer
	closers []io.Closer
	closed  bool
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errSinkClosed
	}
	var first error
	for _, w := range s.outs {
		if _, err := w.Write(p); err != nil && first == nil {
			first = err
		}
	}
	return len(p), first
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sampler lets num out of every den events through. A zero ratio passes everything.
type sampler struct {
	num  atomic.Int64
	den  atomic.Int64
	seen atomic.Uint64
}

func newSampler(num, den int) *sampler {
	s := &sampler{}
	s.set(num, den)
	return s
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	if num > den {
		num = den
	}
	s.num.Store(int64(num))
	s.den.Store(int64(den))
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	den := s.den.Load()
	if den <= 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return int64(n%uint64(den)) < s.num.Load()
}

// parseSample reads logging.debug_sample: "n/d", "d" (meaning 1/d) or "0"/"off"
// to log every event. Anything else keeps the 1/50 default.
func parseSample(cfg *coreconfig.Config) (int, int) {
	if cfg == nil {
		return 1, 50
	}
	spec := strings.ToLower(strings.TrimSpace(cfg.Logging.DebugSample))
	switch spec {
	case "":
		return 1, 50
	case "0", "off", "all":
		return 0, 0
	}
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 == nil && err2 == nil && num > 0 && den > 0 {
			return num, den
		}
		return 1, 50
	}
	if den, err := strconv.Atoi(spec); err == nil && den > 0 {
		return 1, den
	}
	return 1, 50
}
