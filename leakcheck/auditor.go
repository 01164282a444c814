package leakcheck

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

// State is the auditor's sampling state.
type State uint8

const (
	Idle State = iota
	Sampling
)

// String returns the state name.
func (s State) String() string {
	if s == Sampling {
		return "sampling"
	}
	return "idle"
}

// Option configures an Auditor.
type Option func(*config)

type config struct {
	kinds    []native.Kind
	retries  int
	interval time.Duration
	logger   *zap.Logger
}

// WithKinds restricts the audit to the given kinds. By default every kind
// the library reports is tracked.
func WithKinds(kinds ...native.Kind) Option {
	return func(c *config) {
		c.kinds = append([]native.Kind(nil), kinds...)
	}
}

// WithSettle makes End re-sample up to n more times, interval apart, while a
// leak is still visible. Use it when objects are released asynchronously,
// e.g. by a stopping replicator.
func WithSettle(n int, interval time.Duration) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.retries = n
		c.interval = interval
	}
}

// WithLogger sets the logger leaks are reported to. Defaults to Logger().
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Auditor measures the change of live native objects across a unit of work.
type Auditor struct {
	lib native.Library
	cfg config

	mu    sync.Mutex
	state State
}

// New returns an idle Auditor for lib.
func New(lib native.Library, opts ...Option) *Auditor {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = Logger()
	}
	return &Auditor{lib: lib, cfg: cfg}
}

// State returns the current state.
func (a *Auditor) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Begin takes the "before" sample and moves the auditor to Sampling.
func (a *Auditor) Begin() (Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Sampling {
		return Sample{}, ErrAlreadySampling
	}
	a.state = Sampling
	return a.sample(), nil
}

// End takes the "after" sample, returns the auditor to Idle and reports the
// delta against before. The error is a *LeakError when any tracked kind grew.
func (a *Auditor) End(before Sample) (Delta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Sampling {
		return nil, ErrNotSampling
	}
	a.state = Idle

	d := diff(before.Counts, a.sample().Counts, a.cfg.kinds)
	for i := 0; i < a.cfg.retries && d.Err() != nil; i++ {
		time.Sleep(a.cfg.interval)
		d = diff(before.Counts, a.sample().Counts, a.cfg.kinds)
	}

	err := d.Err()
	if err != nil {
		for _, l := range d.Leaks() {
			a.cfg.logger.Warn("leak detected",
				zap.String("library", a.lib.Name()),
				zap.Stringer("kind", l.Kind),
				zap.Int64("delta", l.Delta))
		}
	}
	return d, err
}

func (a *Auditor) sample() Sample {
	return Sample{Counts: a.lib.InstanceCounts().Clone(), Taken: time.Now()}
}
