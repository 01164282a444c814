// Package leakcheck audits native object lifetimes.
//
// An Auditor samples the process-wide live instance counters of a
// native.Library before and after a unit of work and reports every object
// kind whose count grew. The counters are process-wide, so audited units must
// not overlap: Run and Verify serialize them through a package lock. Native
// callers outside an audited unit are never blocked.
//
// A leak is reported as an error value (a *LeakError matching
// ErrLeakDetected). The auditor never aborts the process.
package leakcheck

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/obinnaokechukwu/cblgo/native"
)

var (
	// ErrLeakDetected matches every *LeakError.
	ErrLeakDetected = errors.New("leakcheck: native objects leaked")

	// ErrAlreadySampling is returned by Begin while a sample is open.
	ErrAlreadySampling = errors.New("leakcheck: sample already in progress")

	// ErrNotSampling is returned by End when no sample is open.
	ErrNotSampling = errors.New("leakcheck: no sample in progress")
)

// Sample is a snapshot of the live instance counters.
type Sample struct {
	Counts native.Counts
	Taken  time.Time
}

// Leak is one kind whose live count grew.
type Leak struct {
	Kind  native.Kind
	Delta int64
}

// String formats the leak as "Kind +n".
func (l Leak) String() string {
	return fmt.Sprintf("%s %+d", l.Kind, l.Delta)
}

// Delta is the per-kind change of live objects between two samples. Only
// non-zero entries are stored.
type Delta map[native.Kind]int64

func diff(before, after native.Counts, kinds []native.Kind) Delta {
	d := make(Delta)
	add := func(k native.Kind) {
		if n := after.Get(k) - before.Get(k); n != 0 {
			d[k] = n
		}
	}
	if len(kinds) > 0 {
		for _, k := range kinds {
			add(k)
		}
		return d
	}
	seen := make(map[native.Kind]bool, len(before)+len(after))
	for k := range before {
		seen[k] = true
	}
	for k := range after {
		seen[k] = true
	}
	for k := range seen {
		add(k)
	}
	return d
}

// IsZero reports whether no kind changed.
func (d Delta) IsZero() bool {
	return len(d) == 0
}

// Leaks returns the kinds with a net-positive change, sorted by kind.
func (d Delta) Leaks() []Leak {
	var out []Leak
	for k, n := range d {
		if n > 0 {
			out = append(out, Leak{Kind: k, Delta: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Err returns a *LeakError when any kind grew, nil otherwise.
func (d Delta) Err() error {
	leaks := d.Leaks()
	if len(leaks) == 0 {
		return nil
	}
	return &LeakError{Leaks: leaks}
}

// String formats the delta with kinds in ascending order.
func (d Delta) String() string {
	if len(d) == 0 {
		return "{}"
	}
	kinds := make([]native.Kind, 0, len(d))
	for k := range d {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s:%+d", k, d[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// LeakError lists the kinds that leaked during an audited unit.
type LeakError struct {
	Leaks []Leak
}

// Error implements the error interface.
func (e *LeakError) Error() string {
	parts := make([]string, len(e.Leaks))
	for i, l := range e.Leaks {
		parts[i] = l.String()
	}
	return "leakcheck: native objects leaked: " + strings.Join(parts, ", ")
}

// Is matches ErrLeakDetected.
func (e *LeakError) Is(target error) bool {
	return target == ErrLeakDetected
}

// Count returns the leaked count for k.
func (e *LeakError) Count(k native.Kind) int64 {
	for _, l := range e.Leaks {
		if l.Kind == k {
			return l.Delta
		}
	}
	return 0
}
