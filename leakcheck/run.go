package leakcheck

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/obinnaokechukwu/cblgo/native"
)

// unitMu serializes audited units. The counters are process-wide, so two
// overlapping units would see each other's objects.
var unitMu sync.Mutex

// verified holds the tests with an open Verify unit, and runHeld is set
// while a Run holds unitMu. Both are guarded by stateMu.
var (
	stateMu  sync.Mutex
	verified = map[testing.TB]bool{}
	runHeld  bool
)

// Run executes fn as an audited unit. It returns fn's error joined with a
// *LeakError if any tracked kind grew.
//
// Concurrent Runs are serialized. A Run started while a test holds a Verify
// unit is nested in it: it takes its own samples without the lock, so a
// test may assert on a sub-unit of work.
func Run(lib native.Library, fn func() error, opts ...Option) error {
	stateMu.Lock()
	nested := len(verified) > 0
	stateMu.Unlock()
	if !nested {
		unitMu.Lock()
		stateMu.Lock()
		runHeld = true
		stateMu.Unlock()
		defer func() {
			stateMu.Lock()
			runHeld = false
			stateMu.Unlock()
			unitMu.Unlock()
		}()
	}

	a := New(lib, opts...)
	before, err := a.Begin()
	if err != nil {
		return err
	}
	ferr := fn()
	_, lerr := a.End(before)
	return errors.Join(ferr, lerr)
}

// Verify makes the rest of the test an audited unit. The "after" sample is
// taken in a t.Cleanup registered now, so cleanups registered later (which
// run first) may release objects the test still holds. The test fails with
// an instance dump on leak.
//
// A second Verify on the same test is a no-op. Verify in a subtest of a
// verified test opens a nested unit with its own samples. Only the outermost
// unit holds the audit lock, until its test ends, so tests using Verify must
// not call t.Parallel. Verify must not be called from inside Run.
func Verify(t testing.TB, lib native.Library, opts ...Option) {
	t.Helper()

	stateMu.Lock()
	if verified[t] {
		stateMu.Unlock()
		return
	}
	if runHeld {
		stateMu.Unlock()
		t.Fatalf("leakcheck: %v", ErrAlreadySampling)
		return
	}
	outer := len(verified) == 0
	stateMu.Unlock()

	if outer {
		unitMu.Lock()
	}
	stateMu.Lock()
	verified[t] = true
	stateMu.Unlock()
	done := func() {
		stateMu.Lock()
		delete(verified, t)
		stateMu.Unlock()
		if outer {
			unitMu.Unlock()
		}
	}

	a := New(lib, opts...)
	before, err := a.Begin()
	if err != nil {
		done()
		t.Fatalf("leakcheck: %v", err)
		return
	}
	t.Cleanup(func() {
		defer done()
		d, err := a.End(before)
		if err == nil {
			return
		}
		var b strings.Builder
		_ = Dump(lib, &b)
		t.Errorf("%v\ndelta: %s\n%s", err, d, b.String())
	})
}

// Dump writes the live instance counters and, when the library supports it,
// every live object to w.
func Dump(lib native.Library, w io.Writer) error {
	counts := lib.InstanceCounts()
	if _, err := fmt.Fprintf(w, "%s live instances:", lib.Name()); err != nil {
		return err
	}
	for _, k := range counts.SortedKinds() {
		if _, err := fmt.Fprintf(w, " %s=%d", k, counts[k]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	instances := lib.DumpInstances()
	if instances == nil {
		_, err := fmt.Fprintln(w, "  (instance dump not supported)")
		return err
	}
	for _, inst := range instances {
		if _, err := fmt.Fprintf(w, "  %s\n", inst); err != nil {
			return err
		}
	}
	return nil
}
