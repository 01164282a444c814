package ref

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// LeakPolicy decides what the GC cleanup does with an owned Ref that became
// unreachable while still holding its reference.
type LeakPolicy int32

const (
	// LeakReport logs the leak and counts it. The native reference stays
	// held, so the leak auditor still sees it.
	LeakReport LeakPolicy = iota
	// LeakReclaim logs, counts and then releases the reference.
	LeakReclaim
)

var (
	leakPolicy  atomic.Int32
	leakedCount atomic.Int64
)

// SetLeakPolicy sets the policy applied to Refs collected without Release.
func SetLeakPolicy(p LeakPolicy) {
	leakPolicy.Store(int32(p))
}

// CurrentLeakPolicy returns the active policy.
func CurrentLeakPolicy() LeakPolicy {
	return LeakPolicy(leakPolicy.Load())
}

// LeakedCount returns how many Refs were garbage collected without Release.
func LeakedCount() int64 {
	return leakedCount.Load()
}

func cleanupLeaked(st *state) {
	if st.released.Load() {
		return
	}
	leakedCount.Add(1)
	reclaim := CurrentLeakPolicy() == LeakReclaim
	Logger().Warn("ref leaked",
		zap.Stringer("kind", st.h.kind),
		zap.Stringer("ptr", st.h.ptr),
		zap.Bool("reclaimed", reclaim))
	if reclaim && st.released.CompareAndSwap(false, true) {
		st.lib.Release(st.h.ptr)
		liveRefs.Add(-1)
	}
}
