package ref

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/obinnaokechukwu/cblgo/native"
)

// countingLib is a minimal native.Library that only implements reference
// counting. Any other method panics through the nil embedded interface.
type countingLib struct {
	native.Library

	mu       sync.Mutex
	next     native.Ptr
	refs     map[native.Ptr]int
	kinds    map[native.Ptr]native.Kind
	retains  int
	releases int
}

func newCountingLib() *countingLib {
	return &countingLib{
		next:  0x1000,
		refs:  make(map[native.Ptr]int),
		kinds: make(map[native.Ptr]native.Kind),
	}
}

func (l *countingLib) create(k native.Kind) native.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next += 0x10
	l.refs[l.next] = 1
	l.kinds[l.next] = k
	return l.next
}

func (l *countingLib) Retain(p native.Ptr) native.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs[p] == 0 {
		panic("retain of dead object")
	}
	l.refs[p]++
	l.retains++
	return p
}

func (l *countingLib) Release(p native.Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs[p] == 0 {
		panic("release of dead object")
	}
	l.refs[p]--
	l.releases++
	if l.refs[p] == 0 {
		delete(l.refs, p)
		delete(l.kinds, p)
	}
}

func (l *countingLib) ErrorMessage(native.Status) string { return "" }

func (l *countingLib) refCount(p native.Ptr) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs[p]
}

func (l *countingLib) live(k native.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, kk := range l.kinds {
		if kk == k {
			n++
		}
	}
	return n
}

func acquireDB(t *testing.T, lib *countingLib) *Ref {
	t.Helper()
	r, err := Acquire(lib, native.KindDatabase, "open", func(*native.Status) native.Ptr {
		return lib.create(native.KindDatabase)
	})
	require.NoError(t, err)
	return r
}

func TestAcquireAndRelease(t *testing.T) {
	lib := newCountingLib()
	r := acquireDB(t, lib)

	assert.True(t, r.Owned())
	assert.False(t, r.Released())
	assert.Equal(t, native.KindDatabase, r.Kind())
	assert.Equal(t, 1, lib.live(native.KindDatabase))

	require.NoError(t, r.Release())
	assert.True(t, r.Released())
	assert.Equal(t, 0, lib.live(native.KindDatabase))
}

func TestAcquire_FailureNeverRetains(t *testing.T) {
	lib := newCountingLib()
	garbage := lib.create(native.KindDatabase) // a live object id sitting in the out slot

	r, err := Acquire(lib, native.KindDatabase, "open", func(st *native.Status) native.Ptr {
		st.Set(native.DomainCBL, native.CodeCantOpenFile)
		return garbage
	})
	require.Error(t, err)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, native.ErrConstruction)
	assert.Equal(t, 1, lib.refCount(garbage), "failed constructor output must not be retained or released")
	assert.Zero(t, lib.retains)
	assert.Zero(t, lib.releases)
}

func TestAcquireLookup_NotFound(t *testing.T) {
	lib := newCountingLib()
	_, err := AcquireLookup(lib, native.KindDocument, "get", func(*native.Status) native.Ptr { return 0 })
	assert.True(t, native.IsNotFound(err))
}

func TestDoubleReleaseFails(t *testing.T) {
	lib := newCountingLib()
	r := acquireDB(t, lib)

	require.NoError(t, r.Release())
	assert.ErrorIs(t, r.Release(), ErrReleased)
	assert.ErrorIs(t, r.Close(), ErrReleased)
	assert.Equal(t, 1, lib.releases, "native count must be decremented exactly once")
}

func TestUseAfterRelease(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	lib := newCountingLib()
	r := acquireDB(t, lib)
	require.NoError(t, r.Release())

	_, err := r.Borrow()
	assert.ErrorIs(t, err, ErrReleased)

	_, err = r.Retain()
	assert.ErrorIs(t, err, ErrReleased)

	assert.PanicsWithError(t, ErrReleased.Error(), func() { r.MustBorrow() })
	assert.Zero(t, lib.retains)
	assert.Equal(t, 1, lib.releases)

	assert.GreaterOrEqual(t, logs.FilterMessage("use after release").Len(), 3)
}

func TestRetainSharesLifetime(t *testing.T) {
	lib := newCountingLib()
	a := acquireDB(t, lib)
	h := a.MustBorrow()

	b, err := a.Retain()
	require.NoError(t, err)
	assert.Equal(t, 2, lib.refCount(h.Ptr()))

	require.NoError(t, a.Release())
	assert.Equal(t, 1, lib.live(native.KindDatabase), "copy keeps the object alive")

	hb, err := b.Borrow()
	require.NoError(t, err)
	assert.Equal(t, h, hb)

	require.NoError(t, b.Release())
	assert.Equal(t, 0, lib.live(native.KindDatabase))
}

func TestBorrowDoesNotTransferOwnership(t *testing.T) {
	lib := newCountingLib()
	r := acquireDB(t, lib)

	for i := 0; i < 3; i++ {
		h, err := r.Borrow()
		require.NoError(t, err)
		assert.Equal(t, native.KindDatabase, h.Kind())
	}
	assert.Zero(t, lib.retains)
	assert.Zero(t, lib.releases)

	require.NoError(t, r.Release())
	assert.Equal(t, 0, lib.live(native.KindDatabase))
}

func TestBorrowedRef(t *testing.T) {
	lib := newCountingLib()
	owner := acquireDB(t, lib)
	h := owner.MustBorrow()

	view := Borrowed(lib, h)
	assert.False(t, view.Owned())

	kept, err := view.Retain()
	require.NoError(t, err)
	assert.True(t, kept.Owned())

	require.NoError(t, view.Release())
	assert.Equal(t, 2, lib.refCount(h.Ptr()), "releasing a borrowed view leaves the count alone")
	_, err = view.Borrow()
	assert.ErrorIs(t, err, ErrReleased)

	require.NoError(t, owner.Release())
	require.NoError(t, kept.Release())
	assert.Equal(t, 0, lib.live(native.KindDatabase))
}

func TestAdoptAndRetainHandle(t *testing.T) {
	lib := newCountingLib()

	_, err := Adopt(lib, Handle{})
	assert.ErrorIs(t, err, ErrNilHandle)
	_, err = RetainHandle(lib, Handle{})
	assert.ErrorIs(t, err, ErrNilHandle)

	p := lib.create(native.KindDocument)
	adopted, err := Adopt(lib, NewHandle(p, native.KindDocument))
	require.NoError(t, err)
	assert.Equal(t, 1, lib.refCount(p))

	extra, err := RetainHandle(lib, NewHandle(p, native.KindDocument))
	require.NoError(t, err)
	assert.Equal(t, 2, lib.refCount(p))

	require.NoError(t, adopted.Release())
	require.NoError(t, extra.Release())
	assert.Equal(t, 0, lib.refCount(p))
}

func TestConcurrentReleaseDecrementsOnce(t *testing.T) {
	lib := newCountingLib()
	r := acquireDB(t, lib)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			errs <- r.Release()
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrReleased)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, lib.releases)
}

func TestLiveRefs(t *testing.T) {
	lib := newCountingLib()
	before := LiveRefs()
	r := acquireDB(t, lib)
	c, err := r.Retain()
	require.NoError(t, err)
	assert.Equal(t, before+2, LiveRefs())
	require.NoError(t, r.Release())
	require.NoError(t, c.Release())
	assert.Equal(t, before, LiveRefs())
}

func TestString(t *testing.T) {
	lib := newCountingLib()
	r := acquireDB(t, lib)
	assert.Contains(t, r.String(), "Database@0x")
	assert.Contains(t, r.String(), "owned")
	require.NoError(t, r.Release())
	assert.Contains(t, r.String(), "released")
	assert.Equal(t, "<nil ref>", (*Ref)(nil).String())
}

func leakOne(lib *countingLib) native.Ptr {
	r, _ := Acquire(lib, native.KindQuery, "create", func(*native.Status) native.Ptr {
		return lib.create(native.KindQuery)
	})
	return r.st.h.ptr
}

func TestLeakReclaim(t *testing.T) {
	SetLeakPolicy(LeakReclaim)
	defer SetLeakPolicy(LeakReport)

	lib := newCountingLib()
	before := LeakedCount()
	p := leakOne(lib)

	require.Eventually(t, func() bool {
		runtime.GC()
		return lib.refCount(p) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Greater(t, LeakedCount(), before)
}
