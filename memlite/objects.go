package memlite

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

const (
	firstID = native.Ptr(0x1000)
	idStep  = 0x10
)

// freer is implemented by object values that hold references to other
// objects or to storage. free runs once, after the last release, with no
// lock held.
type freer interface {
	free(l *Library)
}

// describer adds detail to instance dumps.
type describer interface {
	describe() string
}

type object struct {
	kind  native.Kind
	refs  int32
	value any
}

// objectTable maps object ids to values. Ids grow monotonically and are
// never reused.
type objectTable struct {
	mu      sync.RWMutex
	next    native.Ptr
	entries map[native.Ptr]*object
	live    map[native.Kind]int64
}

func (t *objectTable) init() {
	t.next = firstID
	t.entries = make(map[native.Ptr]*object)
	t.live = make(map[native.Kind]int64)
}

func (t *objectTable) create(kind native.Kind, value any) native.Ptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.next
	t.next += idStep
	t.entries[p] = &object{kind: kind, refs: 1, value: value}
	t.live[kind]++
	return p
}

// newObject registers value with one reference owned by the caller.
func (l *Library) newObject(kind native.Kind, value any) native.Ptr {
	p := l.objects.create(kind, value)
	l.log.Debug("object created", zap.Stringer("kind", kind), zap.Stringer("ptr", p))
	return p
}

// get returns the value of a live object of the given kind. An unknown, freed
// or mistyped pointer is a defect.
func (l *Library) get(op string, p native.Ptr, kind native.Kind) any {
	l.objects.mu.RLock()
	o, ok := l.objects.entries[p]
	l.objects.mu.RUnlock()
	if !ok {
		l.defect(op, p, kind, "unknown or freed object")
	}
	if o.kind != kind {
		l.defect(op, p, kind, "object is a "+o.kind.String())
	}
	return o.value
}

// kindOf returns the kind of a live object, or KindUnknown.
func (l *Library) kindOf(p native.Ptr) native.Kind {
	l.objects.mu.RLock()
	defer l.objects.mu.RUnlock()
	if o, ok := l.objects.entries[p]; ok {
		return o.kind
	}
	return native.KindUnknown
}

func (l *Library) defect(op string, p native.Ptr, kind native.Kind, msg string) {
	err := &native.DefectError{Op: op, Ptr: p, Kind: kind, Msg: msg}
	l.log.Error("reference counting defect", zap.Error(err), zap.Stack("stack"))
	panic(err)
}

// Retain implements native.Library.
func (l *Library) Retain(p native.Ptr) native.Ptr {
	l.objects.mu.Lock()
	o, ok := l.objects.entries[p]
	if ok {
		o.refs++
	}
	l.objects.mu.Unlock()
	if !ok {
		l.defect("CBL_Retain", p, native.KindUnknown, "unknown or freed object")
	}
	return p
}

// Release implements native.Library.
func (l *Library) Release(p native.Ptr) {
	if p.IsNil() {
		return
	}
	l.objects.mu.Lock()
	o, ok := l.objects.entries[p]
	if !ok {
		l.objects.mu.Unlock()
		l.defect("CBL_Release", p, native.KindUnknown, "unknown or freed object")
	}
	o.refs--
	freed := o.refs == 0
	if freed {
		delete(l.objects.entries, p)
		l.objects.live[o.kind]--
	}
	l.objects.mu.Unlock()

	if !freed {
		return
	}
	l.log.Debug("object freed", zap.Stringer("kind", o.kind), zap.Stringer("ptr", p))
	if f, ok := o.value.(freer); ok {
		f.free(l)
	}
}

// InstanceCounts implements native.Library. Every kind is present, zero or
// not.
func (l *Library) InstanceCounts() native.Counts {
	l.objects.mu.RLock()
	defer l.objects.mu.RUnlock()
	c := make(native.Counts, len(native.Kinds))
	for _, k := range native.Kinds {
		c[k] = l.objects.live[k]
	}
	return c
}

// DumpInstances implements native.Library. Instances are ordered by id,
// which is creation order.
func (l *Library) DumpInstances() []native.Instance {
	l.objects.mu.RLock()
	out := make([]native.Instance, 0, len(l.objects.entries))
	values := make([]any, 0, len(l.objects.entries))
	for p, o := range l.objects.entries {
		out = append(out, native.Instance{Kind: o.kind, Ptr: p, RefCount: o.refs})
		values = append(values, o.value)
	}
	l.objects.mu.RUnlock()

	l.mu.Lock()
	for i, v := range values {
		if d, ok := v.(describer); ok {
			out[i].Detail = d.describe()
		}
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ptr < out[j].Ptr })
	return out
}

// RefCount returns the reference count of a live object, or zero.
func (l *Library) RefCount(p native.Ptr) int32 {
	l.objects.mu.RLock()
	defer l.objects.mu.RUnlock()
	if o, ok := l.objects.entries[p]; ok {
		return o.refs
	}
	return 0
}
