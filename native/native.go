// Package native describes the boundary between Go and a Couchbase Lite style
// native library: opaque reference-counted object pointers, the per-call
// error record, the process-wide instance counters and the Library interface
// every backend implements.
//
// It also hosts the call adapter (Check, CheckPtr, Call, CallValue) which turns
// a native status record into a typed Go error at each call site. Raw status
// values never travel past this package.
package native

import (
	"fmt"
	"sort"
)

// Ptr is an opaque native object pointer. It is never dereferenced on the Go
// side. Zero is the null pointer.
type Ptr uintptr

// IsNil reports whether p is the null pointer.
func (p Ptr) IsNil() bool {
	return p == 0
}

// String formats the pointer as hex.
func (p Ptr) String() string {
	return fmt.Sprintf("0x%x", uintptr(p))
}

// Kind is the type tag of a reference-counted native object.
type Kind uint8

// Object kinds known to the binding.
const (
	KindUnknown Kind = iota
	KindDatabase
	KindDocument
	KindQuery
	KindResultSet
	KindReplicator
	KindEndpoint
	KindAuthenticator
	KindListenerToken

	// KindAll is the aggregate of every kind. Backends that only expose a
	// single process-wide counter (as libcblite does) report under it.
	KindAll Kind = 0xff
)

// Kinds lists every concrete object kind in declaration order.
var Kinds = []Kind{
	KindDatabase,
	KindDocument,
	KindQuery,
	KindResultSet,
	KindReplicator,
	KindEndpoint,
	KindAuthenticator,
	KindListenerToken,
}

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "Database"
	case KindDocument:
		return "Document"
	case KindQuery:
		return "Query"
	case KindResultSet:
		return "ResultSet"
	case KindReplicator:
		return "Replicator"
	case KindEndpoint:
		return "Endpoint"
	case KindAuthenticator:
		return "Authenticator"
	case KindListenerToken:
		return "ListenerToken"
	case KindAll:
		return "All"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Counts holds live native object counts per kind.
type Counts map[Kind]int64

// Get returns the count for k, zero if absent.
func (c Counts) Get(k Kind) int64 {
	return c[k]
}

// Total sums every concrete kind. If the counts only carry KindAll, that
// value is returned.
func (c Counts) Total() int64 {
	if n, ok := c[KindAll]; ok {
		return n
	}
	var n int64
	for k, v := range c {
		if k != KindAll {
			n += v
		}
	}
	return n
}

// Clone returns an independent copy.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// SortedKinds returns the kinds present in c in ascending order.
func (c Counts) SortedKinds() []Kind {
	kinds := make([]Kind, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Instance describes one live native object, as reported by DumpInstances.
type Instance struct {
	Kind     Kind
	Ptr      Ptr
	RefCount int32
	Detail   string
}

// String formats the instance for dumps.
func (i Instance) String() string {
	if i.Detail != "" {
		return fmt.Sprintf("%s %s refs=%d %s", i.Kind, i.Ptr, i.RefCount, i.Detail)
	}
	return fmt.Sprintf("%s %s refs=%d", i.Kind, i.Ptr, i.RefCount)
}
