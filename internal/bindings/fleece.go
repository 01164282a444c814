//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"unsafe"

	"github.com/obinnaokechukwu/cblgo/native"
)

// flSlice is FLSlice / FLString / FLSliceResult.
type flSlice struct {
	buf  unsafe.Pointer
	size uintptr
}

func (s flSlice) String() string {
	if s.buf == nil || s.size == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(s.buf), s.size))
}

// take copies an FLSliceResult into Go memory and releases the native buffer.
func (s flSlice) take() string {
	str := s.String()
	if s.buf != nil {
		flBufRelease(s.buf)
	}
	return str
}

// flStr splits a Go string into FLString arguments. The empty string is the
// null slice.
func flStr(s string) (*byte, uintptr) {
	if s == "" {
		return nil, 0
	}
	return unsafe.StringData(s), uintptr(len(s))
}

// flStringAt reads element i of a native FLString array.
func flStringAt(arr unsafe.Pointer, i int) string {
	s := *(*flSlice)(unsafe.Add(arr, uintptr(i)*unsafe.Sizeof(flSlice{})))
	return s.String()
}

// databaseConfiguration is CBLDatabaseConfiguration (Community Edition).
type databaseConfiguration struct {
	directory flSlice
}

// replicatorStatus is CBLReplicatorStatus.
type replicatorStatus struct {
	activity uint8
	_        [3]byte
	complete float32
	docCount uint64
	err      native.Status
}

// replicatorConfiguration is CBLReplicatorConfiguration of the 3.0 headers.
type replicatorConfiguration struct {
	database            uintptr
	endpoint            uintptr
	replicatorType      uint8
	continuous          bool
	disableAutoPurge    bool
	maxAttempts         uint32
	maxAttemptWaitTime  uint32
	heartbeat           uint32
	authenticator       uintptr
	proxy               uintptr
	headers             uintptr
	pinnedServerCert    flSlice
	trustedRootCerts    flSlice
	channels            uintptr
	documentIDs         uintptr
	pushFilter          uintptr
	pullFilter          uintptr
	conflictResolver    uintptr
	context             uintptr
	acceptParentCookies bool
}

// newStringArray builds an FLMutableArray of strings. The caller releases it
// with flValueRelease. A nil or empty list yields 0.
func newStringArray(items []string) uintptr {
	if len(items) == 0 {
		return 0
	}
	arr := flMutableArrayNew()
	for _, item := range items {
		p, n := flStr(item)
		flSlotSetString(flMutableArrayAppend(arr), p, n)
	}
	return arr
}
