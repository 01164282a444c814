package cblgo

import (
	"errors"

	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/native"
	"github.com/obinnaokechukwu/cblgo/ref"
)

// Error is a native failure: operation, domain, code and message.
type Error = native.Error

// Common errors
var (
	// ErrNotLoaded indicates no native library is installed.
	ErrNotLoaded = errors.New("cblgo: native library not loaded; call Init or UseLibrary")

	// ErrUnsupportedPlatform indicates libcblite cannot be loaded on this platform.
	ErrUnsupportedPlatform = errors.New("cblgo: libcblite is not supported on this platform")

	// ErrIncompatibleVersion indicates the native library is too old or too new.
	ErrIncompatibleVersion = errors.New("cblgo: incompatible native library version")

	// ErrNilArgument indicates a required wrapper argument was nil.
	ErrNilArgument = errors.New("cblgo: nil argument")

	// ErrReleased indicates a wrapper was used after Release.
	ErrReleased = ref.ErrReleased

	// ErrLeakDetected matches leak findings of leakcheck.
	ErrLeakDetected = leakcheck.ErrLeakDetected

	// ErrConstruction matches failed constructors; no object was produced.
	ErrConstruction = native.ErrConstruction

	// ErrCall matches every other failed native call.
	ErrCall = native.ErrCall
)

// Well-known native errors, for errors.Is.
var (
	ErrNotFound = native.ErrNotFound
	ErrConflict = native.ErrConflict
	ErrNotOpen  = native.ErrNotOpen
	ErrBusy     = native.ErrBusy
)

// IsNotFound returns true if err is a native NotFound error.
func IsNotFound(err error) bool {
	return native.IsNotFound(err)
}

// IsConflict returns true if err is a native Conflict error.
func IsConflict(err error) bool {
	return native.IsConflict(err)
}

// ErrorCode returns the native error code from an error, or 0 if not a native error.
func ErrorCode(err error) int32 {
	return native.Code(err)
}
