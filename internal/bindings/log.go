//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// LogFunc receives a native log message. domain and level are the
// CBLLogDomain and CBLLogLevel values.
type LogFunc func(domain, level uint8, message string)

var (
	logMu       sync.Mutex
	logFn       LogFunc
	logCallback uintptr
)

// SetLogCallback routes native log messages to fn at or above level.
// A nil fn detaches the callback.
func SetLogCallback(level uint8, fn LogFunc) error {
	if !loaded {
		return ErrNotLoaded
	}
	logMu.Lock()
	defer logMu.Unlock()

	logFn = fn
	if fn == nil {
		cblLogSetCallback(0)
		return nil
	}
	if logCallback == 0 {
		logCallback = purego.NewCallback(logTrampoline)
	}
	cblLogSetCBLevel(level)
	cblLogSetCallback(logCallback)
	return nil
}

// SetConsoleLevel sets the level of the library's own console logging.
func SetConsoleLevel(level uint8) error {
	if !loaded {
		return ErrNotLoaded
	}
	cblLogSetConsole(level)
	return nil
}

// logTrampoline receives the FLString message as two words.
// Signature: void (*)(CBLLogDomain domain, CBLLogLevel level, FLString message)
func logTrampoline(domain, level uintptr, buf unsafe.Pointer, size uintptr) {
	logMu.Lock()
	fn := logFn
	logMu.Unlock()
	if fn == nil {
		return
	}
	fn(uint8(domain), uint8(level), flSlice{buf: buf, size: size}.String())
}
