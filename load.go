//go:build !ios && !android && (amd64 || arm64)

package cblgo

import (
	"github.com/obinnaokechukwu/cblgo/internal/bindings"
)

// Init loads libcblite and installs it as the backend. It is safe to call
// multiple times.
func Init() error {
	lib, err := bindings.Default()
	if err != nil {
		return err
	}
	if err := checkVersion(lib); err != nil {
		return err
	}
	libMu.RLock()
	installed := active == lib
	libMu.RUnlock()
	if !installed {
		UseLibrary(lib)
	}
	return nil
}

func setNativeLogCallback(level LogLevel, fn func(domain LogDomain, level LogLevel, msg string)) error {
	if fn == nil {
		return bindings.SetLogCallback(uint8(level), nil)
	}
	return bindings.SetLogCallback(uint8(level), func(d, l uint8, msg string) {
		fn(LogDomain(d), LogLevel(l), msg)
	})
}

func setNativeConsoleLevel(level LogLevel) error {
	return bindings.SetConsoleLevel(uint8(level))
}
