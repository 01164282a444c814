//go:build !ios && !android && (amd64 || arm64)

// Package platform reports what the purego backend can do on the running
// operating system and architecture, and how libcblite is named there.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"
)

// SupportsStructByValue indicates whether purego can return structs by value.
// Only Darwin amd64/arm64 supports this; elsewhere calls returning FLString or
// FLSliceResult cannot be registered.
const SupportsStructByValue = runtime.GOOS == "darwin" &&
	(runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64")

// Is64Bit indicates whether the platform is 64-bit.
// FLString is passed as two machine words, which relies on it.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
var LibraryPrefix string

func init() {
	LibraryPrefix, LibraryExtension = naming(runtime.GOOS)
}

func naming(goos string) (prefix, ext string) {
	switch goos {
	case "darwin":
		return "lib", ".dylib"
	case "windows":
		return "", ".dll"
	default:
		return "lib", ".so"
	}
}

// FormatLibraryName returns the platform-specific library filename.
// If version is 0, returns the unversioned library name.
//
// Examples:
//   - Linux:   FormatLibraryName("cblite", 3) -> "libcblite.so.3"
//   - macOS:   FormatLibraryName("cblite", 3) -> "libcblite.3.dylib"
//   - Windows: FormatLibraryName("cblite", 3) -> "cblite.dll"
func FormatLibraryName(name string, version int) string {
	return formatLibraryName(runtime.GOOS, name, version)
}

func formatLibraryName(goos, name string, version int) string {
	prefix, ext := naming(goos)
	switch {
	case version <= 0, goos == "windows":
		// Couchbase Lite ships an unversioned DLL.
		return prefix + name + ext
	case goos == "darwin":
		return fmt.Sprintf("%s%s.%d%s", prefix, name, version, ext)
	default:
		return fmt.Sprintf("%s%s%s.%d", prefix, name, ext, version)
	}
}

// GOOS returns the current operating system.
func GOOS() string {
	return runtime.GOOS
}

// GOARCH returns the current architecture.
func GOARCH() string {
	return runtime.GOARCH
}
