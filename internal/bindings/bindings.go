//go:build !ios && !android && (amd64 || arm64)

// Package bindings loads the Couchbase Lite C library (libcblite) with purego
// and exposes it as a native.Library.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/cblgo/internal/platform"
	"github.com/obinnaokechukwu/cblgo/native"
)

// ErrNotLoaded is returned when libcblite is used before Load.
var ErrNotLoaded = errors.New("cblgo: libcblite not loaded; call cblgo.Init() first")

// ErrLibraryNotFound is returned when libcblite cannot be found.
var ErrLibraryNotFound = errors.New("cblgo: libcblite not found")

// ErrSymbolNotFound is returned when the library lacks a required function.
var ErrSymbolNotFound = errors.New("cblgo: libcblite symbol not found")

// LibraryDirEnv names a directory searched before every other location.
const LibraryDirEnv = "CBLGO_LIB_DIR"

const libName = "cblite"

var libVersions = []int{3}

var (
	libCBLite uintptr
	libPath   string
	instance  *Library

	loaded   bool
	loadOnce sync.Once
	loadErr  error
)

// IsLoaded returns true if libcblite has been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// Load loads libcblite and registers all function bindings.
// It is safe to call multiple times; subsequent calls are no-ops.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	var err error
	libCBLite, libPath, err = loadLibrary(libName, libVersions)
	if err != nil {
		return fmt.Errorf("loading libcblite: %w", err)
	}
	if err := registerSymbols(libCBLite); err != nil {
		return err
	}
	changeCallback = purego.NewCallback(changeTrampoline)

	instance = &Library{
		path:    libPath,
		version: detectVersion(libPath),
		local:   make(map[native.Ptr]*localObject),
	}
	return nil
}

// Default returns the process-wide libcblite backend, loading it if needed.
func Default() (*Library, error) {
	if err := Load(); err != nil {
		return nil, err
	}
	return instance, nil
}

// loadLibrary attempts to load a library by trying versioned names in every
// search path, then by bare name. It returns the handle and the path used.
func loadLibrary(name string, versions []int) (uintptr, string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, candidate := range candidates(name, versions) {
			fullPath := filepath.Join(searchPath, candidate)
			if lib, err := tryOpen(fullPath); err == nil {
				return lib, fullPath, nil
			}
		}
	}

	// Let the system loader search.
	for _, candidate := range candidates(name, versions) {
		if lib, err := tryOpen(candidate); err == nil {
			return lib, candidate, nil
		}
	}

	return 0, "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// candidates lists file names to try, most specific first.
func candidates(name string, versions []int) []string {
	out := make([]string, 0, len(versions)+1)
	for _, ver := range versions {
		out = append(out, platform.FormatLibraryName(name, ver))
	}
	unversioned := platform.FormatLibraryName(name, 0)
	if len(out) == 0 || out[len(out)-1] != unversioned {
		out = append(out, unversioned)
	}
	return out
}

// tryOpen attempts to open a library with RTLD_NOW | RTLD_GLOBAL.
func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// FindLibrary searches for a library and returns its full path.
// This is useful for diagnostics.
func FindLibrary(name string, versions []int) (string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, candidate := range candidates(name, versions) {
			fullPath := filepath.Join(searchPath, candidate)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// FindCBLite returns the path libcblite would be loaded from.
func FindCBLite() (string, error) {
	return FindLibrary(libName, libVersions)
}

// LibrarySearchPaths returns platform-specific library search paths.
// CBLGO_LIB_DIR, when set, comes first.
func LibrarySearchPaths() []string {
	var paths []string
	if dir := os.Getenv(LibraryDirEnv); dir != "" {
		paths = append(paths, dir)
	}

	switch runtime.GOOS {
	case "linux":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib",
			"/opt/couchbase-lite-c/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib", // Apple Silicon
			"/usr/local/lib",    // Intel
			"/opt/couchbase-lite-c/lib",
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		paths = append(paths, "C:\\Program Files\\Couchbase Lite C\\bin")

	case "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib",
		)
	}

	return paths
}

// detectVersion reads CBL_Edition.h from the include directory shipped next
// to the library. The C API has no runtime version call, so without the
// header only the major version from the file name is known.
func detectVersion(path string) native.Version {
	header := filepath.Join(filepath.Dir(path), "..", "include", "cbl", "CBL_Edition.h")
	if f, err := os.Open(header); err == nil {
		defer f.Close()
		if v, err := native.ParseEditionHeader(f); err == nil {
			return v
		}
	}
	return native.Version{Major: libVersions[0]}
}

// LibCBLite returns the libcblite library handle.
func LibCBLite() uintptr {
	return libCBLite
}

// LibraryPath returns the path libcblite was loaded from.
func LibraryPath() string {
	return libPath
}
