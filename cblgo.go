// Package cblgo provides leak-safe Go bindings to Couchbase Lite, an embedded
// document database with a reference-counted C API.
//
// Every native object is owned by a typed wrapper (Database, Document, Query,
// ResultSet, Replicator, ...) holding exactly one native reference. Release
// gives it back exactly once; any later use fails with ErrReleased instead of
// touching freed memory. Retain returns a second wrapper with its own
// reference.
//
// Native failures surface as *Error values carrying the native domain and
// code. Tests can assert that a unit of work returns every native object it
// created with leakcheck.Verify.
//
// Call Init to load libcblite, or UseLibrary to install another backend such
// as memlite:
//
//	if err := cblgo.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	db, err := cblgo.OpenDatabase("app", cblgo.WithDirectory(dir))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Release()
package cblgo

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/native"
)

// RequiredVersion is the oldest native library version the binding accepts.
var RequiredVersion = native.Version{Major: 3, Minor: 0, Patch: 0}

var (
	libMu  sync.RWMutex
	active native.Library
)

// UseLibrary installs lib as the backend for every constructor in this
// package and returns the previous one. Wrappers created earlier keep the
// library they were created with.
func UseLibrary(lib native.Library) native.Library {
	libMu.Lock()
	defer libMu.Unlock()
	prev := active
	active = lib
	if lib != nil {
		Logger().Debug("native library installed",
			zap.String("library", lib.Name()),
			zap.Stringer("version", lib.Version()))
	}
	return prev
}

// Library returns the installed backend, or ErrNotLoaded.
func Library() (native.Library, error) {
	libMu.RLock()
	defer libMu.RUnlock()
	if active == nil {
		return nil, ErrNotLoaded
	}
	return active, nil
}

// IsLoaded returns true if a backend is installed.
func IsLoaded() bool {
	_, err := Library()
	return err == nil
}

// Version returns the version of the installed backend.
func Version() (native.Version, error) {
	lib, err := Library()
	if err != nil {
		return native.Version{}, err
	}
	return lib.Version(), nil
}

func checkVersion(lib native.Library) error {
	v := lib.Version()
	if !v.Compatible(RequiredVersion) {
		return fmt.Errorf("%w: %s is %s, need %s or later 3.x",
			ErrIncompatibleVersion, lib.Name(), v, RequiredVersion)
	}
	return nil
}

// InstanceCount returns the number of live native objects in the process.
func InstanceCount() (int64, error) {
	lib, err := Library()
	if err != nil {
		return 0, err
	}
	return lib.InstanceCounts().Total(), nil
}

// DumpInstances writes the live native objects to w.
func DumpInstances(w io.Writer) error {
	lib, err := Library()
	if err != nil {
		return err
	}
	return leakcheck.Dump(lib, w)
}
