package cblgo

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/memlite"
	"github.com/obinnaokechukwu/cblgo/native"
)

var testLib *memlite.Library

func TestMain(m *testing.M) {
	testLib = memlite.New()
	UseLibrary(testLib)
	os.Exit(m.Run())
}

// openTestDB opens a database in a temp dir, audited for leaks. The
// database is released before the audit ends.
func openTestDB(t *testing.T, name string) *Database {
	t.Helper()
	leakcheck.Verify(t, testLib)
	db, err := OpenDatabase(name, WithDirectory(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := db.Release(); err != nil && !errors.Is(err, ErrReleased) {
			t.Errorf("release %s: %v", name, err)
		}
	})
	return db
}

func TestLibraryNotLoaded(t *testing.T) {
	prev := UseLibrary(nil)
	defer UseLibrary(prev)

	assert.False(t, IsLoaded())
	_, err := OpenDatabase("nothing")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = NewDocument("x")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = InstanceCount()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = Version()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestVersion(t *testing.T) {
	v, err := Version()
	require.NoError(t, err)
	assert.Equal(t, 3, v.Major)
	assert.NoError(t, checkVersion(testLib))
}

type versionedLib struct {
	native.Library
	v native.Version
}

func (l versionedLib) Version() native.Version { return l.v }

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		v  native.Version
		ok bool
	}{
		{native.Version{Major: 3, Minor: 0, Patch: 0}, true},
		{native.Version{Major: 3, Minor: 1, Patch: 2}, true},
		{native.Version{Major: 2, Minor: 8, Patch: 0}, false},
		{native.Version{Major: 4}, false},
	}
	for _, tt := range tests {
		err := checkVersion(versionedLib{Library: testLib, v: tt.v})
		if tt.ok {
			assert.NoError(t, err, tt.v.String())
		} else {
			assert.ErrorIs(t, err, ErrIncompatibleVersion, tt.v.String())
		}
	}
}

func TestInstanceCountAndDump(t *testing.T) {
	db := openTestDB(t, "counted")

	doc, err := NewDocument("doc1")
	require.NoError(t, err)
	defer doc.Release()

	n, err := InstanceCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))

	var b strings.Builder
	require.NoError(t, DumpInstances(&b))
	assert.Contains(t, b.String(), "Document=1")
	assert.Contains(t, b.String(), `id="doc1"`)

	_ = db
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "debug", LogDebug.String())
	assert.Equal(t, "warning", LogWarning.String())
	assert.Equal(t, "none", LogNone.String())
	assert.Equal(t, "replicator", LogDomainReplicator.String())
}
