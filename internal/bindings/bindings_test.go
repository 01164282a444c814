//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/obinnaokechukwu/cblgo/internal/handles"
	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/native"
)

func TestLibrarySearchPaths(t *testing.T) {
	t.Setenv(LibraryDirEnv, "/tmp/cbl-custom")

	paths := LibrarySearchPaths()
	if len(paths) == 0 {
		t.Fatal("LibrarySearchPaths should return at least one path")
	}
	if paths[0] != "/tmp/cbl-custom" {
		t.Errorf("%s should be searched first, got %q", LibraryDirEnv, paths[0])
	}
}

func TestCandidates(t *testing.T) {
	got := candidates("cblite", []int{3})
	if len(got) == 0 || len(got) > 2 {
		t.Fatalf("candidates = %v", got)
	}
	if !strings.Contains(got[0], "cblite") {
		t.Errorf("first candidate %q does not name cblite", got[0])
	}
	seen := map[string]bool{}
	for _, c := range got {
		if seen[c] {
			t.Errorf("duplicate candidate %q", c)
		}
		seen[c] = true
	}
}

func TestFindLibraryVersions(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(LibraryDirEnv, dir)

	fake := filepath.Join(dir, candidates("cbltest", []int{7})[0])
	if err := os.WriteFile(fake, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindLibrary("cbltest", []int{7})
	if err != nil {
		t.Fatalf("FindLibrary: %v", err)
	}
	if got != fake {
		t.Errorf("FindLibrary = %q, want %q", got, fake)
	}

	if _, err := FindLibrary("cbl-does-not-exist", []int{1}); !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("missing library: got %v", err)
	}
}

func TestDetectVersionFromHeader(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "include", "cbl"), 0o755); err != nil {
		t.Fatal(err)
	}
	header := "#define CBLITE_VERSION \"3.0.2\"\n#define CBLITE_BUILD_NUMBER 8\n"
	if err := os.WriteFile(filepath.Join(root, "include", "cbl", "CBL_Edition.h"), []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	v := detectVersion(filepath.Join(root, "lib", "libcblite.so.3"))
	if v.String() != "3.0.2-8" {
		t.Errorf("detectVersion = %s, want 3.0.2-8", v)
	}

	v = detectVersion(filepath.Join(t.TempDir(), "libcblite.so.3"))
	if v.Major != 3 || v.Minor != 0 {
		t.Errorf("detectVersion without header = %+v", v)
	}
}

func TestFLSlice(t *testing.T) {
	if p, n := flStr(""); p != nil || n != 0 {
		t.Errorf("empty string should be the null slice, got %v %d", p, n)
	}

	p, n := flStr("doc1")
	s := flSlice{buf: unsafe.Pointer(p), size: n}
	if s.String() != "doc1" {
		t.Errorf("String = %q", s.String())
	}
	if (flSlice{}).String() != "" {
		t.Error("null slice should read as empty")
	}

	ids := []string{"a", "bb", "ccc"}
	arr := make([]flSlice, len(ids))
	for i, id := range ids {
		p, n := flStr(id)
		arr[i] = flSlice{buf: unsafe.Pointer(p), size: n}
	}
	for i, want := range ids {
		if got := flStringAt(unsafe.Pointer(&arr[0]), i); got != want {
			t.Errorf("flStringAt(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestSetLogCallbackBeforeLoad(t *testing.T) {
	if IsLoaded() {
		t.Skip("libcblite already loaded")
	}
	if err := SetLogCallback(0, func(uint8, uint8, string) {}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("SetLogCallback = %v, want ErrNotLoaded", err)
	}
}

// stubListenerCalls replaces the listener and refcount entry points with
// counters for the duration of the test.
func stubListenerCalls(t *testing.T) (removes, releases *int) {
	t.Helper()
	add, remove, release := cblDatabaseAddListener, cblListenerRemove, cblRelease
	t.Cleanup(func() {
		cblDatabaseAddListener, cblListenerRemove, cblRelease = add, remove, release
	})
	removes, releases = new(int), new(int)
	cblDatabaseAddListener = func(db, cb, ctx uintptr) uintptr { return 0x7000 }
	cblListenerRemove = func(uintptr) { *removes++ }
	cblRelease = func(uintptr) { *releases++ }
	return removes, releases
}

func TestListenerToken_SingleNativeRelease(t *testing.T) {
	cases := []struct {
		name   string
		remove bool
		extra  int
	}{
		{"release", false, 0},
		{"remove then release", true, 0},
		{"retained", false, 1},
		{"retained remove then release", true, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			removes, releases := stubListenerCalls(t)
			lib := &Library{local: make(map[native.Ptr]*localObject)}
			before := handles.Count()

			called := 0
			token := lib.AddChangeListener(0x100, func(native.Ptr, []string) { called++ })
			if token.IsNil() {
				t.Fatal("AddChangeListener returned nil")
			}
			for i := 0; i < tc.extra; i++ {
				lib.Retain(token)
			}
			if tc.remove {
				lib.RemoveListener(token)
				if handles.Count() != before {
					t.Error("RemoveListener should detach the callback")
				}
			}
			for i := 0; i <= tc.extra; i++ {
				if *removes != 0 {
					t.Fatalf("listener removed with %d references left", tc.extra+1-i)
				}
				lib.Release(token)
			}

			if *removes != 1 {
				t.Errorf("CBLListener_Remove called %d times, want 1", *removes)
			}
			if *releases != 0 {
				t.Errorf("CBL_Release called %d times on a token, want 0", *releases)
			}
			if handles.Count() != before {
				t.Errorf("handles = %d, want %d", handles.Count(), before)
			}
			if called != 0 {
				t.Errorf("callback ran %d times", called)
			}
		})
	}
}

func requireCBLite(t *testing.T) *Library {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping libcblite test in short mode")
	}
	lib, err := Default()
	if err != nil {
		t.Skipf("libcblite not available: %v", err)
	}
	return lib
}

// Integration test - only runs if libcblite is available
func TestOpenDatabase(t *testing.T) {
	lib := requireCBLite(t)
	leakcheck.Verify(t, lib)

	var st native.Status
	db := lib.OpenDatabase("bindings_test", native.DatabaseConfig{Directory: t.TempDir()}, &st)
	if st.Failed() || db.IsNil() {
		t.Fatalf("OpenDatabase: %s", lib.ErrorMessage(st))
	}
	defer lib.Release(db)

	doc := lib.NewDocument("doc1")
	if !lib.SetDocumentJSON(doc, `{"n":1}`, &st) {
		t.Fatalf("SetDocumentJSON: %s", lib.ErrorMessage(st))
	}
	if !lib.SaveDocument(db, doc, native.FailOnConflict, &st) {
		t.Fatalf("SaveDocument: %s", lib.ErrorMessage(st))
	}
	lib.Release(doc)

	if n := lib.DatabaseCount(db); n != 1 {
		t.Errorf("DatabaseCount = %d, want 1", n)
	}
	if !lib.DeleteDatabase(db, &st) {
		t.Errorf("DeleteDatabase: %s", lib.ErrorMessage(st))
	}
}

func TestListenerTokenRefs(t *testing.T) {
	lib := requireCBLite(t)

	var st native.Status
	db := lib.OpenDatabase("listener_test", native.DatabaseConfig{Directory: t.TempDir()}, &st)
	if db.IsNil() {
		t.Fatalf("OpenDatabase: %s", lib.ErrorMessage(st))
	}
	defer lib.Release(db)

	token := lib.AddChangeListener(db, func(native.Ptr, []string) {})
	if token.IsNil() {
		t.Fatal("AddChangeListener returned nil")
	}
	lib.Retain(token)
	lib.Release(token)

	lib.mu.Lock()
	_, tracked := lib.local[token]
	lib.mu.Unlock()
	if !tracked {
		t.Fatal("token released while a reference remained")
	}

	lib.RemoveListener(token)
	lib.Release(token)
	lib.mu.Lock()
	_, tracked = lib.local[token]
	lib.mu.Unlock()
	if tracked {
		t.Error("token still tracked after the last release")
	}
}
