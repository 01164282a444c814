//go:build !ios && !android && (amd64 || arm64)

package platform

import (
	"runtime"
	"testing"
)

func TestSupportsStructByValue(t *testing.T) {
	darwin := runtime.GOOS == "darwin" && (runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64")
	if SupportsStructByValue != darwin {
		t.Errorf("%s/%s: SupportsStructByValue = %v", runtime.GOOS, runtime.GOARCH, SupportsStructByValue)
	}
}

func TestIs64Bit(t *testing.T) {
	if !Is64Bit {
		t.Error("Platform should be 64-bit")
	}
}

func TestLibraryNaming(t *testing.T) {
	wantPrefix, wantExt := "lib", ".so"
	switch runtime.GOOS {
	case "darwin":
		wantExt = ".dylib"
	case "windows":
		wantPrefix, wantExt = "", ".dll"
	}
	if LibraryPrefix != wantPrefix {
		t.Errorf("LibraryPrefix = %q, want %q", LibraryPrefix, wantPrefix)
	}
	if LibraryExtension != wantExt {
		t.Errorf("LibraryExtension = %q, want %q", LibraryExtension, wantExt)
	}
}

func TestFormatLibraryName(t *testing.T) {
	tests := []struct {
		goos    string
		version int
		want    string
	}{
		{"linux", 3, "libcblite.so.3"},
		{"linux", 0, "libcblite.so"},
		{"freebsd", 3, "libcblite.so.3"},
		{"darwin", 3, "libcblite.3.dylib"},
		{"darwin", 0, "libcblite.dylib"},
		{"windows", 3, "cblite.dll"},
		{"windows", 0, "cblite.dll"},
	}

	for _, tt := range tests {
		got := formatLibraryName(tt.goos, "cblite", tt.version)
		if got != tt.want {
			t.Errorf("%s: formatLibraryName(cblite, %d) = %q, want %q", tt.goos, tt.version, got, tt.want)
		}
	}

	if got := FormatLibraryName("cblite", 3); got != formatLibraryName(runtime.GOOS, "cblite", 3) {
		t.Errorf("FormatLibraryName = %q", got)
	}
}
