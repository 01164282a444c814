package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv(EnvBackend, "")
	t.Setenv(EnvLibDir, "")
	path := writeFile(t, "cblaudit.yaml", `
backend: memlite
directory: /tmp/audit
storage: bolt
log_level: debug
settle:
  retries: 3
  interval: 20ms
scenario:
  documents: 4
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemlite, cfg.Backend)
	assert.Equal(t, "/tmp/audit", cfg.Directory)
	assert.Equal(t, "bolt", cfg.Storage)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Settle.Retries)
	assert.Equal(t, 20*time.Millisecond, cfg.Settle.Interval)
	assert.Equal(t, 4, cfg.Scenario.Documents)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBackend, "LibCBLite")
	t.Setenv(EnvLibDir, "/opt/cbl/lib")
	path := writeFile(t, "c.yaml", "backend: memlite\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendLibCBLite, cfg.Backend)
	assert.Equal(t, "/opt/cbl/lib", cfg.LibraryDir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv(EnvBackend, "")
	cases := map[string]string{
		"backend":  "backend: sqlite\n",
		"storage":  "storage: disk\n",
		"level":    "log_level: loud\n",
		"settle":   "settle:\n  retries: -1\n",
		"not yaml": "backend: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "c.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv(EnvBackend, "")
	t.Setenv(EnvLibDir, "")
	path := filepath.Join(t.TempDir(), "out.yaml")

	cfg := DefaultConfig()
	cfg.Storage = "bolt"
	cfg.Settle.Retries = 2
	require.NoError(t, SaveConfig(cfg, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestGlobalFlags_Apply(t *testing.T) {
	cfg := DefaultConfig()
	g := GlobalFlags{Backend: "LIBCBLITE", LibDir: "/x", LogLevel: "error"}
	require.NoError(t, g.apply(cfg))
	assert.Equal(t, BackendLibCBLite, cfg.Backend)
	assert.Equal(t, "/x", cfg.LibraryDir)
	assert.Equal(t, "error", cfg.LogLevel)

	assert.Error(t, GlobalFlags{Backend: "other"}.apply(DefaultConfig()))
}
