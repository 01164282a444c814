package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo"
	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/native"
)

func memliteConfig(t *testing.T, storage string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Directory = t.TempDir()
	cfg.Storage = storage
	require.NoError(t, cfg.Validate())
	return cfg
}

func useBackend(t *testing.T, cfg *Config) native.Library {
	t.Helper()
	prev := cblgo.UseLibrary(nil)
	t.Cleanup(func() { cblgo.UseLibrary(prev) })
	lib, err := openBackend(cfg, zap.NewNop())
	require.NoError(t, err)
	return lib
}

func TestRunScenario_Balanced(t *testing.T) {
	for _, storage := range []string{"memory", "bolt"} {
		t.Run(storage, func(t *testing.T) {
			cfg := memliteConfig(t, storage)
			cfg.Scenario.Documents = 3
			lib := useBackend(t, cfg)

			res, err := runScenario(lib, cfg, false, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, "memlite", res.Backend)
			assert.False(t, res.Leaked())
			assert.Zero(t, res.Forgotten)
			assert.Empty(t, res.Error)
			assert.Zero(t, lib.InstanceCounts().Total())
		})
	}
}

func TestRunScenario_Forgotten(t *testing.T) {
	cfg := memliteConfig(t, "memory")
	cfg.Scenario.Documents = 2
	lib := useBackend(t, cfg)

	res, err := runScenario(lib, cfg, true, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, leakcheck.ErrLeakDetected)
	assert.True(t, res.Leaked())
	assert.Equal(t, 2, res.Forgotten)
	assert.Contains(t, res.Leaks, LeakEntry{Kind: "Document", Delta: 2})
	assert.NotEmpty(t, res.Error)

	// held documents are released once the audit has been taken
	assert.Zero(t, lib.InstanceCounts().Total())
}

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv(EnvBackend, "")
	prev := cblgo.UseLibrary(nil)
	t.Cleanup(func() { cblgo.UseLibrary(prev) })

	dir := t.TempDir()
	assert.Equal(t, ExitOK, run([]string{"--quiet", "--backend", "memlite", "scenario", "--dir", dir}))
	assert.Equal(t, ExitLeak, run([]string{"--json", "--backend", "memlite", "scenario", "--dir", dir, "--leak"}))
	assert.Equal(t, ExitConfig, run([]string{"--backend", "nope", "counts"}))
	assert.Equal(t, ExitUsage, run([]string{"--backend", "memlite", "frobnicate"}))
	assert.Equal(t, ExitUsage, run(nil))
	assert.Equal(t, ExitOK, run([]string{"--backend", "memlite", "version"}))
}

func TestRunInit(t *testing.T) {
	t.Setenv(EnvBackend, "")
	t.Setenv(EnvLibDir, "")
	path := t.TempDir() + "/cblaudit.yaml"

	assert.Equal(t, ExitOK, run([]string{"--quiet", "--config", path, "init"}))
	assert.Equal(t, ExitConfig, run([]string{"--config", path, "init"}))
	assert.Equal(t, ExitOK, run([]string{"--quiet", "--config", path, "init", "--force"}))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemlite, cfg.Backend)
}
