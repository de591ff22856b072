package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomtxt/mtxt/config"
)

func TestDefaultHasSaneKnobs(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 480, cfg.TicksPerQuarter)
	assert.Equal(t, 0.8, cfg.DefaultVelocity)
	assert.Equal(t, 1.0, cfg.DefaultOffVelocity)
	assert.Equal(t, 2.0, cfg.PitchBendRange)
}

func TestLoadOverlaysOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mtxt.yml")
	require.NoError(t, os.WriteFile(path, []byte("indent: 12\nmerge_notes: true\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Indent)
	assert.True(t, cfg.MergeNotes)
	// untouched fields keep their Default() value.
	assert.Equal(t, 480, cfg.TicksPerQuarter)
	assert.Equal(t, 0.8, cfg.DefaultVelocity)
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadOrDefaultFallsBackWhenMissing(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadOrDefaultReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mtxt.yml")
	require.NoError(t, os.WriteFile(path, []byte("indent: 4\n"), 0o644))

	cfg, err := config.LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Indent)
}
