package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altushkaso/mikufs/internal/config"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaultsWithNoFlagsOrFile(t *testing.T) {
	cfg, err := config.Load("", newFlagSet(t))
	require.NoError(t, err)

	assert.Equal(t, "ext4", cfg.FsType)
	assert.Equal(t, 4096, cfg.BlockSize)
	assert.Equal(t, config.LogLevel("info"), cfg.Log.Level)
}

func TestLoadPositionalArgsBecomeImageAndMountPoint(t *testing.T) {
	fs := newFlagSet(t, "--fs-type=ext2", "disk.img", "/mnt/x")
	cfg, err := config.Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, "ext2", cfg.FsType)
	assert.Equal(t, "disk.img", cfg.ImagePath)
	assert.Equal(t, "/mnt/x", cfg.MountPoint)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mikufs.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: nonsense\n"), 0o644))

	_, err := config.Load(cfgPath, newFlagSet(t))
	assert.Error(t, err)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mikufs.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("block-size: 2048\nread-only: true\n"), 0o644))

	cfg, err := config.Load(cfgPath, newFlagSet(t))
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.BlockSize)
	assert.True(t, cfg.ReadOnly)
}
