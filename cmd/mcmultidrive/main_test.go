package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the command into a temp dir.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}
	binPath := filepath.Join(t.TempDir(), "mcmultidrive-test")
	build := exec.Command("go", "build", "-o", binPath, ".")
	output, err := build.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))
	return binPath
}

func TestExecute(t *testing.T) {
	binPath := buildBinary(t)
	info, err := os.Stat(binPath)
	require.NoError(t, err)
	assert.True(t, info.Mode()&0111 != 0, "binary should be executable")
}

func TestMainHelpFlag(t *testing.T) {
	binPath := buildBinary(t)
	out, err := exec.Command(binPath, "--help").CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(out), "mcmultidrive")
	assert.Contains(t, string(out), "Minecraft world")
}

func TestMainUnknownCommand(t *testing.T) {
	binPath := buildBinary(t)
	out, err := exec.Command(binPath, "unknown-command-xyz").CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(string(out)), "unknown")
}

func TestMainMissingSharedConfig(t *testing.T) {
	binPath := buildBinary(t)
	cmd := exec.Command(binPath, "--no-color", "--config-dir", t.TempDir(), "list")
	out, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(out), "shared_config.{yaml,yml,toml,json} not found")
}

func TestMainConfigDirFromEnv(t *testing.T) {
	binPath := buildBinary(t)
	dir := t.TempDir()
	cmd := exec.Command(binPath, "--no-color", "list")
	cmd.Env = append(os.Environ(), "MCMD_CONFIG_DIR="+dir)
	out, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(out), dir)
}
