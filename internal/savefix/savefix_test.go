package savefix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

func writeLevelDat(t *testing.T, dir string, root map[string]any) string {
	t.Helper()
	data, err := encodeCompound(root, true)
	require.NoError(t, err)
	path := filepath.Join(dir, "level.dat")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

type levelOut struct {
	Data struct {
		LevelName string         `nbt:"LevelName"`
		Player    map[string]any `nbt:"Player"`
	} `nbt:"Data"`
}

func readLevelDat(t *testing.T, path string) levelOut {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	root, err := decodeCompound(raw, true)
	require.NoError(t, err)
	var out levelOut
	require.NoError(t, root["Data"].Unmarshal(&out.Data))
	return out
}

func TestFixLevelDat_RemovesPlayer(t *testing.T) {
	dir := t.TempDir()
	path := writeLevelDat(t, dir, map[string]any{
		"Data": map[string]any{
			"LevelName": "Test",
			"Player":    map[string]any{"Health": float32(20)},
		},
	})

	res, err := FixLevelDat(dir, logging.Discard())
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.FileExists(t, path+".bak")

	out := readLevelDat(t, path)
	assert.Equal(t, "Test", out.Data.LevelName)
	assert.Nil(t, out.Data.Player)

	backup := readLevelDat(t, path+".bak")
	assert.NotNil(t, backup.Data.Player, "backup keeps the original")
}

func TestFixLevelDat_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeLevelDat(t, dir, map[string]any{
		"Data": map[string]any{"LevelName": "Test", "Player": map[string]any{"XpLevel": int32(3)}},
	})

	_, err := FixLevelDat(dir, logging.Discard())
	require.NoError(t, err)
	res, err := FixLevelDat(dir, logging.Discard())
	require.NoError(t, err)
	assert.False(t, res.Removed)
}

func TestFixLevelDat_MissingIsNotAnError(t *testing.T) {
	res, err := FixLevelDat(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	assert.True(t, res.Missing)
}

func TestFixLevelDat_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level.dat"), []byte("not nbt"), 0644))

	_, err := FixLevelDat(dir, logging.Discard())
	assert.Error(t, err)
}

type serversOut struct {
	Servers []struct {
		Name string `nbt:"name"`
		IP   string `nbt:"ip"`
		Icon string `nbt:"icon"`
	} `nbt:"servers"`
}

func readServers(t *testing.T, path string) serversOut {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out serversOut
	require.NoError(t, nbt.Unmarshal(raw, &out))
	return out
}

func TestPublishConnectEntry_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance", "servers.dat")

	require.NoError(t, PublishConnectEntry(path, "foo.e4mc.link", ""))

	out := readServers(t, path)
	require.Len(t, out.Servers, 1)
	assert.Equal(t, DefaultLabel, out.Servers[0].Name)
	assert.Equal(t, "foo.e4mc.link", out.Servers[0].IP)
}

func TestPublishConnectEntry_ReplacesAndPreserves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.dat")
	initial, err := encodeCompound(map[string]any{
		"servers": []map[string]any{
			{"name": "Hypixel", "ip": "mc.hypixel.net", "icon": "aWNvbg=="},
			{"name": "ATM10 Session", "ip": "old.e4mc.link"},
		},
	}, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, initial, 0644))

	require.NoError(t, PublishConnectEntry(path, "new.e4mc.link", "ATM10 Session"))

	out := readServers(t, path)
	require.Len(t, out.Servers, 2)
	assert.Equal(t, "ATM10 Session", out.Servers[0].Name)
	assert.Equal(t, "new.e4mc.link", out.Servers[0].IP)
	assert.Equal(t, "Hypixel", out.Servers[1].Name)
	assert.Equal(t, "aWNvbg==", out.Servers[1].Icon)
}
