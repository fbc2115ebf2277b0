package pathutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/pathutil"
)

func TestNormalizeWorldName_Valid(t *testing.T) {
	valid := []string{"Test", "ATM10 Season 2", "my_world-1", "v1.0", "ワールド"}
	for _, name := range valid {
		got, err := pathutil.NormalizeWorldName(name)
		assert.NoError(t, err, "should accept: %s", name)
		assert.Equal(t, name, got)
	}
}

func TestNormalizeWorldName_NFC(t *testing.T) {
	decomposed := "Cafe\u0301"
	got, err := pathutil.NormalizeWorldName(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", got)
}

func TestNormalizeWorldName_Rejects(t *testing.T) {
	invalid := []string{
		"",
		"..",
		"a/b",
		`a\b`,
		"a:b",
		"what?",
		"hello\x00world",
		" padded",
		"trailing.",
		"con",
		strings.Repeat("x", pathutil.MaxNameLength+1),
	}
	for _, name := range invalid {
		_, err := pathutil.NormalizeWorldName(name)
		require.ErrorIs(t, err, errclass.ErrNameInvalid, "should reject: %q", name)
	}
}

func TestValidatePathSafety(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "saves"), 0755))

	assert.NoError(t, pathutil.ValidatePathSafety(root, filepath.Join(root, "saves", "Test")))
	assert.ErrorIs(t, pathutil.ValidatePathSafety(root, filepath.Join(root, "..", "elsewhere")), errclass.ErrNameInvalid)
}
