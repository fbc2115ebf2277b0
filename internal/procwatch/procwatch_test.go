package procwatch

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

func TestMatches(t *testing.T) {
	f := NewFinder(WithLogger(logging.Discard()))

	tests := []struct {
		name    string
		exe     string
		cmdline []string
		want    bool
	}{
		{"neoforge client", "javaw.exe", []string{"javaw", "-cp", "x", "cpw.mods.bootstraplauncher.BootstrapLauncher"}, true},
		{"fabric on linux", "java", []string{"java", "net.fabricmc.loader.impl.launch.knot.KnotClient"}, true},
		{"case insensitive exe", "JAVAW.EXE", []string{"javaw", "net.minecraft.client.main.Main"}, true},
		{"unrelated java", "java", []string{"java", "-jar", "gradle-wrapper.jar"}, false},
		{"keyword in other exe", "bash", []string{"bash", "minecraft.sh"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Matches(tt.exe, tt.cmdline))
		})
	}
}

func TestCustomNamesAndKeywords(t *testing.T) {
	f := NewFinder(WithNames("sleep"), WithKeywords("3600"), WithLogger(logging.Discard()))
	assert.True(t, f.Matches("sleep", []string{"sleep", "3600"}))
	assert.False(t, f.Matches("java", []string{"java", "3600"}))
}

func TestIsAlive_CurrentProcess(t *testing.T) {
	f := NewFinder(WithLogger(logging.Discard()))
	h, err := Attach(context.Background(), int32(os.Getpid()))
	require.NoError(t, err)
	assert.True(t, f.IsAlive(context.Background(), h))
}

func TestIsAlive_NilHandle(t *testing.T) {
	f := NewFinder(WithLogger(logging.Discard()))
	assert.False(t, f.IsAlive(context.Background(), nil))
	assert.False(t, f.IsAlive(context.Background(), &Handle{PID: 1}))
}

func TestFind_NoClientInTestEnvironment(t *testing.T) {
	f := NewFinder(WithNames("definitely-not-a-real-exe"), WithLogger(logging.Discard()))
	_, found := f.Find(context.Background())
	assert.False(t, found)
}
