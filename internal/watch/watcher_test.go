package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

const testPoll = 10 * time.Millisecond

func newTestWatcher() *Watcher {
	return New(WithPollInterval(testPoll), WithFileEvents(false), WithLogger(logging.Discard()))
}

type result struct {
	addr  string
	found bool
}

func watchAsync(w *Watcher, path string, timeout time.Duration) <-chan result {
	ch := make(chan result, 1)
	go func() {
		addr, found := w.Watch(context.Background(), path, timeout)
		ch <- result{addr, found}
	}()
	return ch
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestMatch_PatternPriority(t *testing.T) {
	content := []byte(strings.Join([]string{
		"[Render thread/INFO]: visit backup.e4mc.link later",
		"[Server thread/INFO]: Local game hosted on domain [chat.e4mc.link]",
		"[e4mc/INFO]: Domain assigned: foo.e4mc.link",
	}, "\n"))

	addr, ok := Match(DefaultPatterns, content)
	require.True(t, ok)
	assert.Equal(t, "foo.e4mc.link", addr)

	addr, ok = Match(DefaultPatterns, content[:strings.Index(string(content), "[e4mc")])
	require.True(t, ok)
	assert.Equal(t, "chat.e4mc.link", addr)

	_, ok = Match(DefaultPatterns, []byte("nothing here\r\n"))
	assert.False(t, ok)
}

func TestMatch_BareHostnameFallback(t *testing.T) {
	addr, ok := Match(DefaultPatterns, []byte("tunnel up at quiet-river.sub.e4mc.link:25565\r\n"))
	require.True(t, ok)
	assert.Equal(t, "quiet-river.sub.e4mc.link", addr)
}

func TestWatch_DomainAssignedWinsOverFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	done := watchAsync(newTestWatcher(), path, 5*time.Second)

	time.Sleep(3 * testPoll)
	appendFile(t, path, "[chat] come join low.e4mc.link\n[e4mc] Domain assigned: foo.e4mc.link\n")

	r := <-done
	require.True(t, r.found)
	assert.Equal(t, "foo.e4mc.link", r.addr)
}

func TestWatch_TimeoutBound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	timeout := 200 * time.Millisecond

	start := time.Now()
	addr, found := newTestWatcher().Watch(context.Background(), path, timeout)
	elapsed := time.Since(start)

	assert.False(t, found)
	assert.Empty(t, addr)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+testPoll+500*time.Millisecond)
}

func TestWatch_TimeoutWithQuietLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendFile(t, path, "booting\n")
	done := watchAsync(newTestWatcher(), path, 150*time.Millisecond)

	appendFile(t, path, "still booting\n")
	r := <-done
	assert.False(t, r.found)
}

func TestWatch_SkipsContentPresentAtStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendFile(t, path, "Domain assigned: yesterday.e4mc.link\n")

	_, found := newTestWatcher().Watch(context.Background(), path, 100*time.Millisecond)
	assert.False(t, found)
}

func TestWatch_TruncationResetsCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendFile(t, path, "Domain assigned: old.e4mc.link\n"+strings.Repeat("x", 512)+"\n")
	done := watchAsync(newTestWatcher(), path, 5*time.Second)

	time.Sleep(3 * testPoll)
	require.NoError(t, os.WriteFile(path, []byte("launcher restarted\n"), 0644))
	time.Sleep(3 * testPoll)
	appendFile(t, path, "Local game hosted on domain [new.e4mc.link]\n")

	r := <-done
	require.True(t, r.found)
	assert.Equal(t, "new.e4mc.link", r.addr, "stale content must not be re-emitted")
}

func TestWatch_DisappearanceThenRecreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	appendFile(t, path, strings.Repeat("old line\n", 50))
	done := watchAsync(newTestWatcher(), path, 5*time.Second)

	time.Sleep(3 * testPoll)
	require.NoError(t, os.Remove(path))
	time.Sleep(3 * testPoll)
	appendFile(t, path, "Domain assigned: fresh.e4mc.link\n")

	r := <-done
	require.True(t, r.found)
	assert.Equal(t, "fresh.e4mc.link", r.addr)
}

func TestWatch_LineSplitAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	done := watchAsync(newTestWatcher(), path, 5*time.Second)

	time.Sleep(3 * testPoll)
	appendFile(t, path, "[e4mc] Domain assig")
	time.Sleep(3 * testPoll)
	appendFile(t, path, "ned: split.e4mc.link\n")

	r := <-done
	require.True(t, r.found)
	assert.Equal(t, "split.e4mc.link", r.addr)
}

func TestWatch_ContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(3 * testPoll)
		cancel()
	}()

	start := time.Now()
	_, found := newTestWatcher().Watch(ctx, path, time.Minute)
	assert.False(t, found)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWatch_FileEventsWakeUp(t *testing.T) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.Skipf("file notifications unavailable: %v", err)
	}
	fsw.Close()

	path := filepath.Join(t.TempDir(), "latest.log")
	w := New(WithPollInterval(time.Hour), WithLogger(logging.Discard()))
	done := watchAsync(w, path, 5*time.Second)

	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "Domain assigned: event.e4mc.link\n")

	select {
	case r := <-done:
		require.True(t, r.found)
		assert.Equal(t, "event.e4mc.link", r.addr)
	case <-time.After(6 * time.Second):
		t.Fatal("watch did not return")
	}
}
