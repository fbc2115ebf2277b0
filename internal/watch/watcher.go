// Package watch tails the game log for the address the tunnel mod
// publishes once a world is opened to LAN.
package watch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

// DefaultPollInterval is the log poll tick.
const DefaultPollInterval = 500 * time.Millisecond

// DefaultPatterns ranks the e4mc address markers by confidence: the
// structured assignment line, then the chat announcement, then any bare
// hostname.
var DefaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Domain assigned:\s*([\w.-]+\.e4mc\.link)`),
	regexp.MustCompile(`Local game hosted on domain \[([\w.-]+\.e4mc\.link)\]`),
	regexp.MustCompile(`([a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*\.e4mc\.link)`),
}

// Watcher finds an address in a growing log file. A Watcher holds no
// per-watch state, so one value can serve any number of Watch calls.
type Watcher struct {
	patterns []*regexp.Regexp
	poll     time.Duration
	notify   bool
	log      *logging.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPatterns replaces the ranked pattern list. Each pattern's first
// capture group, or the whole match when it has none, is the address.
func WithPatterns(patterns ...*regexp.Regexp) Option {
	return func(w *Watcher) { w.patterns = patterns }
}

// WithPollInterval sets the poll tick.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithFileEvents enables filesystem notifications as an early wake-up in
// addition to polling.
func WithFileEvents(enabled bool) Option {
	return func(w *Watcher) { w.notify = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a Watcher with the default patterns and poll interval.
func New(opts ...Option) *Watcher {
	w := &Watcher{
		patterns: DefaultPatterns,
		poll:     DefaultPollInterval,
		notify:   true,
		log:      logging.Global(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// tail is the per-call read state.
type tail struct {
	path    string
	cursor  int64
	lastLen int64
	seen    bool
	pending []byte
}

// Watch polls path until an address is found, timeout elapses or ctx is
// done. found is false in the latter two cases.
//
// Content already in the file when the watch starts belongs to an earlier
// run and is skipped. A file that appears later, shrinks, or disappears and
// comes back is read from the beginning.
func (w *Watcher) Watch(ctx context.Context, path string, timeout time.Duration) (address string, found bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	wake, stop := w.fileEvents(path)
	defer stop()

	t := &tail{path: path}
	if info, err := os.Stat(path); err == nil {
		t.seen = true
		t.cursor = info.Size()
		t.lastLen = info.Size()
		w.log.Debug("log present, skipping existing content", map[string]any{"path": path, "bytes": info.Size()})
	} else {
		w.log.Info("waiting for game log", map[string]any{"path": path})
	}

	for {
		if addr, ok := w.scan(t); ok {
			w.log.Info("address detected", map[string]any{"address": addr})
			return addr, true
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-deadline.C:
			w.log.Warn("no address detected before timeout", map[string]any{"path": path, "timeout": timeout.String()})
			return "", false
		case <-ticker.C:
		case <-wake:
		}
	}
}

// scan reads whatever was appended since the last call and matches it.
func (w *Watcher) scan(t *tail) (string, bool) {
	info, err := os.Stat(t.path)
	if err != nil {
		if t.seen {
			w.log.Debug("log disappeared, resetting cursor", map[string]any{"path": t.path})
		}
		t.cursor, t.lastLen, t.pending = 0, 0, nil
		return "", false
	}
	if !t.seen {
		t.seen = true
		w.log.Info("game log found, watching for address", map[string]any{"path": t.path})
	}

	size := info.Size()
	if size < t.lastLen {
		w.log.Debug("log truncated, resetting cursor", map[string]any{"path": t.path, "was": t.lastLen, "now": size})
		t.cursor, t.pending = 0, nil
	}
	t.lastLen = size
	if size <= t.cursor {
		return "", false
	}

	chunk, err := readRange(t.path, t.cursor, size)
	if err != nil {
		return "", false
	}
	t.cursor += int64(len(chunk))

	content := append(t.pending, chunk...)
	// Keep an unterminated last line so a marker split across two writes
	// still matches once completed.
	if i := bytes.LastIndexByte(content, '\n'); i >= 0 {
		t.pending = append([]byte(nil), content[i+1:]...)
	} else {
		t.pending = append([]byte(nil), content...)
	}

	return Match(w.patterns, content)
}

func readRange(path string, from, to int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, to-from)
	n, err := f.ReadAt(buf, from)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// Match returns the address captured by the highest ranked pattern that
// matches any line of content.
func Match(patterns []*regexp.Regexp, content []byte) (string, bool) {
	lines := bytes.Split(content, []byte("\n"))
	for _, p := range patterns {
		for _, line := range lines {
			m := p.FindSubmatch(bytes.TrimRight(line, "\r"))
			if m == nil {
				continue
			}
			if len(m) > 1 {
				return string(m[1]), true
			}
			return string(m[0]), true
		}
	}
	return "", false
}

// fileEvents watches the log's directory and signals on changes to the log.
// The returned channel never fires when notifications are unavailable.
func (w *Watcher) fileEvents(path string) (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)
	if !w.notify {
		return wake, func() {}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return wake, func() {}
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return wake, func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return wake, func() {
		close(done)
		fw.Close()
	}
}
