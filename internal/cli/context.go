package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"

	"github.com/harupipipipi/mcmultidrive/internal/doctor"
	"github.com/harupipipipi/mcmultidrive/internal/journal"
	"github.com/harupipipipi/mcmultidrive/internal/lock"
	"github.com/harupipipipi/mcmultidrive/internal/procwatch"
	"github.com/harupipipipi/mcmultidrive/internal/rclone"
	"github.com/harupipipipi/mcmultidrive/internal/savefix"
	"github.com/harupipipipi/mcmultidrive/internal/session"
	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/internal/upkeep"
	"github.com/harupipipipi/mcmultidrive/internal/watch"
	"github.com/harupipipipi/mcmultidrive/internal/world"
	"github.com/harupipipipi/mcmultidrive/pkg/config"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/progress"
	"github.com/harupipipipi/mcmultidrive/pkg/webhook"
)

// Deps constructs the adapters to systems outside the process.
type Deps struct {
	Remote  func(wc *config.WorldConfig, log *logging.Logger, cb progress.Callback) world.Remote
	Procs   func(log *logging.Logger) session.ProcessWatcher
	Watcher func(wc *config.WorldConfig, log *logging.Logger) session.AddressWatcher
	Clock   upkeep.Clock
	// Clipboard receives OSC 52 sequences; nil disables the mirror.
	Clipboard io.Writer
	// DoctorOptions adjust how doctor checks rclone and the status store.
	DoctorOptions []doctor.Option
}

// DefaultDeps wires rclone, gopsutil and the log watcher.
func DefaultDeps() Deps {
	d := Deps{
		Remote: func(wc *config.WorldConfig, log *logging.Logger, cb progress.Callback) world.Remote {
			return rclone.New(rclone.Options{
				Binary:        wc.RclonePath,
				ConfigPath:    wc.RcloneConfigPath,
				RemoteName:    wc.RemoteName,
				DriveFolderID: wc.DriveFolderID,
			}, rclone.WithLogger(log), rclone.WithProgress(cb))
		},
		Procs: func(log *logging.Logger) session.ProcessWatcher {
			return procwatch.NewFinder(procwatch.WithLogger(log))
		},
		Watcher: func(wc *config.WorldConfig, log *logging.Logger) session.AddressWatcher {
			return watch.New(watch.WithPollInterval(wc.Timings.LogPoll.Std()), watch.WithLogger(log))
		},
		Clock: upkeep.RealClock,
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		d.Clipboard = os.Stdout
	}
	return d
}

func (a *app) loadWorld(name string) (*config.WorldConfig, error) {
	return config.Build(a.configDir(), name)
}

func (a *app) loadShared() (*config.Shared, error) {
	return config.LoadShared(a.configDir())
}

func (a *app) store(url string, timings config.Timings) *statusstore.Client {
	return statusstore.NewClient(url, timings.StatusTimeout.Std(), statusstore.WithLogger(a.log))
}

// worldService builds the service for commands scoped to one world.
func (a *app) worldService(wc *config.WorldConfig) *world.Service {
	return world.New(a.store(wc.StatusURL, wc.Timings), a.deps.Remote(wc, a.log, a.progressBar()), savefix.Editor{Log: a.log}, world.WithLogger(a.log))
}

// sharedService builds the service for commands that need no personal
// settings. Remote operations use the shared rclone settings.
func (a *app) sharedService(shared *config.Shared) *world.Service {
	binary, confPath := shared.Rclone(a.configDir())
	wc := &config.WorldConfig{
		StatusURL:        shared.StatusURL,
		RemoteName:       shared.RemoteName,
		DriveFolderID:    shared.DriveFolderID,
		RclonePath:       binary,
		RcloneConfigPath: confPath,
		Timings:          shared.Timings,
	}
	return world.New(a.store(shared.StatusURL, shared.Timings), a.deps.Remote(wc, a.log, a.progressBar()), nil, world.WithLogger(a.log))
}

// transferProgress renders rclone progress for commands whose --json
// output is already a stream of JSON lines.
func (a *app) transferProgress() progress.Callback {
	if a.jsonOutput() {
		return progress.JSONLines(a.stdout, nil)
	}
	return a.progressBar()
}

// progressBar draws on stderr when it is a terminal. --json output stays a
// single document.
func (a *app) progressBar() progress.Callback {
	if a.jsonOutput() {
		return nil
	}
	if f, ok := a.stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return progress.NewTerminal(f).Callback()
	}
	return nil
}

func (a *app) journal() *journal.Journal {
	return journal.New(filepath.Join(a.configDir(), journal.FileName))
}

func (a *app) guard() *lock.Guard {
	return lock.NewGuard(filepath.Join(a.configDir(), "locks"))
}

func (a *app) webhooks(settings config.WebhookSettings) *webhook.Client {
	return webhook.NewClient(settings.ClientConfig(), a.log)
}

// copyToClipboard mirrors text to the terminal clipboard via OSC 52.
func (a *app) copyToClipboard(text string) bool {
	if a.deps.Clipboard == nil {
		return false
	}
	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	}
	if _, err := seq.WriteTo(a.deps.Clipboard); err != nil {
		a.log.Warn("clipboard copy failed", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// readLine returns the next line of stdin. A single reader goroutine
// feeds every caller so prompts in different phases never race for input.
func (a *app) readLine(ctx context.Context) (string, bool) {
	a.readerOnce.Do(func() {
		a.lines = make(chan string)
		go func() {
			defer close(a.lines)
			sc := bufio.NewScanner(a.stdin)
			for sc.Scan() {
				a.lines <- sc.Text()
			}
		}()
	})
	select {
	case line, ok := <-a.lines:
		return strings.TrimSpace(line), ok
	case <-ctx.Done():
		return "", false
	}
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func (a *app) confirm(ctx context.Context, question string) bool {
	a.printf("%s [y/N]: ", question)
	line, ok := a.readLine(ctx)
	if !ok {
		a.println()
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}
