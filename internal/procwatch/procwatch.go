// Package procwatch finds the running game client and tells whether it is
// still alive.
package procwatch

import (
	"context"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

// DefaultNames are the executable names a modded client runs under.
var DefaultNames = []string{"java.exe", "javaw.exe", "java", "javaw", "minecraft.exe"}

// DefaultKeywords identify a game client among Java processes.
var DefaultKeywords = []string{
	"net.minecraft",
	"minecraft",
	"cpw.mods.bootstraplauncher",
	"net.minecraftforge",
	"net.neoforged",
	"fabricmc",
}

// Handle identifies one observed process.
type Handle struct {
	PID  int32  `json:"pid"`
	Name string `json:"name"`

	proc *process.Process
}

// Finder locates the game process.
type Finder struct {
	names    []string
	keywords []string
	log      *logging.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithNames replaces the executable names considered.
func WithNames(names ...string) Option {
	return func(f *Finder) { f.names = names }
}

// WithKeywords replaces the command line keywords.
func WithKeywords(keywords ...string) Option {
	return func(f *Finder) { f.keywords = keywords }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Finder) { f.log = l }
}

// NewFinder creates a Finder with the default names and keywords.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{names: DefaultNames, keywords: DefaultKeywords, log: logging.Global()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Matches reports whether a process with the given executable name and
// arguments looks like a game client.
func (f *Finder) Matches(name string, cmdline []string) bool {
	if !slices.Contains(f.names, strings.ToLower(name)) {
		return false
	}
	joined := strings.ToLower(strings.Join(cmdline, " "))
	for _, kw := range f.keywords {
		if strings.Contains(joined, kw) {
			return true
		}
	}
	return false
}

// Find returns the first running game client. Processes that vanish or
// deny access while being inspected are skipped.
func (f *Finder) Find(ctx context.Context) (*Handle, bool) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		f.log.Warn("process listing failed", map[string]any{"error": err.Error()})
		return nil, false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		if !slices.Contains(f.names, strings.ToLower(name)) {
			continue
		}
		cmdline, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || len(cmdline) == 0 {
			continue
		}
		if f.Matches(name, cmdline) {
			return &Handle{PID: p.Pid, Name: name, proc: p}, true
		}
	}
	return nil, false
}

// Attach returns a handle for pid, for callers that already know it.
func Attach(ctx context.Context, pid int32) (*Handle, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	name, _ := p.NameWithContext(ctx)
	return &Handle{PID: pid, Name: name, proc: p}, nil
}

// IsAlive reports whether h is still running. Zombies count as exited.
func (f *Finder) IsAlive(ctx context.Context, h *Handle) bool {
	if h == nil || h.proc == nil {
		return false
	}
	running, err := h.proc.IsRunningWithContext(ctx)
	if err != nil || !running {
		return false
	}
	if status, err := h.proc.StatusWithContext(ctx); err == nil && slices.Contains(status, process.Zombie) {
		return false
	}
	return true
}
