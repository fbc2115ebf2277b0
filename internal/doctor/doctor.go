// Package doctor checks that this machine is ready to host or join.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harupipipipi/mcmultidrive/internal/journal"
	"github.com/harupipipipi/mcmultidrive/internal/rclone"
	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/pkg/config"
	"github.com/harupipipipi/mcmultidrive/pkg/fsutil"
)

// Severities, most serious first.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
	// Rclone is the version line reported by the binary, when it ran.
	Rclone string `json:"rclone,omitempty"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityCritical || f.Severity == SeverityError {
		r.Healthy = false
	}
}

// Pinger checks that the status endpoint answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Doctor performs the checks for one config directory and, optionally,
// one world.
type Doctor struct {
	dir   string
	world string

	runner func(binary string) rclone.Runner
	pinger func(url string, timeout time.Duration) Pinger
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithRunner replaces how rclone is invoked.
func WithRunner(fn func(binary string) rclone.Runner) Option {
	return func(d *Doctor) { d.runner = fn }
}

// WithPinger replaces the status endpoint client.
func WithPinger(fn func(url string, timeout time.Duration) Pinger) Option {
	return func(d *Doctor) { d.pinger = fn }
}

// NewDoctor creates a doctor for the config directory dir. world may be
// empty to skip the per-world checks.
func NewDoctor(dir, world string, opts ...Option) *Doctor {
	d := &Doctor{
		dir:    dir,
		world:  world,
		runner: func(binary string) rclone.Runner { return &rclone.ExecRunner{Binary: binary} },
		pinger: func(url string, timeout time.Duration) Pinger { return statusstore.NewClient(url, timeout) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check runs all diagnostic checks. The error is reserved for failures of
// the doctor itself; problems found are reported as findings.
func (d *Doctor) Check(ctx context.Context) (*Result, error) {
	result := &Result{Healthy: true}

	shared := d.checkShared(result)
	personal := d.checkPersonal(result)
	if shared != nil {
		d.checkRclone(ctx, result, shared)
		d.checkStatusEndpoint(ctx, result, shared)
	}
	if personal != nil && d.world != "" {
		d.checkInstance(result, personal)
	}
	d.checkJournal(result)
	d.checkOrphanTmp(result)

	return result, nil
}

func (d *Doctor) checkShared(result *Result) *config.Shared {
	shared, err := config.LoadShared(d.dir)
	if err != nil {
		result.add(Finding{
			Category:    "config",
			Description: fmt.Sprintf("shared config: %v", err),
			Severity:    SeverityCritical,
			Path:        d.dir,
		})
		return nil
	}
	return shared
}

func (d *Doctor) checkPersonal(result *Result) *config.Personal {
	personal, err := config.LoadPersonal(d.dir)
	if err != nil {
		result.add(Finding{
			Category:    "config",
			Description: fmt.Sprintf("personal settings: %v", err),
			Severity:    SeverityError,
			Path:        filepath.Join(d.dir, config.PersonalFile),
		})
		return nil
	}
	if strings.TrimSpace(personal.PlayerName) == "" {
		result.add(Finding{
			Category:    "config",
			Description: "player_name is not set",
			Severity:    SeverityError,
			Path:        filepath.Join(d.dir, config.PersonalFile),
		})
	}
	return personal
}

func (d *Doctor) checkRclone(ctx context.Context, result *Result, shared *config.Shared) {
	binary, confPath := shared.Rclone(d.dir)
	version, err := rclone.Version(ctx, d.runner(binary))
	if err != nil {
		result.add(Finding{
			Category:    "rclone",
			Description: fmt.Sprintf("rclone is not usable: %v", err),
			Severity:    SeverityError,
			Path:        binary,
		})
		return
	}
	result.Rclone = version
	if confPath == "" {
		result.add(Finding{
			Category:    "rclone",
			Description: "no rclone.conf next to the config files; rclone will use its default config",
			Severity:    SeverityInfo,
		})
	}
}

func (d *Doctor) checkStatusEndpoint(ctx context.Context, result *Result, shared *config.Shared) {
	timeout := shared.Timings.StatusTimeout.Std()
	if timeout <= 0 {
		timeout = statusstore.DefaultTimeout
	}
	if err := d.pinger(shared.StatusURL, timeout).Ping(ctx); err != nil {
		result.add(Finding{
			Category:    "status",
			Description: fmt.Sprintf("status endpoint unreachable: %v", err),
			Severity:    SeverityError,
		})
	}
}

func (d *Doctor) checkInstance(result *Result, personal *config.Personal) {
	instance := personal.InstancePathFor(d.world)
	if instance == "" {
		result.add(Finding{
			Category:    "instance",
			Description: fmt.Sprintf("no instance path configured for %s", d.world),
			Severity:    SeverityError,
		})
		return
	}
	if !fsutil.IsDir(instance) {
		result.add(Finding{
			Category:    "instance",
			Description: "instance directory does not exist",
			Severity:    SeverityError,
			Path:        instance,
		})
		return
	}
	saves := filepath.Join(instance, "saves")
	if !fsutil.IsDir(saves) {
		result.add(Finding{
			Category:    "instance",
			Description: "saves directory missing; start the game once to create it",
			Severity:    SeverityWarning,
			Path:        saves,
		})
	}
}

func (d *Doctor) checkJournal(result *Result) {
	j := journal.New(filepath.Join(d.dir, journal.FileName))
	if _, err := j.Verify(); err != nil {
		result.add(Finding{
			Category:    "journal",
			Description: err.Error(),
			Severity:    SeverityWarning,
			Path:        j.Path(),
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".mcmd-tmp-") {
			result.add(Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan temp file: %s", e.Name()),
				Severity:    SeverityInfo,
				Path:        filepath.Join(d.dir, e.Name()),
			})
		}
	}
}
