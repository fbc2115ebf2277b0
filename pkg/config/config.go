// Package config loads the group-wide shared configuration and the
// per-player settings, and merges them into a per-world view.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/fsutil"
	"github.com/harupipipipi/mcmultidrive/pkg/pathutil"
)

const (
	// SharedBaseName is the shared config file name without extension.
	SharedBaseName = "shared_config"
	// PersonalFile is the per-player settings file.
	PersonalFile = "my_settings.yaml"
	// legacyPersonalFile is read when PersonalFile does not exist yet.
	legacyPersonalFile = "my_settings.json"
)

var sharedExtensions = []string{".yaml", ".yml", ".toml", ".json"}

// Shared is the group-wide configuration distributed with the tool.
type Shared struct {
	StatusURL         string          `yaml:"status_url" toml:"status_url" json:"status_url"`
	RemoteName        string          `yaml:"rclone_remote_name" toml:"rclone_remote_name" json:"rclone_remote_name"`
	DriveFolderID     string          `yaml:"rclone_drive_folder_id" toml:"rclone_drive_folder_id" json:"rclone_drive_folder_id"`
	BackupGenerations int             `yaml:"backup_generations" toml:"backup_generations" json:"backup_generations"`
	LockTimeoutHours  int             `yaml:"lock_timeout_hours" toml:"lock_timeout_hours" json:"lock_timeout_hours"`
	RclonePath        string          `yaml:"rclone_path,omitempty" toml:"rclone_path" json:"rclone_path,omitempty"`
	RcloneConfigPath  string          `yaml:"rclone_config_path,omitempty" toml:"rclone_config_path" json:"rclone_config_path,omitempty"`
	Webhooks          WebhookSettings `yaml:"webhooks,omitempty" toml:"webhooks" json:"webhooks,omitempty"`
	Timings           Timings         `yaml:"timings,omitempty" toml:"timings" json:"timings,omitempty"`
}

// legacyShared carries field names used by older JSON config files.
type legacyShared struct {
	GasURL string `json:"gas_url"`
}

// Personal holds settings that belong to one player on one machine.
type Personal struct {
	PlayerName string `yaml:"player_name" json:"player_name"`
	// InstancePath is used for worlds without an entry in InstancePaths.
	InstancePath  string            `yaml:"instance_path,omitempty" json:"instance_path,omitempty"`
	InstancePaths map[string]string `yaml:"instance_paths,omitempty" json:"instance_paths,omitempty"`
	Logging       LoggingConfig     `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json, text
}

// WorldConfig is the merged view used for one world.
type WorldConfig struct {
	World             string          `json:"world"`
	Identity          string          `json:"identity"`
	StatusURL         string          `json:"status_url"`
	InstancePath      string          `json:"instance_path"`
	RemoteName        string          `json:"rclone_remote_name"`
	DriveFolderID     string          `json:"rclone_drive_folder_id"`
	BackupGenerations int             `json:"backup_generations"`
	LockTimeoutHours  int             `json:"lock_timeout_hours"`
	RclonePath        string          `json:"rclone_path"`
	RcloneConfigPath  string          `json:"rclone_config_path,omitempty"`
	Webhooks          WebhookSettings `json:"webhooks"`
	Timings           Timings         `json:"timings"`
}

// SavesDir is the instance's saves directory.
func (w *WorldConfig) SavesDir() string {
	return filepath.Join(w.InstancePath, "saves")
}

// WorldDir is the local copy of the world.
func (w *WorldConfig) WorldDir() string {
	return filepath.Join(w.SavesDir(), w.World)
}

// LogPath is the game log tailed for the published address.
func (w *WorldConfig) LogPath() string {
	return filepath.Join(w.InstancePath, "logs", "latest.log")
}

// ServersFile is the multiplayer server list of the instance.
func (w *WorldConfig) ServersFile() string {
	return filepath.Join(w.InstancePath, "servers.dat")
}

// DefaultShared returns a shared config with optional fields defaulted.
// Required fields stay empty.
func DefaultShared() *Shared {
	return &Shared{
		BackupGenerations: 5,
		LockTimeoutHours:  6,
		Timings:           DefaultTimings(),
	}
}

// SharedPath returns the first shared config file present in dir.
func SharedPath(dir string) (string, error) {
	for _, ext := range sharedExtensions {
		p := filepath.Join(dir, SharedBaseName+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errclass.ErrConfigInvalid.WithMessagef("%s.{yaml,yml,toml,json} not found in %s", SharedBaseName, dir)
}

// LoadShared loads and validates the shared config found in dir.
func LoadShared(dir string) (*Shared, error) {
	path, err := SharedPath(dir)
	if err != nil {
		return nil, err
	}
	return LoadSharedFile(path)
}

// LoadSharedFile loads and validates a shared config file. The format is
// chosen from the extension.
func LoadSharedFile(path string) (*Shared, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shared config: %w", err)
	}

	cfg := DefaultShared()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
		}
		var legacy legacyShared
		if err := json.Unmarshal(data, &legacy); err == nil && cfg.StatusURL == "" {
			cfg.StatusURL = legacy.GasURL
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
		}
	}

	cfg.Timings = cfg.Timings.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or out of range required field at once.
func (s *Shared) Validate() error {
	var problems []string
	if s.StatusURL == "" {
		problems = append(problems, "status_url is required")
	}
	if s.RemoteName == "" {
		problems = append(problems, "rclone_remote_name is required")
	}
	if s.DriveFolderID == "" {
		problems = append(problems, "rclone_drive_folder_id is required")
	}
	if s.BackupGenerations < 1 {
		problems = append(problems, "backup_generations must be at least 1")
	}
	if s.LockTimeoutHours < 1 {
		problems = append(problems, "lock_timeout_hours must be at least 1")
	}
	for i, h := range s.Webhooks.Hooks {
		if h.URL == "" {
			problems = append(problems, fmt.Sprintf("webhooks.hooks[%d].url is required", i))
		}
	}
	if len(problems) > 0 {
		return errclass.ErrConfigInvalid.WithMessage(strings.Join(problems, "; "))
	}
	return nil
}

// LoadPersonal loads the player settings from dir. A missing file yields
// empty settings, which Build later rejects.
func LoadPersonal(dir string) (*Personal, error) {
	p := &Personal{InstancePaths: map[string]string{}}

	data, err := os.ReadFile(filepath.Join(dir, PersonalFile))
	if os.IsNotExist(err) {
		legacy, lerr := os.ReadFile(filepath.Join(dir, legacyPersonalFile))
		if os.IsNotExist(lerr) {
			return p, nil
		}
		if lerr != nil {
			return nil, fmt.Errorf("read personal settings: %w", lerr)
		}
		if err := json.Unmarshal(legacy, p); err != nil {
			return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", legacyPersonalFile, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read personal settings: %w", err)
	} else if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", PersonalFile, err)
	}

	if p.InstancePaths == nil {
		p.InstancePaths = map[string]string{}
	}
	return p, nil
}

// SavePersonal writes the player settings to dir atomically.
func SavePersonal(dir string, p *Personal) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal personal settings: %w", err)
	}
	if err := fsutil.AtomicWrite(filepath.Join(dir, PersonalFile), data, 0644); err != nil {
		return fmt.Errorf("write personal settings: %w", err)
	}
	return nil
}

// InstancePathFor returns the instance directory configured for world.
func (p *Personal) InstancePathFor(world string) string {
	if path, ok := p.InstancePaths[world]; ok && path != "" {
		return path
	}
	return p.InstancePath
}

// SetInstancePath records the instance directory used for world.
func (p *Personal) SetInstancePath(world, path string) error {
	name, err := pathutil.NormalizeWorldName(world)
	if err != nil {
		return err
	}
	if p.InstancePaths == nil {
		p.InstancePaths = map[string]string{}
	}
	p.InstancePaths[name] = path
	return nil
}

// Build loads both config files from dir and merges them for world.
func Build(dir, world string) (*WorldConfig, error) {
	shared, err := LoadShared(dir)
	if err != nil {
		return nil, err
	}
	personal, err := LoadPersonal(dir)
	if err != nil {
		return nil, err
	}
	wc, err := Merge(shared, personal, world)
	if err != nil {
		return nil, err
	}
	wc.RclonePath = resolveRclonePath(dir, wc.RclonePath)
	wc.RcloneConfigPath = resolveRcloneConfig(dir, wc.RcloneConfigPath)
	return wc, nil
}

// Merge combines an already loaded shared config and personal settings.
func Merge(shared *Shared, personal *Personal, world string) (*WorldConfig, error) {
	name, err := pathutil.NormalizeWorldName(world)
	if err != nil {
		return nil, err
	}
	if personal == nil || strings.TrimSpace(personal.PlayerName) == "" {
		return nil, errclass.ErrConfigInvalid.WithMessage("player_name is not set; run `mcmultidrive config set-player`")
	}
	instance := personal.InstancePathFor(name)
	if instance == "" {
		return nil, errclass.ErrConfigInvalid.WithMessagef("no instance path configured for world %q; run `mcmultidrive config set-path`", name)
	}

	return &WorldConfig{
		World:             name,
		Identity:          strings.TrimSpace(personal.PlayerName),
		StatusURL:         shared.StatusURL,
		InstancePath:      instance,
		RemoteName:        shared.RemoteName,
		DriveFolderID:     shared.DriveFolderID,
		BackupGenerations: shared.BackupGenerations,
		LockTimeoutHours:  shared.LockTimeoutHours,
		RclonePath:        shared.RclonePath,
		RcloneConfigPath:  shared.RcloneConfigPath,
		Webhooks:          shared.Webhooks,
		Timings:           shared.Timings.withDefaults(),
	}, nil
}

// Rclone resolves the rclone binary and config file paths relative to the
// config directory dir.
func (s *Shared) Rclone(dir string) (binary, configPath string) {
	return resolveRclonePath(dir, s.RclonePath), resolveRcloneConfig(dir, s.RcloneConfigPath)
}

// resolveRclonePath prefers an explicit path, then a bundled binary next
// to the config files, then whatever is on PATH.
func resolveRclonePath(dir, configured string) string {
	if configured != "" {
		if !filepath.IsAbs(configured) && strings.ContainsRune(configured, filepath.Separator) {
			return filepath.Join(dir, configured)
		}
		return configured
	}
	bin := "rclone"
	if runtime.GOOS == "windows" {
		bin = "rclone.exe"
	}
	bundled := filepath.Join(dir, "rclone", bin)
	if fsutil.Exists(bundled) {
		return bundled
	}
	return "rclone"
}

func resolveRcloneConfig(dir, configured string) string {
	if configured != "" {
		if !filepath.IsAbs(configured) {
			return filepath.Join(dir, configured)
		}
		return configured
	}
	bundled := filepath.Join(dir, "rclone.conf")
	if fsutil.Exists(bundled) {
		return bundled
	}
	return ""
}

// DefaultDir picks the directory holding the config files: the directory
// of the executable when it carries a shared config, otherwise the user
// config directory.
func DefaultDir() string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if _, err := SharedPath(dir); err == nil {
			return dir
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mcmultidrive")
	}
	return "."
}

// Duration is a time.Duration written as a Go duration string ("15s",
// "10m") in every config format.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", string(b))
	}
	*d = Duration(v)
	return nil
}
