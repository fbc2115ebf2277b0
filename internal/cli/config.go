package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/config"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Show or change your settings",
		Long: `Show or change your settings.

The shared config (shared_config.yaml, .toml or .json) is distributed with
the tool and is the same for everyone. Your own settings live in
my_settings.yaml next to it:
  player_name     - the name others see as host
  instance_path   - default game instance directory
  instance_paths  - per world instance directories`,
		DisableFlagsInUseLine: true,
	}
	cmd.AddCommand(a.configShowCmd(), a.configSetPlayerCmd(), a.configSetPathCmd())
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [world]",
		Short: "Show the effective configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v any
			if len(args) == 1 {
				wc, err := a.loadWorld(args[0])
				if err != nil {
					return err
				}
				wc.Webhooks = redactHooks(wc.Webhooks)
				v = wc
			} else {
				shared, err := a.loadShared()
				if err != nil {
					return err
				}
				personal, err := config.LoadPersonal(a.configDir())
				if err != nil {
					return err
				}
				shared.Webhooks = redactHooks(shared.Webhooks)
				v = map[string]any{"shared": shared, "personal": personal}
			}

			if a.jsonOutput() {
				return a.outputJSON(v)
			}
			a.println(color.Dim("# config directory: " + a.configDir()))
			out, err := yaml.Marshal(v)
			if err != nil {
				return err
			}
			a.printf("%s", out)
			return nil
		},
	}
}

func (a *app) configSetPlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-player <name>",
		Short: "Set the name others see when you host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errclass.ErrConfigInvalid.WithMessage("player name must not be empty")
			}
			return a.updatePersonal(func(p *config.Personal) error {
				p.PlayerName = name
				return nil
			}, "player_name set to "+name)
		},
	}
}

func (a *app) configSetPathCmd() *cobra.Command {
	var asDefault bool
	cmd := &cobra.Command{
		Use:   "set-path <world> <instance dir>",
		Short: "Set the game instance directory used for a world",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			return a.updatePersonal(func(p *config.Personal) error {
				if asDefault {
					p.InstancePath = path
				}
				return p.SetInstancePath(args[0], path)
			}, "instance path for "+args[0]+" set to "+path)
		},
	}
	cmd.Flags().BoolVar(&asDefault, "default", false, "also use this directory for worlds without their own entry")
	return cmd
}

func (a *app) updatePersonal(edit func(*config.Personal) error, done string) error {
	dir := a.configDir()
	p, err := config.LoadPersonal(dir)
	if err != nil {
		return err
	}
	if err := edit(p); err != nil {
		return err
	}
	if err := config.SavePersonal(dir, p); err != nil {
		return err
	}
	if a.jsonOutput() {
		return a.outputJSON(p)
	}
	a.println(color.Success(done))
	return nil
}

func redactHooks(s config.WebhookSettings) config.WebhookSettings {
	hooks := make([]config.HookSetting, len(s.Hooks))
	for i, h := range s.Hooks {
		if h.Secret != "" {
			h.Secret = "********"
		}
		hooks[i] = h
	}
	s.Hooks = hooks
	return s
}
