package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/harupipipipi/mcmultidrive/internal/doctor"
	"github.com/harupipipipi/mcmultidrive/pkg/color"
)

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [world]",
		Short: "Check that this machine is ready to host",
		Long: `Check that this machine is ready to host.

Verifies the config files, the rclone binary, the status endpoint and the
session journal. With a world name it also checks the instance directory
configured for that world.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			world := ""
			if len(args) == 1 {
				world = args[0]
			}
			result, err := doctor.NewDoctor(a.configDir(), world, a.deps.DoctorOptions...).Check(cmd.Context())
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				if err := a.outputJSON(result); err != nil {
					return err
				}
			} else {
				if result.Rclone != "" {
					a.println(color.Dim(result.Rclone))
				}
				if len(result.Findings) == 0 {
					a.println(color.Success("Everything looks good."))
				} else {
					a.printf("Findings (%d):\n", len(result.Findings))
					for _, f := range result.Findings {
						a.printf("  [%s] %s: %s\n", severityText(f.Severity), f.Category, f.Description)
					}
				}
			}
			if !result.Healthy {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}

func severityText(s string) string {
	switch s {
	case doctor.SeverityCritical, doctor.SeverityError:
		return color.Error(s)
	case doctor.SeverityWarning:
		return color.Warning(s)
	default:
		return color.Dim(s)
	}
}
