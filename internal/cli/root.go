package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/config"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// EnvPrefix prefixes the environment variables that mirror global flags,
// e.g. MCMD_CONFIG_DIR or MCMD_LOG_LEVEL.
const EnvPrefix = "MCMD"

// LogFileName is the structured log written inside the config directory.
const LogFileName = "mcmultidrive.log"

// app carries what one invocation of the command tree shares.
type app struct {
	v    *viper.Viper
	deps Deps

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	log     *logging.Logger
	logFile *os.File

	readerOnce sync.Once
	lines      chan string
}

// NewRootCmd builds the command tree. Tests pass their own deps and
// streams; Execute uses the real ones.
func NewRootCmd(deps Deps, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		deps:   deps,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		log:    logging.Discard(),
	}

	root := &cobra.Command{
		Use:   "mcmultidrive",
		Short: "Take turns hosting a shared Minecraft world",
		Long: `mcmultidrive lets a group share one Minecraft world without a dedicated
server. The world lives in a shared drive folder; whoever wants to play
takes the lock on the status sheet, pulls the world, hosts it over e4mc,
and pushes it back when the game exits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config-dir", "", "directory holding shared_config and my_settings.yaml")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or text")
	pf.String("log-file", "", "structured log destination, '-' for stderr")
	pf.Bool("json", false, "output in JSON format")
	pf.Bool("no-color", false, "disable colored output")

	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(pf); err != nil {
		panic(err)
	}

	root.AddCommand(
		a.hostCmd(),
		a.joinCmd(),
		a.statusCmd(),
		a.listCmd(),
		a.addCmd(),
		a.deleteCmd(),
		a.uploadCmd(),
		a.downloadCmd(),
		a.forceReleaseCmd(),
		a.doctorCmd(),
		a.configCmd(),
		a.journalCmd(),
		completionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	root := NewRootCmd(DefaultDeps(), os.Stdin, os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		var oe *outcomeError
		if !errors.As(err, &oe) {
			fmtErr(os.Stderr, "%v", err)
		}
		os.Exit(1)
	}
}

func (a *app) setup() error {
	color.Init(a.v.GetBool("no-color"))

	dir := a.configDir()
	personal, err := config.LoadPersonal(dir)
	if err != nil {
		personal = &config.Personal{}
	}

	level := a.v.GetString("log-level")
	if level == "" {
		level = personal.Logging.Level
	}
	format := a.v.GetString("log-format")
	if format == "" {
		format = personal.Logging.Format
	}

	logger := logging.NewLogger(logging.ParseLevel(level))
	logger.SetFormat(logging.Format(format))
	switch dest := a.v.GetString("log-file"); dest {
	case "-":
		logger.SetOutput(a.stderr)
	default:
		if dest == "" {
			dest = filepath.Join(dir, LogFileName)
		}
		f, err := openLogFile(dest)
		if err != nil {
			// Logging is best effort; commands still run without a file.
			logger.SetOutput(io.Discard)
		} else {
			a.logFile = f
			logger.SetOutput(f)
		}
	}
	a.log = logger
	logging.SetGlobal(logger)
	return nil
}

func (a *app) teardown() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (a *app) configDir() string {
	if dir := a.v.GetString("config-dir"); dir != "" {
		return dir
	}
	return config.DefaultDir()
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}

// outputJSON prints v as indented JSON.
func (a *app) outputJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.stdout, args...)
}

func fmtErr(w io.Writer, format string, args ...any) {
	prefix := "mcmultidrive: "
	if color.Enabled() {
		prefix = color.Error("mcmultidrive:") + " "
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}

// outcomeError reports a session that did not complete. Its summary has
// already been printed.
type outcomeError struct {
	out *model.Outcome
}

func (e *outcomeError) Error() string {
	return "session " + e.out.Summary()
}
