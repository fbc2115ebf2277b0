// Package color styles terminal output.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var enabled atomic.Bool

func init() {
	Init(false)
}

// Init decides whether output is colored: never with NO_COLOR set, a dumb
// terminal, the --no-color flag, or a stdout that is not a terminal.
func Init(noColorFlag bool) {
	on := !noColorFlag
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		on = false
	}
	if os.Getenv("TERM") == "dumb" {
		on = false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		on = false
	}
	enabled.Store(on)
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	return enabled.Load()
}

// Disable turns off color output.
func Disable() {
	enabled.Store(false)
}

// Enable turns on color output.
func Enable() {
	enabled.Store(true)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	addressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Underline(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func render(style lipgloss.Style, s string) string {
	if !Enabled() {
		return s
	}
	return style.Render(s)
}

// Success formats a success message.
func Success(s string) string { return render(successStyle, s) }

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string { return Success(fmt.Sprintf(format, args...)) }

// Error formats an error message.
func Error(s string) string { return render(errorStyle, s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return Error(fmt.Sprintf(format, args...)) }

// Warning formats a warning message.
func Warning(s string) string { return render(warnStyle, s) }

// Warningf formats a warning message with printf-style arguments.
func Warningf(format string, args ...any) string { return Warning(fmt.Sprintf(format, args...)) }

// Info formats an informational message.
func Info(s string) string { return render(infoStyle, s) }

// Infof formats an informational message with printf-style arguments.
func Infof(format string, args ...any) string { return Info(fmt.Sprintf(format, args...)) }

// Header formats a header.
func Header(s string) string { return render(headerStyle, s) }

// Dim formats secondary information.
func Dim(s string) string { return render(dimStyle, s) }

// Address formats a published network address.
func Address(s string) string { return render(addressStyle, s) }

// Status colors a world status word.
func Status(s string) string {
	switch s {
	case "online":
		return Success(s)
	case "offline":
		return Dim(s)
	default:
		return Warning(s)
	}
}

// Box frames a multi-line block, used for the in-game instructions.
func Box(s string) string { return render(boxStyle, s) }
