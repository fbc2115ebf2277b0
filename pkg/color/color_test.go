package color

import (
	"strings"
	"testing"
)

func withEnabled(t *testing.T, on bool) {
	t.Helper()
	orig := Enabled()
	if on {
		Enable()
	} else {
		Disable()
	}
	t.Cleanup(func() { enabled.Store(orig) })
}

func TestEnableDisable(t *testing.T) {
	withEnabled(t, true)
	if !Enabled() {
		t.Error("expected colors to be enabled after Enable()")
	}
	Disable()
	if Enabled() {
		t.Error("expected colors to be disabled after Disable()")
	}
}

func TestDisabledReturnsPlainText(t *testing.T) {
	withEnabled(t, false)

	funcs := map[string]func(string) string{
		"Success": Success,
		"Error":   Error,
		"Warning": Warning,
		"Info":    Info,
		"Header":  Header,
		"Dim":     Dim,
		"Address": Address,
		"Status":  Status,
		"Box":     Box,
	}
	for name, fn := range funcs {
		if got := fn("foo.e4mc.link"); got != "foo.e4mc.link" {
			t.Errorf("%s: expected plain text, got %q", name, got)
		}
	}
	if got := Successf("%d saved", 2); got != "2 saved" {
		t.Errorf("Successf: got %q", got)
	}
}

func TestEnabledKeepsText(t *testing.T) {
	withEnabled(t, true)
	if got := Address("foo.e4mc.link"); !strings.Contains(got, "foo.e4mc.link") {
		t.Errorf("styled output lost its text: %q", got)
	}
}

func TestInitNoColorEnv(t *testing.T) {
	withEnabled(t, true)
	t.Setenv("NO_COLOR", "1")
	Init(false)
	if Enabled() {
		t.Error("NO_COLOR should disable colors")
	}
}

func TestInitFlag(t *testing.T) {
	withEnabled(t, true)
	Init(true)
	if Enabled() {
		t.Error("--no-color should disable colors")
	}
}
