package cli

import (
	"fmt"
	"strings"

	"github.com/harupipipipi/mcmultidrive/pkg/color"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// suggestWorlds offers close matches for a world name that does not exist.
func suggestWorlds(name string, worlds []model.World) string {
	if len(worlds) == 0 {
		return fmt.Sprintf("No worlds exist yet. Run %s to register one.", "mcmultidrive add <world>")
	}

	lower := strings.ToLower(name)
	var matches []string
	for _, w := range worlds {
		if strings.HasPrefix(strings.ToLower(w.Name), lower) {
			matches = append(matches, color.Success(w.Name))
		}
	}
	if len(matches) == 0 {
		for _, w := range worlds {
			if strings.Contains(strings.ToLower(w.Name), lower) || strings.Contains(lower, strings.ToLower(w.Name)) {
				matches = append(matches, color.Success(w.Name))
			}
		}
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}

	names := make([]string, 0, len(worlds))
	for _, w := range worlds {
		names = append(names, color.Success(w.Name))
	}
	return fmt.Sprintf("Available worlds: %s", strings.Join(names, ", "))
}

// formatWorldNotFoundError formats a missing world error with suggestions.
func formatWorldNotFoundError(name string, worlds []model.World) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("world '%s' not found", name))
	sb.WriteString("\n")
	sb.WriteString(color.Dim("  " + suggestWorlds(name, worlds)))
	return sb.String()
}
