// Package pathutil provides name and path validation for world directories.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
)

// MaxNameLength bounds world names in runes.
const MaxNameLength = 64

// Characters rejected by at least one of the platforms a saves folder or
// a drive folder may live on.
const reservedChars = `/\<>:"|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
}

// NormalizeWorldName validates a world name and returns its NFC form.
// World names double as the saves folder name and the remote folder name,
// so they must be a single safe path component.
func NormalizeWorldName(name string) (string, error) {
	if name == "" {
		return "", errclass.ErrNameInvalid.WithMessage("world name must not be empty")
	}
	if !utf8.ValidString(name) {
		return "", errclass.ErrNameInvalid.WithMessagef("world name is not valid UTF-8: %q", name)
	}

	name = norm.NFC.String(name)

	if strings.TrimSpace(name) != name {
		return "", errclass.ErrNameInvalid.WithMessagef("world name must not start or end with spaces: %q", name)
	}
	if name == "." || strings.Contains(name, "..") {
		return "", errclass.ErrNameInvalid.WithMessagef("world name must not contain '..': %s", name)
	}
	if strings.ContainsAny(name, reservedChars) {
		return "", errclass.ErrNameInvalid.WithMessagef("world name must not contain any of %s: %s", reservedChars, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", errclass.ErrNameInvalid.WithMessagef("world name must not contain control characters: %q", name)
		}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", errclass.ErrNameInvalid.WithMessagef("world name longer than %d characters", MaxNameLength)
	}
	if strings.HasSuffix(name, ".") {
		return "", errclass.ErrNameInvalid.WithMessagef("world name must not end with '.': %s", name)
	}
	if reservedNames[strings.ToUpper(name)] {
		return "", errclass.ErrNameInvalid.WithMessagef("world name is reserved: %s", name)
	}
	return name, nil
}

// ValidateWorldName checks a world name without returning the normalized form.
func ValidateWorldName(name string) error {
	_, err := NormalizeWorldName(name)
	return err
}

// ValidatePathSafety verifies targetPath does not escape root.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrNameInvalid.WithMessagef("cannot resolve root: %v", err)
	}

	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrNameInvalid.WithMessagef("cannot resolve target: %v", err)
		}
	}

	sep := string(filepath.Separator)
	if !strings.HasPrefix(resolvedTarget+sep, resolvedRoot+sep) && resolvedTarget != resolvedRoot {
		return errclass.ErrNameInvalid.WithMessagef("path escapes %s: %s", root, targetPath)
	}
	return nil
}

// resolveClosestAncestor walks up from path to the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) && dir != path {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
