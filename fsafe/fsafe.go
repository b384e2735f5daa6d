// Package fsafe guards the filesystem side of rendering: output filenames
// come from external carousel JSON and must never escape the output
// directory.
package fsafe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("fsafe: path traversal detected")

// ErrInvalidFilename is returned for names with characters outside the
// allowed set.
var ErrInvalidFilename = errors.New("fsafe: invalid filename")

const maxFilenameLen = 200

// SafePath validates that joining base and name does not escape base.
// Returns the cleaned path or ErrPathTraversal.
func SafePath(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	root := filepath.Clean(base)
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateFilename rejects names unsuitable as a flat output file: empty,
// too long, containing separators or characters other than alphanumerics,
// underscore, hyphen and dot.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	}
	if len(name) > maxFilenameLen {
		return fmt.Errorf("%w: longer than %d", ErrInvalidFilename, maxFilenameLen)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: hidden file %q", ErrInvalidFilename, name)
	}
	for _, r := range name {
		if !isNameChar(r) {
			return fmt.Errorf("%w: character %q in %q", ErrInvalidFilename, r, name)
		}
	}
	return nil
}

// Sanitize maps a free-form label to a valid filename stem. Runs of
// disallowed characters collapse into a single hyphen.
func Sanitize(label string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(label) {
		if isNameChar(r) && r != '.' {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > maxFilenameLen-16 {
		out = out[:maxFilenameLen-16]
	}
	return out
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
