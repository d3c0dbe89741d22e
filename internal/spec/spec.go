// Package spec loads specification documents and derives the identity that
// correlates a spec with its staged artifacts, image tag and container.
package spec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a spec path does not resolve to a readable file.
var ErrNotFound = errors.New("spec not found")

// Load reads the spec document at path.
func Load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	return string(data), nil
}

// IdentityName derives the spec name from its filename: the basename with
// the final extension stripped ("specs/todo.md" -> "todo"), lowercased, with
// characters outside [a-z0-9_.-] replaced by "-". The staging workspace and
// the image tag are both keyed by this name, so "Todo.md" and "todo.md" are
// the same spec.
func IdentityName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = invalidRefChars.ReplaceAllString(strings.ToLower(name), "-")
	if name == "" {
		return "spec"
	}
	return name
}
