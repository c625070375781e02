// Package safety keeps conversation files confined to the storage root.
package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathError is a machine-readable rejection of a storage path.
type PathError struct {
	Code    string
	Name    string
	Message string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %q: %s", e.Code, e.Name, e.Message)
}

const (
	CodeEmptyName      = "ERR_EMPTY_NAME"
	CodeNotSingleEntry = "ERR_NOT_SINGLE_ENTRY"
	CodeOutsideRoot    = "ERR_OUTSIDE_ROOT"
)

// InitRoot resolves dir to an absolute, symlink-free directory, creating it
// when missing.
func InitRoot(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs(%s): %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", abs, err)
	}
	// If EvalSymlinks fails, fall back to the absolute path as-is.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

// ResolveName joins a bare file name onto root. It rejects empty names,
// anything with a separator or parent reference, and names that resolve
// outside root through a symlink.
func ResolveName(root, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &PathError{Code: CodeEmptyName, Name: name, Message: "file name is empty"}
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) || filepath.Base(name) != name {
		return "", &PathError{Code: CodeNotSingleEntry, Name: name, Message: "file name must be a single directory entry"}
	}

	candidate := filepath.Join(root, name)
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", &PathError{Code: CodeOutsideRoot, Name: name, Message: "resolves outside the storage root"}
	}
	return candidate, nil
}
