// Package fsops holds the file primitives the conversation store is built on.
// Every write is all-or-nothing: a reader sees either the old or the new file.
package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	success = true
	return nil
}

// AppendAtomic appends suffix to an existing file. The prior bytes are kept
// unchanged and the file is replaced in one rename, so a failure leaves the
// original file as it was.
func AppendAtomic(path string, suffix []byte) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	prior, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(prior)+len(suffix))
	data = append(data, prior...)
	data = append(data, suffix...)
	return WriteFileAtomic(path, data, fi.Mode().Perm())
}

// ErrExists is returned by RenameNoClobber when the destination is taken.
var ErrExists = fs.ErrExist

// RenameNoClobber moves oldPath to newPath, failing with ErrExists instead of
// replacing an existing destination.
func RenameNoClobber(oldPath, newPath string) error {
	if err := os.Link(oldPath, newPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("rename %s: %w", filepath.Base(newPath), ErrExists)
		}
		// Filesystems without hard links: check, then rename.
		if _, statErr := os.Lstat(newPath); statErr == nil {
			return fmt.Errorf("rename %s: %w", filepath.Base(newPath), ErrExists)
		}
		return os.Rename(oldPath, newPath)
	}
	if err := os.Remove(oldPath); err != nil {
		_ = os.Remove(newPath)
		return err
	}
	return nil
}
