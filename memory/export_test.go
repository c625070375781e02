package memory

import "os"

// SetFileOps replaces the rename and whole-file write used by RenameOnTitle.
func SetFileOps(s *Store, rename func(oldPath, newPath string) error, write func(path string, data []byte, perm os.FileMode) error) {
	if rename != nil {
		s.rename = rename
	}
	if write != nil {
		s.writeFile = write
	}
}
