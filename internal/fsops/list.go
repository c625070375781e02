package fsops

import (
	"os"
	"sort"
	"strings"
	"time"
)

// Entry is a regular file found by List.
type Entry struct {
	Name    string
	ModTime time.Time
}

// List returns the regular files in dir whose names end in ext, skipping
// dot-files. Entries are sorted by name so scans are deterministic.
func List(dir, ext string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if !de.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, Entry{Name: name, ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
