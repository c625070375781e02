package fsops_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/petasbytes/rye/internal/fsops"
)

func TestWriteFileAtomic_CreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "a.md")

	if err := fsops.WriteFileAtomic(p, []byte("one"), 0o600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := fsops.WriteFileAtomic(p, []byte("two"), 0o600); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "two" {
		t.Fatalf("content mismatch: got %q", string(b))
	}

	// No temp files left behind.
	des, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(des) != 1 {
		t.Fatalf("expected only the target file, got %d entries", len(des))
	}
}

func TestAppendAtomic_PreservesPriorBytes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.md")
	prior := "# T\r\n\n## You\nhi  \n\n"
	if err := os.WriteFile(p, []byte(prior), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := fsops.AppendAtomic(p, []byte("## Assistant\nyo\n\n")); err != nil {
		t.Fatalf("AppendAtomic: %v", err)
	}
	b, _ := os.ReadFile(p)
	if want := prior + "## Assistant\nyo\n\n"; string(b) != want {
		t.Fatalf("content mismatch:\n got %q\nwant %q", string(b), want)
	}
}

func TestAppendAtomic_MissingFile(t *testing.T) {
	err := fsops.AppendAtomic(filepath.Join(t.TempDir(), "missing.md"), []byte("x"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestRenameNoClobber(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	c := filepath.Join(dir, "c.md")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatalf("prepare: %v", err)
		}
	}

	if err := fsops.RenameNoClobber(a, b); !errors.Is(err, fsops.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if got, _ := os.ReadFile(b); string(got) != "b.md" {
		t.Fatalf("destination was clobbered: %q", got)
	}

	if err := fsops.RenameNoClobber(a, c); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Fatalf("old path still exists")
	}
	if got, _ := os.ReadFile(c); string(got) != "a.md" {
		t.Fatalf("unexpected content at new path: %q", got)
	}
}

func TestList_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.md", "a.md", ".tmp-123", "notes.txt", ".hidden.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("prepare: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.md"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	entries, err := fsops.List(dir, ".md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "a.md" || entries[1].Name != "b.md" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
