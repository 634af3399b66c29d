package util

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestSafeJoinRejectsTraversal(t *testing.T) {
	root := filepath.FromSlash("/data/projects/p1")
	if _, err := SafeJoin(root, "uploads", ".."); !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
	if _, err := SafeJoin(root, "uploads", "a/b.pdf"); !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath for separator, got %v", err)
	}
	got, err := SafeJoin(root, "uploads", "docs", "a.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(root, "uploads", "docs", "a.pdf") {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/data/projects/p1/meta.json"
	if err := WriteJSONAtomic(fsys, path, map[string]any{"id": "p1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"id": "p1"`) {
		t.Fatalf("unexpected content %s", b)
	}
	entries, _ := afero.ReadDir(fsys, "/data/projects/p1")
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestWriteFileAtomic(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/data/projects/p1/uploads/docs/a.txt"
	if err := WriteFileAtomic(fsys, path, strings.NewReader("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := afero.ReadFile(fsys, path)
	if string(b) != "hello" {
		t.Fatalf("unexpected content %q", b)
	}
}
