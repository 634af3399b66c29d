package util

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

func EnsureDir(fsys afero.Fs, path string) error {
	if err := fsys.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins elems under root and rejects results that climb out of it.
func SafeJoin(root string, elems ...string) (string, error) {
	for _, e := range elems {
		if e == "" || e == "." || e == ".." || strings.ContainsAny(e, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, e)
		}
	}
	joined := filepath.Join(append([]string{root}, elems...)...)
	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, joined)
	}
	return joined, nil
}
