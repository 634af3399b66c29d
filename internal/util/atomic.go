package util

import (
	"fmt"
	"io"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSONAtomic encodes v into a temp file next to path and renames it into place,
// so readers observe either the previous document or the new one.
func WriteJSONAtomic(fsys afero.Fs, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return writeAtomic(fsys, path, "tmp-*.json", func(w io.Writer) error {
		_, err := w.Write(append(b, '\n'))
		return err
	})
}

// WriteFileAtomic copies r into path with the same temp-then-rename discipline.
func WriteFileAtomic(fsys afero.Fs, path string, r io.Reader) error {
	return writeAtomic(fsys, path, "tmp-*"+filepath.Ext(path), func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

func writeAtomic(fsys afero.Fs, path, pattern string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(fsys, dir); err != nil {
		return err
	}
	tmp, err := afero.TempFile(fsys, dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmp.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fsys.Rename(tmp.Name(), path); err != nil {
		_ = fsys.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
