package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"learnflow/internal/errs"
	"learnflow/internal/util"

	"github.com/maruel/natural"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// OpenFile opens projects/<id>/<kind>/<subType>/<name> for reading. Missing files,
// directories and names that would escape the project are all reported as not found.
func (s *Store) OpenFile(ctx context.Context, projectID string, kind FileKind, subType, name string) (afero.File, os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	path, err := s.filePath(projectID, kind, subType, name)
	if err != nil {
		return nil, nil, errors.Wrapf(errs.ErrNotFound, "file %s/%s/%s", kind, subType, name)
	}
	info, err := s.fs.Stat(path)
	if isNotExist(err) || (err == nil && info.IsDir()) {
		return nil, nil, errors.Wrapf(errs.ErrNotFound, "file %s/%s/%s", kind, subType, name)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "stat %s", path)
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	return f, info, nil
}

// PutFile stores r as projects/<id>/<kind>/<subType>/<name> and returns the path
// relative to the kind directory.
func (s *Store) PutFile(ctx context.Context, projectID string, kind FileKind, subType, name string, r io.Reader) (string, error) {
	path, err := s.filePath(projectID, kind, subType, name)
	if err != nil {
		return "", errs.NewValidation("fileName", "%v", err)
	}
	unlock, err := s.lockProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	defer unlock()
	ok, err := s.exists(s.metaPath(projectID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(errs.ErrNotFound, "project %s", projectID)
	}
	if err := util.WriteFileAtomic(s.fs, path, r); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return subType + "/" + name, nil
}

// ListFiles returns every file under kind as "<subType>/<name>", in natural order.
func (s *Store) ListFiles(ctx context.Context, projectID string, kind FileKind) ([]string, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	base := filepath.Join(s.projectDir(projectID), string(kind))
	out := make([]string, 0)
	err := afero.Walk(s.fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), "tmp-") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s files for %s", kind, projectID)
	}
	sort.Sort(natural.StringSlice(out))
	return out, nil
}

func (s *Store) filePath(projectID string, kind FileKind, subType, name string) (string, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return "", err
	}
	if _, ok := ParseFileKind(string(kind)); !ok {
		return "", errs.NewValidation("type", "unsupported file type %q", kind)
	}
	return util.SafeJoin(s.projectDir(projectID), string(kind), subType, name)
}
