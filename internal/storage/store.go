// Package storage keeps projects and their generated artifacts as JSON
// documents under a data directory.
package storage

import (
	"context"
	"os"
	"time"

	"learnflow/internal/errs"
	"learnflow/internal/models"
	"learnflow/internal/util"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	fs    afero.Fs
	root  string
	index *Index
	locks *keyedMutex
	now   func() time.Time
}

// New opens the store rooted at root on fsys and loads the project index.
func New(fsys afero.Fs, root string) (*Store, error) {
	if err := util.EnsureDir(fsys, root); err != nil {
		return nil, errors.WithStack(err)
	}
	ix, err := loadIndex(fsys, root)
	if err != nil {
		return nil, err
	}
	return &Store{
		fs:    fsys,
		root:  root,
		index: ix,
		locks: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func NewOS(root string) (*Store, error) {
	return New(afero.NewOsFs(), root)
}

func (s *Store) Index() *Index { return s.index }

func (s *Store) Root() string { return s.root }

// readDoc decodes path into out. A missing file reports found=false with no error.
func (s *Store) readDoc(path string, out any) (bool, error) {
	b, err := s.readRaw(path)
	if err != nil || b == nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, errors.Wrapf(err, "decode %s", path)
	}
	return true, nil
}

func (s *Store) readRaw(path string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return b, nil
}

func (s *Store) exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, errors.Wrapf(err, "stat %s", path)
	}
	return ok, nil
}

// writeForProject validates v and replaces path with it. The project must exist;
// callers hold the project lock.
func (s *Store) writeForProject(projectID, path string, v any) error {
	if err := models.Validate(v); err != nil {
		return err
	}
	ok, err := s.exists(s.metaPath(projectID))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(errs.ErrNotFound, "project %s", projectID)
	}
	if err := util.WriteJSONAtomic(s.fs, path, v); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func (s *Store) lockProject(ctx context.Context, id string) (func(), error) {
	if err := ValidateProjectID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.locks.Lock(id), nil
}

func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339)
}
