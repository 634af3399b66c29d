package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"learnflow/internal/util"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type indexEntry struct {
	ID string `json:"id"`
}

// Index is the ordered list of project ids persisted in projects.json. A single
// mutex owns both the in-memory copy and every rewrite of the file, so
// concurrent Add and Remove calls never lose each other's updates.
type Index struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	ids  []string
	set  mapset.Set[string]
}

func loadIndex(fsys afero.Fs, root string) (*Index, error) {
	ix := &Index{fs: fsys, path: filepath.Join(root, indexFile), set: mapset.NewThreadUnsafeSet[string]()}
	b, err := afero.ReadFile(fsys, ix.path)
	if errors.Is(err, os.ErrNotExist) {
		return ix, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read index %s", ix.path)
	}
	ids, err := decodeIndex(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decode index %s", ix.path)
	}
	for _, id := range ids {
		if ix.set.Add(id) {
			ix.ids = append(ix.ids, id)
		}
	}
	return ix, nil
}

// decodeIndex accepts [{"id": "..."}] and the older ["..."] form.
func decodeIndex(b []byte) ([]string, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var entries []indexEntry
	if err := json.Unmarshal(b, &entries); err == nil {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.ID != "" {
				out = append(out, e.ID)
			}
		}
		return out, nil
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (ix *Index) Add(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.set.Contains(id) {
		return nil
	}
	next := append(append(make([]string, 0, len(ix.ids)+1), ix.ids...), id)
	return ix.commit(next)
}

func (ix *Index) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.set.Contains(id) {
		return nil
	}
	next := make([]string, 0, len(ix.ids))
	for _, x := range ix.ids {
		if x != id {
			next = append(next, x)
		}
	}
	return ix.commit(next)
}

// List returns a copy of the ids in index order.
func (ix *Index) List() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return append([]string(nil), ix.ids...)
}

func (ix *Index) Contains(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.set.Contains(id)
}

// rebuild lets fn compute a new id list while holding the index lock.
func (ix *Index) rebuild(fn func(cur []string) ([]string, error)) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	next, err := fn(append([]string(nil), ix.ids...))
	if err != nil {
		return err
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	deduped := make([]string, 0, len(next))
	for _, id := range next {
		if seen.Add(id) {
			deduped = append(deduped, id)
		}
	}
	return ix.commit(deduped)
}

// commit persists next and swaps it in only once the file is on disk. Callers hold mu.
func (ix *Index) commit(next []string) error {
	entries := make([]indexEntry, len(next))
	for i, id := range next {
		entries[i] = indexEntry{ID: id}
	}
	if err := util.WriteJSONAtomic(ix.fs, ix.path, entries); err != nil {
		return errors.Wrap(err, "write index")
	}
	ix.ids = next
	ix.set = mapset.NewThreadUnsafeSet[string](next...)
	return nil
}
