package storage

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"learnflow/internal/models"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/maruel/natural"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type ReconcileReport struct {
	Dropped []string
	Adopted []string
	Swept   int
}

// Reconcile brings the index back in line with the project directories: ids
// without metadata are dropped, metadata missing from the index is appended in
// createdAt order, and directories left behind by interrupted deletes or by
// writes that landed after a delete are removed.
// The scan runs under the index lock, so creates and deletes wait for it.
func (s *Store) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	var orphans []string
	err := s.index.rebuild(func(cur []string) ([]string, error) {
		metas, orph, swept, err := s.scanProjects()
		if err != nil {
			return nil, err
		}
		orphans, rep.Swept = orph, swept

		present := mapset.NewThreadUnsafeSet[string]()
		for _, p := range metas {
			present.Add(p.ID)
		}
		indexed := mapset.NewThreadUnsafeSet[string](cur...)

		next := make([]string, 0, len(cur))
		for _, id := range cur {
			if present.Contains(id) {
				next = append(next, id)
			} else {
				rep.Dropped = append(rep.Dropped, id)
			}
		}
		adopt := make([]models.Project, 0)
		for _, p := range metas {
			if !indexed.Contains(p.ID) {
				adopt = append(adopt, p)
			}
		}
		sort.SliceStable(adopt, func(i, j int) bool {
			if adopt[i].CreatedAt != adopt[j].CreatedAt {
				return adopt[i].CreatedAt < adopt[j].CreatedAt
			}
			return natural.Less(adopt[i].ID, adopt[j].ID)
		})
		for _, p := range adopt {
			next = append(next, p.ID)
			rep.Adopted = append(rep.Adopted, p.ID)
		}
		return next, nil
	})
	if err != nil {
		return rep, err
	}
	rep.Swept += s.sweepOrphans(orphans)
	if len(rep.Dropped)+len(rep.Adopted)+rep.Swept > 0 {
		log.WithFields(log.Fields{
			"dropped": len(rep.Dropped),
			"adopted": len(rep.Adopted),
			"swept":   rep.Swept,
		}).Info("storage: index reconciled")
	}
	return rep, nil
}

// scanProjects reads the metadata of every project directory, removes trash dirs
// and reports directories that have no metadata.
func (s *Store) scanProjects() ([]models.Project, []string, int, error) {
	base := filepath.Join(s.root, projectsDir)
	entries, err := afero.ReadDir(s.fs, base)
	if isNotExist(err) {
		return nil, nil, 0, nil
	}
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "scan projects")
	}
	var orphans []string
	swept := 0
	out := make([]models.Project, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, trashPrefix) {
			if err := s.fs.RemoveAll(filepath.Join(base, name)); err != nil {
				log.WithError(err).WithField("dir", name).Warn("storage: trash sweep failed")
				continue
			}
			swept++
			continue
		}
		if ValidateProjectID(name) != nil {
			continue
		}
		var p models.Project
		found, err := s.readDoc(s.metaPath(name), &p)
		if err != nil {
			log.WithError(err).WithField("project_id", name).Warn("storage: unreadable metadata during reconcile")
			continue
		}
		if !found {
			orphans = append(orphans, name)
			continue
		}
		p.ID = name
		out = append(out, p)
	}
	return out, orphans, swept, nil
}

// sweepOrphans removes project directories that hold artifacts but no metadata.
// Each one is rechecked under its project lock so a create in flight keeps its files.
func (s *Store) sweepOrphans(ids []string) int {
	n := 0
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		ok, err := s.exists(s.metaPath(id))
		if err == nil && !ok {
			err = s.fs.RemoveAll(s.projectDir(id))
			if err == nil {
				n++
			}
		}
		unlock()
		if err != nil {
			log.WithError(err).WithField("project_id", id).Warn("storage: orphan sweep failed")
		}
	}
	return n
}
