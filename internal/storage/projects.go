package storage

import (
	"context"
	"os"
	"path/filepath"

	"learnflow/internal/errs"
	"learnflow/internal/models"
	"learnflow/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const listConcurrency = 8

// CreateProject writes the metadata of a new project and only then adds it to
// the index. An empty id is replaced by a fresh uuid; an id that already has
// metadata is rejected with errs.ErrConflict.
func (s *Store) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.applyDefaults(&p)
	if err := models.Validate(p); err != nil {
		return models.Project{}, err
	}
	unlock, err := s.lockProject(ctx, p.ID)
	if err != nil {
		return models.Project{}, err
	}
	defer unlock()

	ok, err := s.exists(s.metaPath(p.ID))
	if err != nil {
		return models.Project{}, err
	}
	if ok {
		return models.Project{}, errors.Wrapf(errs.ErrConflict, "project %s already exists", p.ID)
	}
	if err := s.publishProject(ctx, p.ID, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// UpsertProject merges patch into an existing project, or creates the project
// from patch when it does not exist. created reports which one happened.
func (s *Store) UpsertProject(ctx context.Context, id string, patch map[string]any) (p models.Project, created bool, err error) {
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return models.Project{}, false, err
	}
	defer unlock()

	raw, found, err := s.readMeta(id)
	if err != nil {
		return models.Project{}, false, err
	}
	if found {
		p, err = s.mergeMeta(id, raw, patch)
		return p, false, err
	}

	doc, err := mergePatch(map[string]any{}, id, patch)
	if err != nil {
		return models.Project{}, false, err
	}
	p, err = decodeProject(doc)
	if err != nil {
		return models.Project{}, false, err
	}
	s.applyDefaults(&p)
	if err := models.Validate(p); err != nil {
		return models.Project{}, false, err
	}
	if err := s.publishProject(ctx, id, overlay(doc, p)); err != nil {
		return models.Project{}, false, err
	}
	return p, true, nil
}

// UpdateProject merges only the keys present in patch into the stored metadata,
// keeping every other key, including ones this version does not model.
func (s *Store) UpdateProject(ctx context.Context, id string, patch map[string]any) (models.Project, error) {
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	defer unlock()

	raw, found, err := s.readMeta(id)
	if err != nil {
		return models.Project{}, err
	}
	if !found {
		return models.Project{}, errors.Wrapf(errs.ErrNotFound, "project %s", id)
	}
	return s.mergeMeta(id, raw, patch)
}

func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	if err := ValidateProjectID(id); err != nil {
		return models.Project{}, errors.Wrapf(errs.ErrNotFound, "project %s", id)
	}
	if err := ctx.Err(); err != nil {
		return models.Project{}, err
	}
	var p models.Project
	found, err := s.readDoc(s.metaPath(id), &p)
	if err != nil {
		return models.Project{}, err
	}
	if !found {
		return models.Project{}, errors.Wrapf(errs.ErrNotFound, "project %s", id)
	}
	return p, nil
}

// DeleteProject removes a project and every artifact it owns. Deleting a project
// that does not exist succeeds. The directory is first renamed out of the
// projects namespace, then the id leaves the index, and the tree is removed last.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	dir := s.projectDir(id)
	ok, err := s.exists(dir)
	if err != nil {
		return err
	}
	trash := ""
	if ok {
		trash = filepath.Join(s.root, projectsDir, trashPrefix+id+"-"+uuid.NewString())
		if err := s.fs.Rename(dir, trash); err != nil {
			return errors.Wrapf(err, "hide project %s", id)
		}
	}
	if err := s.index.Remove(ctx, id); err != nil {
		return err
	}
	if trash != "" {
		if err := s.fs.RemoveAll(trash); err != nil {
			log.WithField("project_id", id).WithError(err).Warn("storage: trash left for reconcile")
		}
	}
	return nil
}

func (s *Store) ListProjectIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.index.List(), nil
}

// ListProjects returns project metadata in index order. Ids whose metadata is
// missing or unreadable are logged and left out.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	ids := s.index.List()
	slots := make([]*models.Project, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.GetProject(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithField("project_id", id).WithError(err).Warn("storage: skipping indexed project")
				return nil
			}
			slots[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Project, 0, len(ids))
	for _, p := range slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) applyDefaults(p *models.Project) {
	ts := s.timestamp()
	if p.Status == "" {
		p.Status = models.ProjectDraft
	}
	if p.CreatedAt == "" {
		p.CreatedAt = ts
	}
	if p.UpdatedAt == "" {
		p.UpdatedAt = ts
	}
	if p.Date == "" {
		p.Date = p.CreatedAt[:min(len(p.CreatedAt), 10)]
	}
}

// publishProject writes the metadata of a new project and then indexes it.
// Artifacts left in the directory by a write that raced an earlier delete are
// cleared first. Callers hold the project lock and know no metadata exists.
func (s *Store) publishProject(ctx context.Context, id string, meta any) error {
	if err := s.fs.RemoveAll(s.projectDir(id)); err != nil {
		return errors.Wrapf(err, "clear stale files for %s", id)
	}
	if err := util.WriteJSONAtomic(s.fs, s.metaPath(id), meta); err != nil {
		return errors.Wrapf(err, "write metadata for %s", id)
	}
	if err := s.index.Add(ctx, id); err != nil {
		if rmErr := s.fs.RemoveAll(s.projectDir(id)); rmErr != nil {
			log.WithField("project_id", id).WithError(rmErr).Warn("storage: orphan metadata left for reconcile")
		}
		return err
	}
	return nil
}

func (s *Store) readMeta(id string) (map[string]any, bool, error) {
	var raw map[string]any
	found, err := s.readDoc(s.metaPath(id), &raw)
	if err != nil {
		return nil, false, err
	}
	return raw, found, nil
}

// mergeMeta applies patch to raw and persists the result. Callers hold the project lock.
func (s *Store) mergeMeta(id string, raw, patch map[string]any) (models.Project, error) {
	doc, err := mergePatch(raw, id, patch)
	if err != nil {
		return models.Project{}, err
	}
	doc["updatedAt"] = s.timestamp()
	p, err := decodeProject(doc)
	if err != nil {
		return models.Project{}, err
	}
	if err := models.Validate(p); err != nil {
		return models.Project{}, err
	}
	if err := util.WriteJSONAtomic(s.fs, s.metaPath(id), doc); err != nil {
		return models.Project{}, errors.Wrapf(err, "write metadata for %s", id)
	}
	return p, nil
}

func mergePatch(base map[string]any, id string, patch map[string]any) (map[string]any, error) {
	if v, ok := patch["id"]; ok && v != id {
		return nil, errs.NewValidation("id", "id is immutable")
	}
	out := make(map[string]any, len(base)+len(patch)+1)
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	out["id"] = id
	return out, nil
}

func decodeProject(doc map[string]any) (models.Project, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return models.Project{}, errors.Wrap(err, "encode project")
	}
	var p models.Project
	if err := json.Unmarshal(b, &p); err != nil {
		return models.Project{}, errs.NewValidation("", "invalid project document: %v", err)
	}
	return p, nil
}

// overlay writes the typed fields of p over doc so defaults land in the stored document.
func overlay(doc map[string]any, p models.Project) map[string]any {
	b, _ := json.Marshal(p)
	var typed map[string]any
	_ = json.Unmarshal(b, &typed)
	for k, v := range typed {
		doc[k] = v
	}
	return doc
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
