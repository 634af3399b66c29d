package storage

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"learnflow/internal/envelope"
	"learnflow/internal/errs"
	"learnflow/internal/models"

	"github.com/maruel/natural"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// getDoc reads one artifact. Artifacts of a project without metadata are not
// present, even if a late writer left a file behind after a delete.
func getDoc[T any](ctx context.Context, s *Store, id string, a Artifact) (T, bool, error) {
	var out T
	if ok, err := s.readable(ctx, id); !ok || err != nil {
		return out, false, err
	}
	found, err := s.readDoc(s.artifactPath(id, a), &out)
	return out, found, err
}

// getList reads a list-shaped artifact through the envelope normalizer.
func getList[T any](ctx context.Context, s *Store, id string, a Artifact, field string) (T, bool, error) {
	var out T
	if ok, err := s.readable(ctx, id); !ok || err != nil {
		return out, false, err
	}
	b, err := s.readRaw(s.artifactPath(id, a))
	if err != nil || b == nil {
		return out, false, err
	}
	envelope.Decode(b, field, &out)
	return out, true, nil
}

// readable reports whether id names a project whose metadata is present.
func (s *Store) readable(ctx context.Context, id string) (bool, error) {
	if ValidateProjectID(id) != nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.exists(s.metaPath(id))
}

func (s *Store) setDoc(ctx context.Context, id string, a Artifact, v any) error {
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return s.writeForProject(id, s.artifactPath(id, a), v)
}

func (s *Store) GetSummary(ctx context.Context, id string) (models.Summary, bool, error) {
	return getDoc[models.Summary](ctx, s, id, ArtifactSummary)
}

func (s *Store) SetSummary(ctx context.Context, id string, v models.Summary) error {
	return s.setDoc(ctx, id, ArtifactSummary, v)
}

func (s *Store) GetQuiz(ctx context.Context, id string) (models.QuizSet, bool, error) {
	return getList[models.QuizSet](ctx, s, id, ArtifactQuiz, envelope.QuizField)
}

func (s *Store) SetQuiz(ctx context.Context, id string, v models.QuizSet) error {
	if v.Questions == nil {
		v.Questions = []models.QuizQuestion{}
	}
	return s.setDoc(ctx, id, ArtifactQuiz, v)
}

func (s *Store) GetImages(ctx context.Context, id string) (models.ImageSet, bool, error) {
	return getList[models.ImageSet](ctx, s, id, ArtifactImages, envelope.ImagesField)
}

func (s *Store) SetImages(ctx context.Context, id string, v models.ImageSet) error {
	if v.Items == nil {
		v.Items = []models.ImageItem{}
	}
	return s.setDoc(ctx, id, ArtifactImages, v)
}

func (s *Store) GetSlides(ctx context.Context, id string) (models.SlideDeck, bool, error) {
	return getList[models.SlideDeck](ctx, s, id, ArtifactSlides, envelope.SlidesField)
}

func (s *Store) SetSlides(ctx context.Context, id string, v models.SlideDeck) error {
	if v.Slides == nil {
		v.Slides = []models.Slide{}
	}
	return s.setDoc(ctx, id, ArtifactSlides, v)
}

func (s *Store) GetReferences(ctx context.Context, id string) (models.ReferenceList, bool, error) {
	return getList[models.ReferenceList](ctx, s, id, ArtifactReferences, envelope.ReferencesField)
}

func (s *Store) SetReferences(ctx context.Context, id string, v models.ReferenceList) error {
	if v.References == nil {
		v.References = []models.Reference{}
	}
	return s.setDoc(ctx, id, ArtifactReferences, v)
}

func (s *Store) GetInputs(ctx context.Context, id string) (models.Inputs, bool, error) {
	return getDoc[models.Inputs](ctx, s, id, ArtifactInputs)
}

func (s *Store) SetInputs(ctx context.Context, id string, v models.Inputs) error {
	return s.setDoc(ctx, id, ArtifactInputs, v)
}

// UpdateInputs runs fn on the current inputs and persists the result under the
// project lock, so concurrent uploads to one project all land in inputs.json.
func (s *Store) UpdateInputs(ctx context.Context, id string, fn func(cur models.Inputs) (models.Inputs, error)) (models.Inputs, error) {
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return models.Inputs{}, err
	}
	defer unlock()

	var cur models.Inputs
	if _, err := s.readDoc(s.artifactPath(id, ArtifactInputs), &cur); err != nil {
		return models.Inputs{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return models.Inputs{}, err
	}
	if err := s.writeForProject(id, s.artifactPath(id, ArtifactInputs), next); err != nil {
		return models.Inputs{}, err
	}
	return next, nil
}

func (s *Store) GetConfig(ctx context.Context, id string) (models.GenerationConfig, bool, error) {
	return getDoc[models.GenerationConfig](ctx, s, id, ArtifactConfig)
}

func (s *Store) SetConfig(ctx context.Context, id string, v models.GenerationConfig) error {
	return s.setDoc(ctx, id, ArtifactConfig, v)
}

func (s *Store) GetParsed(ctx context.Context, id string) (models.ParsedDocument, bool, error) {
	return getDoc[models.ParsedDocument](ctx, s, id, ArtifactParsed)
}

func (s *Store) SetParsed(ctx context.Context, id string, v models.ParsedDocument) error {
	return s.setDoc(ctx, id, ArtifactParsed, v)
}

func (s *Store) GetChunkIndex(ctx context.Context, id string) (models.ChunkIndex, bool, error) {
	return getDoc[models.ChunkIndex](ctx, s, id, ArtifactIndex)
}

func (s *Store) SetChunkIndex(ctx context.Context, id string, v models.ChunkIndex) error {
	return s.setDoc(ctx, id, ArtifactIndex, v)
}

func (s *Store) GetStatus(ctx context.Context, id string) (models.JobStatus, bool, error) {
	return getDoc[models.JobStatus](ctx, s, id, ArtifactStatus)
}

func (s *Store) SetStatus(ctx context.Context, id string, v models.JobStatus) error {
	return s.setDoc(ctx, id, ArtifactStatus, v)
}

// UpdateStatus runs fn on the current status and persists what it returns, all
// under the project lock. found is false when no status document exists yet.
func (s *Store) UpdateStatus(ctx context.Context, id string, fn func(cur models.JobStatus, found bool) (models.JobStatus, error)) (models.JobStatus, error) {
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return models.JobStatus{}, err
	}
	defer unlock()

	var cur models.JobStatus
	found, err := s.readDoc(s.artifactPath(id, ArtifactStatus), &cur)
	if err != nil {
		return models.JobStatus{}, err
	}
	next, err := fn(cur, found)
	if err != nil {
		return models.JobStatus{}, err
	}
	if err := s.writeForProject(id, s.artifactPath(id, ArtifactStatus), next); err != nil {
		return models.JobStatus{}, err
	}
	return next, nil
}

func ValidatePlatform(platform string) error {
	for _, p := range models.PublishPlatforms {
		if p == platform {
			return nil
		}
	}
	return errs.NewValidation("platform", "unsupported platform %q", platform)
}

func (s *Store) GetPublish(ctx context.Context, id, platform string) (models.PublishManifest, bool, error) {
	var out models.PublishManifest
	if ValidatePlatform(platform) != nil {
		return out, false, nil
	}
	if ok, err := s.readable(ctx, id); !ok || err != nil {
		return out, false, err
	}
	found, err := s.readDoc(s.publishPath(id, platform), &out)
	return out, found, err
}

func (s *Store) SetPublish(ctx context.Context, id, platform string, v models.PublishManifest) error {
	if err := ValidatePlatform(platform); err != nil {
		return err
	}
	if v.Platform == "" {
		v.Platform = platform
	}
	if v.Platform != platform {
		return errs.NewValidation("platform", "manifest platform %q does not match %q", v.Platform, platform)
	}
	unlock, err := s.lockProject(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return s.writeForProject(id, s.publishPath(id, platform), v)
}

// ListPublishPlatforms returns the platforms that have a manifest, in natural order.
func (s *Store) ListPublishPlatforms(ctx context.Context, id string) ([]string, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, filepath.Join(s.projectDir(id), publishDir))
	if isNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list publish manifests for %s", id)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		platform := strings.TrimSuffix(name, ".json")
		if ValidatePlatform(platform) == nil {
			out = append(out, platform)
		}
	}
	sort.Sort(natural.StringSlice(out))
	return out, nil
}
