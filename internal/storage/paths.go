package storage

import (
	"path/filepath"
	"regexp"

	"learnflow/internal/errs"
)

const (
	indexFile   = "projects.json"
	projectsDir = "projects"
	trashPrefix = ".trash-"
	metaFile    = "meta.json"
	publishDir  = "publish"
)

// Artifact names a per-project JSON document.
type Artifact string

const (
	ArtifactInputs     Artifact = "inputs"
	ArtifactConfig     Artifact = "config"
	ArtifactStatus     Artifact = "status"
	ArtifactSummary    Artifact = "summary"
	ArtifactQuiz       Artifact = "quiz"
	ArtifactImages     Artifact = "images"
	ArtifactSlides     Artifact = "slides"
	ArtifactReferences Artifact = "references"
	ArtifactParsed     Artifact = "parsed"
	ArtifactIndex      Artifact = "index"
)

// FileKind is a top-level binary file area inside a project directory.
type FileKind string

const (
	KindUploads   FileKind = "uploads"
	KindGenerated FileKind = "generated"
	KindTemp      FileKind = "temp"
)

func ParseFileKind(s string) (FileKind, bool) {
	switch k := FileKind(s); k {
	case KindUploads, KindGenerated, KindTemp:
		return k, true
	default:
		return "", false
	}
}

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return errs.NewValidation("id", "invalid project id %q", id)
	}
	return nil
}

func (s *Store) projectDir(id string) string {
	return filepath.Join(s.root, projectsDir, id)
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.projectDir(id), metaFile)
}

func (s *Store) artifactPath(id string, a Artifact) string {
	return filepath.Join(s.projectDir(id), string(a)+".json")
}

func (s *Store) publishPath(id, platform string) string {
	return filepath.Join(s.projectDir(id), publishDir, platform+".json")
}
