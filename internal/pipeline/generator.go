// Package pipeline produces the artifacts of each generation stage. Its output is
// a deterministic placeholder built from the project's inputs; real model calls
// go through the configured providers.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"learnflow/internal/config"
	"learnflow/internal/logging"
	"learnflow/internal/models"
	"learnflow/internal/providers"
	"learnflow/internal/storage"
)

// LLM is the part of providers.Manager the generator needs.
type LLM interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)
}

type Generator struct {
	store        *storage.Store
	llm          LLM
	chunkSize    int
	chunkOverlap int
	now          func() time.Time
}

func NewGenerator(store *storage.Store, llm LLM, cfg config.Config) *Generator {
	return &Generator{
		store:        store,
		llm:          llm,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RunStage writes the artifact that step is responsible for.
func (g *Generator) RunStage(ctx context.Context, projectID string, step models.Step, cfg models.GenerationConfig) error {
	logger := logging.ForProject(projectID).WithField("step", step)
	start := time.Now()
	var err error
	switch step {
	case models.StepParsing:
		err = g.parse(ctx, projectID)
	case models.StepIndexing:
		err = g.index(ctx, projectID)
	case models.StepSummary:
		err = g.summarize(ctx, projectID, cfg)
	case models.StepQuiz:
		err = g.quiz(ctx, projectID, cfg)
	case models.StepImages:
		err = g.images(ctx, projectID, cfg)
	case models.StepPPT:
		err = g.slides(ctx, projectID, cfg)
	default:
		return fmt.Errorf("no generator for step %q", step)
	}
	if err != nil {
		logger.WithError(err).Warn("pipeline: stage failed")
		return err
	}
	logger.WithField("elapsed", time.Since(start).String()).Info("pipeline: stage done")
	return nil
}

func (g *Generator) chunks(ctx context.Context, projectID string) ([]models.Chunk, error) {
	idx, found, err := g.store.GetChunkIndex(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !found || len(idx.Chunks) == 0 {
		return nil, fmt.Errorf("project %s has no indexed chunks", projectID)
	}
	return idx.Chunks, nil
}

func chunkTexts(chunks []models.Chunk, max int) []string {
	if max > 0 && len(chunks) > max {
		chunks = chunks[:max]
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}
