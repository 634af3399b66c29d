package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"learnflow/internal/config"
	"learnflow/internal/job"
	"learnflow/internal/models"
	"learnflow/internal/providers"
	"learnflow/internal/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const lesson = `Photosynthesis converts light energy into chemical energy. Chlorophyll absorbs mostly blue and red light.
The Calvin cycle fixes carbon dioxide into sugars. Stomata regulate the exchange of gases with the atmosphere.
Plants release oxygen as a byproduct of splitting water molecules. Glucose stores the captured energy for later use.`

func newTestRunner(t *testing.T) (*LocalRunner, *job.Tracker, *storage.Store) {
	t.Helper()
	store, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	_, err = store.CreateProject(context.Background(), models.Project{ID: "bio", Name: "Biology 101", Tags: []string{"plants"}})
	require.NoError(t, err)

	llm := providers.NewStaticManager(providers.NamedLLMProvider{Ref: providers.ProviderRef{Name: "mock"}, Provider: providers.NewMockProvider()})
	gen := NewGenerator(store, llm, config.Config{ChunkSize: 160, ChunkOverlap: 20})
	tracker := job.NewTracker(store)
	return NewLocalRunner(tracker, gen), tracker, store
}

func upload(t *testing.T, store *storage.Store, name, body string) {
	t.Helper()
	ctx := context.Background()
	rel, err := store.PutFile(ctx, "bio", storage.KindUploads, "docs", name, strings.NewReader(body))
	require.NoError(t, err)
	inputs, _, err := store.GetInputs(ctx, "bio")
	require.NoError(t, err)
	inputs.Files = append(inputs.Files, models.InputFile{Filename: rel})
	require.NoError(t, store.SetInputs(ctx, "bio", inputs))
}

func TestRunProducesEveryArtifact(t *testing.T) {
	runner, tracker, store := newTestRunner(t)
	ctx := context.Background()
	upload(t, store, "notes.txt", lesson)

	cfg := models.DefaultGenerationConfig()
	cfg.Language = "en"
	cfg.QuizCount = 3
	cfg.AutoImages = true
	cfg.GeneratePPT = true
	cfg.SummaryLevel = "both"
	st, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)

	runner.Run(ctx, "bio", st, cfg)

	final, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobComplete, final.Status, final.LastError)
	require.Equal(t, 100, final.Percent)
	require.Equal(t, models.StepComplete, final.Step)

	p, err := store.GetProject(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.ProjectComplete, p.Status)

	sum, found, err := store.GetSummary(ctx, "bio")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, sum.Text, "## Summary")
	require.Contains(t, sum.Text, "### Part 1")
	require.Contains(t, sum.HTML, "<h2>Summary</h2>")
	require.Contains(t, sum.HTML, "<li>")

	quiz, _, err := store.GetQuiz(ctx, "bio")
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 3)
	for _, q := range quiz.Questions {
		require.NoError(t, models.Validate(q))
		require.Less(t, q.CorrectAnswer, len(q.Options))
		require.Contains(t, q.Explanation, "Source chunk")
	}

	imgs, _, err := store.GetImages(ctx, "bio")
	require.NoError(t, err)
	require.NotEmpty(t, imgs.Items)
	require.Equal(t, "flat", imgs.Items[0].Category)
	require.Equal(t, "/files/bio/generated/images/img-1.svg", imgs.Items[0].URL)
	f, _, err := store.OpenFile(ctx, "bio", storage.KindGenerated, "images", "img-1.svg")
	require.NoError(t, err)
	svg, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(svg), "<svg"))

	deck, _, err := store.GetSlides(ctx, "bio")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(deck.Slides), 2)
	require.Equal(t, "Biology 101", deck.Slides[0].Title)
	for i, s := range deck.Slides {
		require.Equal(t, i+1, s.Order)
	}

	refs, _, err := store.GetReferences(ctx, "bio")
	require.NoError(t, err)
	require.Len(t, refs.References, 1)
	require.Equal(t, "/files/bio/uploads/docs/notes.txt", refs.References[0].URL)

	draft, found, err := store.GetPublish(ctx, "bio", "xiaohongshu")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "draft", draft.Status)
	require.Equal(t, "Biology 101", draft.Title)
	require.Equal(t, imgs.Items[0].URL, draft.Cover)
}

func TestRunSkipsDisabledStages(t *testing.T) {
	runner, tracker, store := newTestRunner(t)
	ctx := context.Background()
	upload(t, store, "notes.md", lesson)

	cfg := models.DefaultGenerationConfig()
	cfg.QuizCount = 0
	st, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)
	require.Equal(t, []models.Step{models.StepParsing, models.StepIndexing, models.StepSummary}, st.Stages)

	runner.Run(ctx, "bio", st, cfg)

	final, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobComplete, final.Status)
	_, found, err := store.GetQuiz(ctx, "bio")
	require.NoError(t, err)
	require.False(t, found)

	sum, _, err := store.GetSummary(ctx, "bio")
	require.NoError(t, err)
	require.Contains(t, sum.Text, "## 摘要")
}

func TestRunWithOnlyURLsCompletes(t *testing.T) {
	runner, tracker, store := newTestRunner(t)
	ctx := context.Background()
	require.NoError(t, store.SetInputs(ctx, "bio", models.Inputs{URLs: []string{"https://example.com/article"}}))

	cfg := models.DefaultGenerationConfig()
	cfg.Language = "en"
	st, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)
	runner.Run(ctx, "bio", st, cfg)

	final, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobComplete, final.Status, final.LastError)
	require.Equal(t, 100, final.Percent)

	parsed, found, err := store.GetParsed(ctx, "bio")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, parsed.Text, "Biology 101")
	require.Contains(t, parsed.Text, "https://example.com/article")
	require.Equal(t, []string{"outline"}, parsed.Sources)

	refs, found, err := store.GetReferences(ctx, "bio")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, refs.References, 1)
	require.Equal(t, "web", refs.References[0].Type)

	_, found, err = store.GetSummary(ctx, "bio")
	require.NoError(t, err)
	require.True(t, found)
}

type brokenLLM struct{}

func (brokenLLM) Generate(context.Context, providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	return providers.GenerateResponse{}, providers.ProviderInfo{}, errors.New("invalid api key")
}

func TestStageFailureLatchesError(t *testing.T) {
	_, tracker, store := newTestRunner(t)
	ctx := context.Background()
	upload(t, store, "notes.txt", lesson)
	runner := NewLocalRunner(tracker, NewGenerator(store, brokenLLM{}, config.Config{ChunkSize: 160, ChunkOverlap: 20}))

	cfg := models.DefaultGenerationConfig()
	st, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)
	runner.Run(ctx, "bio", st, cfg)

	final, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobError, final.Status)
	require.Equal(t, models.StepSummary, final.Step)
	require.Contains(t, final.LastError, "invalid api key")

	p, err := store.GetProject(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.ProjectError, p.Status)
}

func TestSupersededRunStopsQuietly(t *testing.T) {
	runner, tracker, store := newTestRunner(t)
	ctx := context.Background()
	upload(t, store, "notes.txt", lesson)

	cfg := models.DefaultGenerationConfig()
	first, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)
	second, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)

	runner.Run(ctx, "bio", first, cfg)

	cur, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, second.RunID, cur.RunID)
	require.Equal(t, models.JobRunning, cur.Status)
	require.Equal(t, models.StepParsing, cur.Step)
}

func TestLaunchRunsInBackground(t *testing.T) {
	runner, tracker, store := newTestRunner(t)
	ctx := context.Background()
	upload(t, store, "notes.txt", lesson)

	cfg := models.DefaultGenerationConfig()
	st, err := tracker.Start(ctx, "bio", cfg)
	require.NoError(t, err)
	require.NoError(t, runner.Launch(ctx, "bio", st, cfg))
	runner.Wait()

	final, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobComplete, final.Status)
}

func TestParseStripsHTMLMarkup(t *testing.T) {
	runner, _, store := newTestRunner(t)
	ctx := context.Background()
	upload(t, store, "page.html", `<html><body><h1>Cells</h1><script>alert(1)</script><p>Mitochondria make ATP.</p></body></html>`)

	require.NoError(t, runner.generator.RunStage(ctx, "bio", models.StepParsing, models.DefaultGenerationConfig()))
	doc, found, err := store.GetParsed(ctx, "bio")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, doc.Text, "Mitochondria make ATP.")
	require.NotContains(t, doc.Text, "<p>")
	require.NotContains(t, doc.Text, "alert")
	require.Equal(t, []string{"docs/page.html"}, doc.Sources)
}

func TestQuizFallsBackToTrueFalse(t *testing.T) {
	_, _, store := newTestRunner(t)
	ctx := context.Background()
	llm := providers.NewStaticManager(providers.NamedLLMProvider{Ref: providers.ProviderRef{Name: "mock"}, Provider: providers.NewMockProvider()})
	gen := NewGenerator(store, llm, config.Config{ChunkSize: 500})
	require.NoError(t, store.SetChunkIndex(ctx, "bio", models.ChunkIndex{Chunks: []models.Chunk{{ID: "c1", Text: "水是液体。"}}}))

	cfg := models.DefaultGenerationConfig()
	cfg.QuizCount = 5
	require.NoError(t, gen.RunStage(ctx, "bio", models.StepQuiz, cfg))

	quiz, _, err := store.GetQuiz(ctx, "bio")
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	require.Equal(t, []string{"正确", "错误"}, quiz.Questions[0].Options)
	require.Equal(t, 0, quiz.Questions[0].CorrectAnswer)
}

func TestStagesRequireChunks(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	err := runner.generator.RunStage(context.Background(), "bio", models.StepSummary, models.DefaultGenerationConfig())
	require.ErrorContains(t, err, "no indexed chunks")
}
