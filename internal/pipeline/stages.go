package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"learnflow/internal/models"
	"learnflow/internal/providers"
	"learnflow/internal/storage"
	"learnflow/internal/util"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const (
	summaryContextChunks = 8
	chunksPerSection     = 3
	maxSlides            = 10
	maxImages            = 6
	minBlankWordRunes    = 5
)

var htmlPolicy = bluemonday.UGCPolicy()

func (g *Generator) index(ctx context.Context, projectID string) error {
	parsed, found, err := g.store.GetParsed(ctx, projectID)
	if err != nil {
		return err
	}
	if !found || strings.TrimSpace(parsed.Text) == "" {
		return util.ErrNoExtractableText
	}
	parts := util.ChunkText(parsed.Text, g.chunkSize, g.chunkOverlap)
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.Chunk{
			ID:    util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s", projectID, i, part)))[:16],
			Index: i,
			Text:  part,
		})
	}
	return g.store.SetChunkIndex(ctx, projectID, models.ChunkIndex{Chunks: chunks})
}

// summarize asks the LLM for a Markdown summary and stores it with sanitized HTML.
// Chapter level adds one section per group of chunks.
func (g *Generator) summarize(ctx context.Context, projectID string, cfg models.GenerationConfig) error {
	chunks, err := g.chunks(ctx, projectID)
	if err != nil {
		return err
	}
	inputs, _, err := g.store.GetInputs(ctx, projectID)
	if err != nil {
		return err
	}

	var md strings.Builder
	if cfg.SummaryLevel != "chapter" {
		text, err := g.generate(ctx, providers.OpSummary, inputs.Prompts.Summary, cfg.Language, chunkTexts(chunks, summaryContextChunks))
		if err != nil {
			return err
		}
		md.WriteString(text)
		md.WriteString("\n\n")
	}
	if cfg.SummaryLevel == "chapter" || cfg.SummaryLevel == "both" {
		for i, group := range groupChunks(chunks, chunksPerSection) {
			text, err := g.generate(ctx, providers.OpSlides, inputs.Prompts.Summary, cfg.Language, chunkTexts(group, 0))
			if err != nil {
				return err
			}
			fmt.Fprintf(&md, "### %s %d\n\n%s\n\n", sectionLabel(cfg.Language), i+1, text)
		}
	}

	text := strings.TrimSpace(md.String())
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return g.store.SetSummary(ctx, projectID, models.Summary{
		Text: text,
		HTML: string(htmlPolicy.SanitizeBytes(buf.Bytes())),
	})
}

// quiz builds fill-in-the-blank questions from source sentences, falling back to
// true/false when a sentence has no word long enough to blank out.
func (g *Generator) quiz(ctx context.Context, projectID string, cfg models.GenerationConfig) error {
	chunks, err := g.chunks(ctx, projectID)
	if err != nil {
		return err
	}
	type candidate struct {
		sentence string
		answer   string
		chunk    int
	}
	var cands []candidate
	var pool []string
	for _, c := range chunks {
		for _, s := range util.Sentences(c.Text) {
			w := blankWord(s)
			cands = append(cands, candidate{sentence: s, answer: w, chunk: c.Index})
			if w != "" {
				pool = append(pool, w)
			}
		}
	}

	zh := cfg.Language == "zh"
	questions := make([]models.QuizQuestion, 0, cfg.QuizCount)
	for i := 0; i < len(cands) && len(questions) < cfg.QuizCount; i++ {
		c := cands[i]
		q := models.QuizQuestion{
			ID:          fmt.Sprintf("q%d", len(questions)+1),
			Explanation: fmt.Sprintf("%s %d: %s", sourceLabel(cfg.Language), c.chunk+1, util.Snippet(c.sentence, 200)),
		}
		distractors := pickDistractors(pool, c.answer, 3, i)
		if c.answer == "" || len(distractors) == 0 {
			q.Question = util.Snippet(c.sentence, 300)
			if zh {
				q.Question = "判断正误：" + q.Question
				q.Options = []string{"正确", "错误"}
			} else {
				q.Question = "True or false: " + q.Question
				q.Options = []string{"True", "False"}
			}
			q.CorrectAnswer = 0
		} else {
			blanked := strings.Replace(c.sentence, c.answer, "____", 1)
			if zh {
				q.Question = "填空：" + util.Snippet(blanked, 300)
			} else {
				q.Question = "Fill in the blank: " + util.Snippet(blanked, 300)
			}
			pos := i % (len(distractors) + 1)
			opts := append([]string{}, distractors[:pos]...)
			opts = append(opts, c.answer)
			q.Options = append(opts, distractors[pos:]...)
			q.CorrectAnswer = pos
		}
		questions = append(questions, q)
	}
	return g.store.SetQuiz(ctx, projectID, models.QuizSet{Questions: questions})
}

// images renders one placeholder SVG per leading chunk under generated/images.
func (g *Generator) images(ctx context.Context, projectID string, cfg models.GenerationConfig) error {
	chunks, err := g.chunks(ctx, projectID)
	if err != nil {
		return err
	}
	inputs, _, err := g.store.GetInputs(ctx, projectID)
	if err != nil {
		return err
	}
	items := make([]models.ImageItem, 0, maxImages)
	for i, c := range chunks {
		if i == maxImages {
			break
		}
		id := fmt.Sprintf("img-%d", i+1)
		title := util.Snippet(util.KeySentence(c.Text, inputs.Prompts.Images, 0), 60)
		rel, err := g.store.PutFile(ctx, projectID, storage.KindGenerated, "images", id+".svg", strings.NewReader(placeholderSVG(title, cfg.ImageStyle)))
		if err != nil {
			return err
		}
		items = append(items, models.ImageItem{
			ID:          id,
			URL:         "/files/" + projectID + "/generated/" + rel,
			Title:       title,
			Description: util.Snippet(c.Text, 200),
			Category:    cfg.ImageStyle,
		})
	}
	return g.store.SetImages(ctx, projectID, models.ImageSet{Items: items})
}

func (g *Generator) slides(ctx context.Context, projectID string, cfg models.GenerationConfig) error {
	chunks, err := g.chunks(ctx, projectID)
	if err != nil {
		return err
	}
	p, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	inputs, _, err := g.store.GetInputs(ctx, projectID)
	if err != nil {
		return err
	}
	deck := []models.Slide{{ID: "slide-1", Title: p.Name, Content: p.Description, Order: 1}}
	for _, group := range groupChunks(chunks, chunksPerSection) {
		if len(deck) == maxSlides {
			break
		}
		body, err := g.generate(ctx, providers.OpSlides, inputs.Prompts.PPT, cfg.Language, chunkTexts(group, 0))
		if err != nil {
			return err
		}
		n := len(deck) + 1
		deck = append(deck, models.Slide{
			ID:      fmt.Sprintf("slide-%d", n),
			Title:   util.Snippet(util.KeySentence(group[0].Text, inputs.Prompts.PPT, 0), 60),
			Content: body,
			Order:   n,
		})
	}
	return g.store.SetSlides(ctx, projectID, models.SlideDeck{Slides: deck})
}

// Finalize drafts a publish manifest for the default platform from the summary,
// unless one was already saved.
func (g *Generator) Finalize(ctx context.Context, projectID string) error {
	const platform = "xiaohongshu"
	if _, found, err := g.store.GetPublish(ctx, projectID, platform); err != nil || found {
		return err
	}
	p, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	m := models.PublishManifest{Platform: platform, Title: p.Name, Tags: p.Tags, Status: "draft"}
	if s, found, err := g.store.GetSummary(ctx, projectID); err != nil {
		return err
	} else if found {
		m.Summary = util.Snippet(strings.NewReplacer("#", "", "- ", "").Replace(s.Text), 200)
		m.Sections = []models.PublishSection{{HTML: s.HTML}}
	}
	if imgs, found, err := g.store.GetImages(ctx, projectID); err != nil {
		return err
	} else if found {
		for _, it := range imgs.Items {
			m.Images = append(m.Images, models.PublishImage{Path: it.URL, Alt: it.Title})
		}
		if len(m.Images) > 0 {
			m.Cover = m.Images[0].Path
		}
	}
	return g.store.SetPublish(ctx, projectID, platform, m)
}

func (g *Generator) generate(ctx context.Context, op, prompt, language string, texts []string) (string, error) {
	resp, _, err := g.llm.Generate(ctx, providers.GenerateRequest{
		Operation: op,
		Prompt:    prompt,
		Context:   texts,
		Language:  language,
	})
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", op, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func groupChunks(chunks []models.Chunk, size int) [][]models.Chunk {
	var out [][]models.Chunk
	for i := 0; i < len(chunks); i += size {
		out = append(out, chunks[i:min(i+size, len(chunks))])
	}
	return out
}

// blankWord picks the longest word of s worth blanking out, or "".
func blankWord(s string) string {
	best := ""
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, ",.;:!?()[]{}\"'`")
		if utf8.RuneCountInString(f) >= minBlankWordRunes && utf8.RuneCountInString(f) > utf8.RuneCountInString(best) {
			best = f
		}
	}
	return best
}

// pickDistractors walks pool from a seed offset and returns up to n distinct words other than answer.
func pickDistractors(pool []string, answer string, n, seed int) []string {
	if answer == "" || len(pool) == 0 {
		return nil
	}
	seen := map[string]bool{strings.ToLower(answer): true}
	out := make([]string, 0, n)
	for i := 0; i < len(pool) && len(out) < n; i++ {
		w := pool[(seed+i*7)%len(pool)]
		if seen[strings.ToLower(w)] {
			continue
		}
		seen[strings.ToLower(w)] = true
		out = append(out, w)
	}
	return out
}

func placeholderSVG(title, style string) string {
	fill := map[string]string{"academic": "#f4f1ea", "flat": "#e8f0fe", "realistic": "#dfe6e9", "wireframe": "#ffffff"}[style]
	if fill == "" {
		fill = "#e8f0fe"
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="800" height="450" viewBox="0 0 800 450">`+
		`<rect width="800" height="450" fill="%s" stroke="#334155"/>`+
		`<text x="400" y="225" font-size="28" text-anchor="middle" fill="#334155">%s</text></svg>`,
		fill, html.EscapeString(title))
}

func sectionLabel(language string) string {
	if language == "zh" {
		return "章节"
	}
	return "Part"
}

func sourceLabel(language string) string {
	if language == "zh" {
		return "来源片段"
	}
	return "Source chunk"
}
