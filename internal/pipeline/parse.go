package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"learnflow/internal/logging"
	"learnflow/internal/models"
	"learnflow/internal/storage"
	"learnflow/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/afero"
)

// parse extracts text from the uploaded inputs into parsed.json and lists the
// sources in references.json.
func (g *Generator) parse(ctx context.Context, projectID string) error {
	inputs, _, err := g.store.GetInputs(ctx, projectID)
	if err != nil {
		return err
	}
	files := make([]string, 0, len(inputs.Files))
	for _, f := range inputs.Files {
		files = append(files, f.Filename)
	}
	if len(files) == 0 {
		if files, err = g.store.ListFiles(ctx, projectID, storage.KindUploads); err != nil {
			return err
		}
	}

	var parts []string
	var sources []string
	refs := make([]models.Reference, 0, len(files)+len(inputs.URLs))
	for _, rel := range files {
		text, err := g.extract(ctx, projectID, rel)
		if err != nil {
			logging.ForProject(projectID).WithField("file", rel).WithError(err).Warn("pipeline: skipping input")
			continue
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
		sources = append(sources, rel)
		refs = append(refs, models.Reference{
			ID:    fmt.Sprintf("ref-%d", len(refs)+1),
			Title: filepath.Base(rel),
			URL:   "/files/" + projectID + "/uploads/" + rel,
			Type:  "file",
		})
	}
	if custom := util.SanitizeText(inputs.Prompts.Custom); custom != "" {
		parts = append(parts, custom)
		sources = append(sources, "prompt")
	}
	for _, raw := range inputs.URLs {
		title := raw
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			title = u.Host
		}
		refs = append(refs, models.Reference{ID: fmt.Sprintf("ref-%d", len(refs)+1), Title: title, URL: raw, Type: "web"})
	}

	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if text == "" {
		if text, err = g.outline(ctx, projectID, inputs); err != nil {
			return err
		}
		sources = append(sources, "outline")
	}
	if err := g.store.SetParsed(ctx, projectID, models.ParsedDocument{Text: text, Sources: sources}); err != nil {
		return err
	}
	return g.store.SetReferences(ctx, projectID, models.ReferenceList{References: refs})
}

// outline stands in for extracted text when the inputs carry no readable file,
// so a project given only links or prompts still runs to completion.
func (g *Generator) outline(ctx context.Context, projectID string, inputs models.Inputs) (string, error) {
	p, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	lines := []string{util.SanitizeText(p.Name), util.SanitizeText(p.Description)}
	for _, prompt := range []string{inputs.Prompts.Summary, inputs.Prompts.Images, inputs.Prompts.PPT} {
		lines = append(lines, util.SanitizeText(prompt))
	}
	for _, raw := range inputs.URLs {
		lines = append(lines, "Source: "+raw+".")
	}
	if len(p.Tags) > 0 {
		lines = append(lines, "Topics: "+strings.Join(p.Tags, ", ")+".")
	}
	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return "", util.ErrNoExtractableText
	}
	logging.ForProject(projectID).Info("pipeline: no readable inputs, using project outline")
	return strings.Join(kept, "\n"), nil
}

// extract reads one upload, addressed as "<subType>/<name>".
func (g *Generator) extract(ctx context.Context, projectID, rel string) (string, error) {
	subType, name, ok := strings.Cut(rel, "/")
	if !ok {
		return "", fmt.Errorf("input %q is not <subType>/<name>", rel)
	}
	f, info, err := g.store.OpenFile(ctx, projectID, storage.KindUploads, subType, name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extractPDF(f, info.Size())
	case ".txt", ".md":
		b, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rel, err)
		}
		return util.SanitizeText(string(b)), nil
	case ".html", ".htm":
		b, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rel, err)
		}
		return util.SanitizeText(bluemonday.StrictPolicy().Sanitize(string(b))), nil
	default:
		return "", fmt.Errorf("unsupported input type %q", filepath.Ext(name))
	}
}

func extractPDF(f afero.File, size int64) (string, error) {
	r, err := pdf.NewReader(f, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return util.SanitizeText(buf.String()), nil
}
