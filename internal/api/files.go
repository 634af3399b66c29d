package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"learnflow/internal/errs"
	"learnflow/internal/models"
	"learnflow/internal/storage"

	"github.com/gin-gonic/gin"
)

const uploadSubType = "docs"

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".json": "application/json",
}

func contentType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

func (s *Server) serveFile(c *gin.Context) {
	kind, ok := storage.ParseFileKind(c.Param("type"))
	if !ok {
		writeErr(c, notFound("file"))
		return
	}
	name := c.Param("fileName")
	f, info, err := s.store.OpenFile(c.Request.Context(), c.Param("projectId"), kind, c.Param("subType"), name)
	if err != nil {
		writeErr(c, err)
		return
	}
	defer f.Close()
	c.DataFromReader(http.StatusOK, info.Size(), contentType(name), f, map[string]string{
		"Cache-Control": "public, max-age=31536000",
	})
}

// uploadFiles stores multipart "files" under uploads/docs and records them in inputs.json.
func (s *Server) uploadFiles(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	form, err := c.MultipartForm()
	if err != nil {
		writeErr(c, errs.NewValidation("files", "parse multipart: %v", err))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		writeErr(c, errs.NewValidation("files", "no files provided"))
		return
	}
	uploaded := make([]models.InputFile, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		src, err := fh.Open()
		if err != nil {
			writeErr(c, fmt.Errorf("open upload %s: %w", name, err))
			return
		}
		rel, err := s.store.PutFile(ctx, id, storage.KindUploads, uploadSubType, name, src)
		src.Close()
		if err != nil {
			writeErr(c, err)
			return
		}
		size := fh.Size
		uploaded = append(uploaded, models.InputFile{
			Filename:     rel,
			OriginalName: fh.Filename,
			MIME:         contentType(name),
			Size:         &size,
			UploadedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	}
	_, err = s.store.UpdateInputs(ctx, id, func(cur models.Inputs) (models.Inputs, error) {
		cur.Files = mergeInputFiles(cur.Files, uploaded)
		return cur, nil
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": uploaded})
}

// mergeInputFiles replaces entries with the same filename and appends the rest.
func mergeInputFiles(cur, added []models.InputFile) []models.InputFile {
	out := make([]models.InputFile, 0, len(cur)+len(added))
	replaced := map[string]bool{}
	for _, a := range added {
		replaced[a.Filename] = true
	}
	for _, f := range cur {
		if !replaced[f.Filename] {
			out = append(out, f)
		}
	}
	return append(out, added...)
}
