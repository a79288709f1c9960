package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/soa-tracker/internal/scanning"
)

// Page is one image handed to an engine: the image itself, or one rastered PDF page
type Page struct {
	Data     []byte
	MimeType string
}

// Job is the state of one document moving through the strategies.
// It is owned by a single pipeline invocation.
type Job struct {
	Document scanning.Document
	// Path is the staged copy of the document on disk
	Path string
	// Text is the raw text recovered by the text stage, reused by later stages
	Text  string
	Today time.Time

	Logger *slog.Logger

	rasterizer scanning.Rasterizer
	maxPages   int
	pages      []Page
}

// NewJob creates a Job for doc staged at path
func NewJob(doc scanning.Document, path string, today time.Time) *Job {
	return &Job{Document: doc, Path: path, Today: today, Logger: slog.Default()}
}

// Pages returns the document as images. PDFs are rastered once and cached.
func (j *Job) Pages(ctx context.Context) ([]Page, error) {
	if j.pages != nil {
		return j.pages, nil
	}

	if j.Document.Kind != scanning.KindPDF {
		j.pages = []Page{{Data: j.Document.Data, MimeType: j.Document.MimeType}}
		return j.pages, nil
	}

	if j.rasterizer == nil {
		return nil, fmt.Errorf("no rasterizer configured for PDF pages")
	}
	images, err := j.rasterizer.Pages(ctx, j.Document.Data, j.maxPages)
	if err != nil {
		return nil, fmt.Errorf("rasterizing PDF: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages := make([]Page, 0, len(images))
	for _, img := range images {
		pages = append(pages, Page{Data: img, MimeType: "image/png"})
	}
	j.pages = pages
	return j.pages, nil
}
