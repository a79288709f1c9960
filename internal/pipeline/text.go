package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/zombor/soa-tracker/internal/scanning"
)

// MinTextChars is the number of non-whitespace characters a text source must produce to be used
const MinTextChars = 20

// TextStrategy recovers raw text and asks a text model to structure it.
// Text comes from the first source clearing MinTextChars: PDF text layer, OCR, then the vision model
// transcribing the image. When none does, the chain halts with ErrExtractionQuality.
type TextStrategy struct {
	Layer  scanning.TextLayer
	Tables scanning.TableDetector
	OCR    scanning.OCR
	Vision scanning.VisionModel
	Model  scanning.TextModel
}

func (s TextStrategy) Method() Method { return MethodAIText }

func (s TextStrategy) Attempt(ctx context.Context, job *Job) ([]scanning.LineItem, error) {
	text := s.recover(ctx, job)
	if !usable(text) {
		return nil, Halt(ErrExtractionQuality)
	}
	job.Text = text

	if s.Model == nil {
		return nil, nil
	}
	resp, err := s.Model.Complete(ctx, scanning.TextItemsPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("structuring text: %w", err)
	}
	rows, err := scanning.ParseLineItems(resp)
	if err != nil {
		return nil, fmt.Errorf("parsing text response: %w", err)
	}
	return scanning.NormalizeItems(rows, job.Today), nil
}

func (s TextStrategy) recover(ctx context.Context, job *Job) string {
	sources := []struct {
		name string
		read func(context.Context, *Job) (string, error)
	}{
		{"text_layer", s.textLayer},
		{"ocr", s.ocr},
		{"vision_ocr", s.transcribe},
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			return ""
		}
		text, err := src.read(ctx, job)
		if err != nil {
			job.Logger.Warn("Text source failed", "document", job.Document.Name, "source", src.name, "error", err)
			continue
		}
		if usable(text) {
			job.Logger.Debug("Recovered text", "document", job.Document.Name, "source", src.name, "chars", len(text))
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func (s TextStrategy) textLayer(ctx context.Context, job *Job) (string, error) {
	if s.Layer == nil || job.Document.Kind != scanning.KindPDF {
		return "", nil
	}
	text, err := s.Layer.Text(ctx, job.Path)
	if err != nil {
		return "", err
	}
	if s.Tables == nil {
		return text, nil
	}

	// Table rows often hold the line items the plain text scrambles
	tables, err := s.Tables.Tables(ctx, job.Path)
	if err != nil {
		job.Logger.Warn("Table rows unavailable", "document", job.Document.Name, "error", err)
		return text, nil
	}
	parts := []string{text}
	for _, t := range tables {
		for _, row := range t {
			parts = append(parts, strings.Join(row, " "))
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (s TextStrategy) ocr(ctx context.Context, job *Job) (string, error) {
	if s.OCR == nil {
		return "", nil
	}
	pages, err := job.Pages(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		text, err := s.OCR.Recognize(ctx, page.Data)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

// transcribe uses the vision model as OCR on the first page only
func (s TextStrategy) transcribe(ctx context.Context, job *Job) (string, error) {
	if s.Vision == nil {
		return "", nil
	}
	pages, err := job.Pages(ctx)
	if err != nil {
		return "", err
	}
	return s.Vision.Vision(ctx, scanning.TranscribePrompt, pages[0].Data, pages[0].MimeType)
}

func usable(text string) bool {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
			if n >= MinTextChars {
				return true
			}
		}
	}
	return false
}
