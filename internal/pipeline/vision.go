package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/soa-tracker/internal/scanning"
)

// VisionStrategy asks a vision model for line items straight from the image.
// PDF pages are sent concurrently; a page that fails is skipped.
type VisionStrategy struct {
	Model scanning.VisionModel
	// Pages bounds concurrent page requests (default 4)
	Pages int
}

func (s VisionStrategy) Method() Method { return MethodVision }

func (s VisionStrategy) Attempt(ctx context.Context, job *Job) ([]scanning.LineItem, error) {
	pages, err := job.Pages(ctx)
	if err != nil {
		return nil, err
	}

	limit := s.Pages
	if limit <= 0 {
		limit = DefaultWorkers
	}

	results := make([][]scanning.LineItem, len(pages))
	errs := make([]error, len(pages))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, page := range pages {
		g.Go(func() error {
			items, err := s.page(ctx, job, page)
			if err != nil {
				job.Logger.Warn("Vision page failed", "document", job.Document.Name, "page", i+1, "error", err)
				errs[i] = fmt.Errorf("page %d: %w", i+1, err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	g.Wait()

	var items []scanning.LineItem
	for _, r := range results {
		items = append(items, r...)
	}
	if len(items) == 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

func (s VisionStrategy) page(ctx context.Context, job *Job, page Page) ([]scanning.LineItem, error) {
	text, err := s.Model.Vision(ctx, scanning.VisionItemsPrompt, page.Data, page.MimeType)
	if err != nil {
		return nil, err
	}
	rows, err := scanning.ParseLineItems(text)
	if err != nil {
		return nil, fmt.Errorf("parsing vision response: %w", err)
	}
	return scanning.NormalizeItems(rows, job.Today), nil
}
