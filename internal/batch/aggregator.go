package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/zombor/soa-tracker/internal/pipeline"
	"github.com/zombor/soa-tracker/internal/scanning"
)

// Status classifies a whole batch
type Status string

const (
	StatusAllSucceeded Status = "all_succeeded"
	StatusPartial      Status = "partial"
	StatusAllFailed    Status = "all_failed"
)

// Extractor turns one document into an outcome; *pipeline.Pipeline implements it
type Extractor interface {
	Extract(ctx context.Context, doc scanning.Document) pipeline.Outcome
}

// DocumentResult is the outcome of one document; Index is 1-based
type DocumentResult struct {
	Index    int
	Document scanning.Document
	Outcome  pipeline.Outcome
}

// Result is the merged outcome of a batch
type Result struct {
	Documents []DocumentResult
	Items     []scanning.LineItem
	Total     float64
	// Methods lists each extraction method used, in first-use order
	Methods []pipeline.Method
	Errors  []string
	Status  Status
}

// Succeeded returns the documents that produced line items
func (r Result) Succeeded() []DocumentResult {
	var out []DocumentResult
	for _, d := range r.Documents {
		if d.Outcome.Success {
			out = append(out, d)
		}
	}
	return out
}

// SummaryLines renders one "date | item | amount" line per item.
// Totals that could not be read show "-".
func (r Result) SummaryLines() []string {
	return SummaryLines(r.Items)
}

// SummaryLines renders items as "date | item | amount" lines
func SummaryLines(items []scanning.LineItem) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		amount := "-"
		if !it.TotalUnparsed {
			amount = FormatAmount(it.Total)
		}
		lines = append(lines, fmt.Sprintf("%s | %s | %s", it.Date, it.ItemName, amount))
	}
	return lines
}

// FormatAmount renders a dollar amount with thousands separators, e.g. $1,234.56
func FormatAmount(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Aggregator extracts every document of a batch and merges the results
type Aggregator struct {
	extractor Extractor
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator
func NewAggregator(extractor Extractor, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{extractor: extractor, logger: logger}
}

// Aggregate extracts the documents one at a time, in enqueue order. A failed document is recorded
// and never stops the rest of the batch.
func (a *Aggregator) Aggregate(ctx context.Context, b *Batch) Result {
	var (
		res       Result
		succeeded int
		seen      = make(map[pipeline.Method]bool)
	)

	for i, entry := range b.Items {
		out := a.extractor.Extract(ctx, entry.Document)
		res.Documents = append(res.Documents, DocumentResult{Index: i + 1, Document: entry.Document, Outcome: out})

		if !out.Success {
			msg := out.Error
			switch {
			case out.TimedOut():
				msg = "timed out"
			case msg == "":
				msg = "no data extracted"
			}
			a.logger.Warn("Receipt failed", "burst_id", b.ID, "receipt", i+1, "document", entry.Document.Name, "error", msg)
			res.Errors = append(res.Errors, fmt.Sprintf("Receipt %d: %s", i+1, msg))
			continue
		}

		succeeded++
		res.Items = append(res.Items, out.Items...)
		if !seen[out.Method] {
			seen[out.Method] = true
			res.Methods = append(res.Methods, out.Method)
		}
		for _, it := range out.Items {
			res.Total += it.Total
		}
	}

	switch {
	case succeeded == len(b.Items):
		res.Status = StatusAllSucceeded
	case succeeded == 0:
		res.Status = StatusAllFailed
	default:
		res.Status = StatusPartial
	}
	return res
}
