package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/zombor/soa-tracker/internal/scanning"
)

var (
	// ErrExtractionQuality means no engine recovered enough text to work with
	ErrExtractionQuality = errors.New("unable to extract text: the document may be scanned with poor quality, please ensure the receipt is clear and legible")
	// ErrTimeout means the document exceeded its time budget
	ErrTimeout = errors.New("timed out")
	// ErrNoWorker means the time budget ran out before a worker was free
	ErrNoWorker = fmt.Errorf("%w waiting for a worker", ErrTimeout)
	// ErrNoAmounts means the regex fallback found nothing that looks like an amount
	ErrNoAmounts = errors.New("unable to extract amounts from the receipt")
)

// Classify maps an error to its failure category
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrExtractionQuality):
		return "extraction_quality"
	case errors.Is(err, scanning.ErrUnsupportedKind):
		return "unsupported_kind"
	case errors.Is(err, ErrNoAmounts):
		return "no_amounts_found"
	}
	return "engine"
}

type haltError struct {
	err error
}

func (h *haltError) Error() string { return h.err.Error() }
func (h *haltError) Unwrap() error { return h.err }

// Halt wraps err so the pipeline stops trying further strategies
func Halt(err error) error {
	if err == nil {
		return nil
	}
	return &haltError{err: err}
}
