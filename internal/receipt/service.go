package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/soa-tracker/internal/batch"
	"github.com/zombor/soa-tracker/internal/clock"
	"github.com/zombor/soa-tracker/internal/pipeline"
	"github.com/zombor/soa-tracker/internal/scanning"
)

const (
	// DefaultTrigger is the caption text that asks for extraction
	DefaultTrigger = "/pdf"

	unsupportedMessage = "I only accept PDF and images (JPG/PNG/WEBP/HEIC)."
	timeoutMessage     = "Processing timed out (2 min). The file may be too large or complex."
)

// ErrClosed is returned by Receive once the service is shutting down
var ErrClosed = errors.New("service closed")

var methodLabels = map[pipeline.Method]string{
	pipeline.MethodVision: "AI Vision",
	pipeline.MethodAIText: "AI Text",
	pipeline.MethodTable:  "PDF tables",
	pipeline.MethodRegex:  "Fallback",
}

// IDGenerator generates unique IDs for records and reports
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Config holds the service settings
type Config struct {
	// Trigger marks a delivery for extraction when found in its caption or reply text
	Trigger string
	// Budget is the statement of account total; zero disables the remaining budget
	Budget float64
	// Window is the burst debounce window
	Window time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
}

// Service handles receipt operations
type Service struct {
	db          DB
	extractor   batch.Extractor
	aggregator  *batch.Aggregator
	storage     Storage
	collector   *batch.Collector
	idGenerator IDGenerator
	clock       clock.Clock
	trigger     string
	budget      float64
	logger      *slog.Logger

	mu      sync.Mutex
	closed  bool
	singles sync.WaitGroup
}

// NewService creates a new Service with a UUID generator
func NewService(db DB, extractor batch.Extractor, storage Storage, cfg Config) *Service {
	return NewServiceWithDeps(db, extractor, storage, cfg, uuidGenerator{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor batch.Extractor, storage Storage, cfg Config, idGen IDGenerator) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Trigger == "" {
		cfg.Trigger = DefaultTrigger
	}

	s := &Service{
		db:          db,
		extractor:   extractor,
		aggregator:  batch.NewAggregator(extractor, cfg.Logger),
		storage:     storage,
		idGenerator: idGen,
		clock:       cfg.Clock,
		trigger:     strings.ToLower(cfg.Trigger),
		budget:      cfg.Budget,
		logger:      cfg.Logger,
	}
	s.collector = batch.NewCollector(cfg.Clock, cfg.Window, s.handleBatch, batch.WithLogger(cfg.Logger))
	return s
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

func (s *Service) triggered(d Delivery) bool {
	return strings.Contains(strings.ToLower(d.Caption), s.trigger) ||
		strings.Contains(strings.ToLower(d.ReplyTo), s.trigger)
}

// Receive accepts one attachment. Attachments with a burst id are collected and handled together once
// the burst seals; a single attachment is handled in the background. Receive never waits for extraction.
func (s *Service) Receive(ctx context.Context, d Delivery) error {
	doc, err := scanning.NewDocument(d.Filename, d.MimeType, d.Data)
	if err != nil {
		s.logger.Warn("Rejected delivery", "origin", d.Origin, "filename", d.Filename, "mime_type", d.MimeType, "error", err)
		s.report(&StatusReport{
			Origin:  d.Origin,
			BurstID: d.BurstID,
			Status:  ReportRejected,
			Message: unsupportedMessage,
			Errors:  []string{err.Error()},
		})
		return fmt.Errorf("receiving %s: %w", d.Filename, err)
	}

	triggered := s.triggered(d)

	if d.BurstID != "" {
		err := s.collector.Enqueue(d.BurstID, batch.Item{Document: doc, Triggered: triggered}, batch.Origin(d.Origin))
		if errors.Is(err, batch.ErrClosed) {
			return ErrClosed
		}
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.singles.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.singles.Done()
		s.handleSingle(context.WithoutCancel(ctx), d.Origin, doc, triggered)
	}()
	return nil
}

// Close stops accepting deliveries, seals every open burst and waits for all work to finish
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.collector.Close()
	s.collector.Wait()
	s.singles.Wait()
}

func (s *Service) handleSingle(ctx context.Context, origin string, doc scanning.Document, triggered bool) {
	now := s.clock.Now()
	folder := now.Format(scanning.DateLayout)

	if !triggered {
		msg := fmt.Sprintf("File uploaded to folder %s.", folder)
		if _, err := s.archive(ctx, now, doc); err != nil {
			msg = fmt.Sprintf("Archive upload failed: %v", err)
		}
		s.report(&StatusReport{Origin: origin, Status: ReportArchived, Message: msg})
		return
	}

	s.report(&StatusReport{Origin: origin, Status: ReportProcessing, Message: "Processing receipt..."})

	out := s.extractor.Extract(ctx, doc)
	if !out.Success {
		msg := out.Error
		if out.TimedOut() {
			msg = timeoutMessage
		}
		s.report(&StatusReport{Origin: origin, Status: ReportFailed, Message: msg, Errors: []string{out.Error}})
		return
	}

	reportID := s.idGenerator.Generate()
	path, archiveErr := s.archive(ctx, now, doc)

	records := s.records(reportID, origin, doc, path, out, now)
	total := 0.0
	for _, it := range out.Items {
		total += it.Total
	}

	var msg strings.Builder
	msg.WriteString("Data Extracted and Updated the Database:\n")
	msg.WriteString(strings.Join(batch.SummaryLines(out.Items), "\n"))
	fmt.Fprintf(&msg, "\n\nTotal amount purchased: %s", batch.FormatAmount(total))

	var errs []string
	if err := s.db.SaveLineItems(records); err != nil {
		s.logger.Error("Failed to save line items", "origin", origin, "document", doc.Name, "error", err)
		errs = append(errs, fmt.Sprintf("Ledger update failed: %v", err))
		fmt.Fprintf(&msg, "\n\nLedger update failed: %v", err)
	}
	writeArchiveNotice(&msg, archiveErr, "File uploaded to folder %s.", now)
	fmt.Fprintf(&msg, "\n(via %s)", labels([]pipeline.Method{out.Method}))

	s.report(&StatusReport{
		ID:      reportID,
		Origin:  origin,
		Status:  ReportSucceeded,
		Message: msg.String(),
		Items:   len(out.Items),
		Total:   total,
		Methods: []string{string(out.Method)},
		Errors:  errs,
	})
}

func (s *Service) handleBatch(ctx context.Context, b *batch.Batch) {
	origin := string(b.Origin)
	now := s.clock.Now()

	if !b.Qualified() {
		var failed []string
		for _, e := range b.Items {
			if _, err := s.archive(ctx, now, e.Document); err != nil {
				failed = append(failed, fmt.Sprintf("%s: %v", e.Document.Name, err))
			}
		}
		msg := fmt.Sprintf("Receipts uploaded to folder %s.", now.Format(scanning.DateLayout))
		if len(failed) > 0 {
			msg = "Archive upload failed: " + strings.Join(failed, "; ")
		}
		s.report(&StatusReport{Origin: origin, BurstID: b.ID, Status: ReportArchived, Message: msg, Errors: failed})
		return
	}

	s.report(&StatusReport{
		Origin:  origin,
		BurstID: b.ID,
		Status:  ReportProcessing,
		Message: fmt.Sprintf("Processing %d receipt(s)...", len(b.Items)),
	})

	res := s.aggregator.Aggregate(ctx, b)
	reportID := s.idGenerator.Generate()

	if len(res.Items) == 0 {
		msg := "No data could be extracted from the receipts."
		if len(res.Errors) > 0 {
			msg = "All receipts failed:\n" + strings.Join(res.Errors, "\n")
		}
		s.report(&StatusReport{
			ID:      reportID,
			Origin:  origin,
			BurstID: b.ID,
			Status:  ReportFailed,
			Message: msg,
			Errors:  res.Errors,
		})
		return
	}

	var (
		records    []*Record
		archiveErr error
		succeeded  = res.Succeeded()
	)
	for _, d := range succeeded {
		path, err := s.archive(ctx, now, d.Document)
		if err != nil {
			archiveErr = errors.Join(archiveErr, err)
		}
		records = append(records, s.records(reportID, origin, d.Document, path, d.Outcome, now)...)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "Processed %d receipt(s). Data updated:\n", len(succeeded))
	msg.WriteString(strings.Join(res.SummaryLines(), "\n"))
	fmt.Fprintf(&msg, "\n\nTotal amount purchased: %s", batch.FormatAmount(res.Total))

	errs := res.Errors
	if err := s.db.SaveLineItems(records); err != nil {
		s.logger.Error("Failed to save line items", "origin", origin, "burst_id", b.ID, "error", err)
		errs = append(errs, fmt.Sprintf("Ledger update failed: %v", err))
		fmt.Fprintf(&msg, "\n\nLedger update failed: %v", err)
	}
	writeArchiveNotice(&msg, archiveErr, "Receipts uploaded to folder %s.", now)
	fmt.Fprintf(&msg, "\n(via %s)", labels(res.Methods))
	if len(res.Errors) > 0 {
		fmt.Fprintf(&msg, "\n\nSome failed: %s", strings.Join(res.Errors, "; "))
	}

	methods := make([]string, 0, len(res.Methods))
	for _, m := range res.Methods {
		methods = append(methods, string(m))
	}

	s.report(&StatusReport{
		ID:      reportID,
		Origin:  origin,
		BurstID: b.ID,
		Status:  ReportStatus(res.Status),
		Message: msg.String(),
		Items:   len(res.Items),
		Total:   res.Total,
		Methods: methods,
		Errors:  errs,
	})
}

func writeArchiveNotice(msg *strings.Builder, err error, format string, now time.Time) {
	if err != nil {
		fmt.Fprintf(msg, "\n\nArchive upload failed: %v", err)
		return
	}
	msg.WriteString("\n\n")
	fmt.Fprintf(msg, format, now.Format(scanning.DateLayout))
}

func labels(methods []pipeline.Method) string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		if l, ok := methodLabels[m]; ok {
			out = append(out, l)
			continue
		}
		out = append(out, string(m))
	}
	return strings.Join(out, ", ")
}

func (s *Service) records(reportID, origin string, doc scanning.Document, path string, out pipeline.Outcome, now time.Time) []*Record {
	records := make([]*Record, 0, len(out.Items))
	for _, it := range out.Items {
		r := newRecord(s.idGenerator.Generate(), reportID, origin, doc.Name, out.Method, it, now)
		r.ArchivePath = path
		records = append(records, r)
	}
	return records
}

// archive stores the original document under the folder for now
func (s *Service) archive(ctx context.Context, now time.Time, doc scanning.Document) (string, error) {
	name := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(doc.Name))
	path, err := s.storage.Save(ctx, now, name, doc.Data)
	if err != nil {
		s.logger.Warn("Failed to archive document", "document", doc.Name, "error", err)
		return "", fmt.Errorf("archiving %s: %w", doc.Name, err)
	}
	return path, nil
}

func (s *Service) report(r *StatusReport) {
	if r.ID == "" {
		r.ID = s.idGenerator.Generate()
	}
	r.CreatedAt = s.clock.Now()
	s.logger.Info("Report", "origin", r.Origin, "burst_id", r.BurstID, "status", r.Status, "items", r.Items)
	if err := s.db.SaveReport(r); err != nil {
		s.logger.Error("Failed to save report", "origin", r.Origin, "status", r.Status, "error", err)
	}
}

// ListReports returns the reports for origin, or every report when origin is empty
func (s *Service) ListReports(origin string) ([]*StatusReport, error) {
	reports, err := s.db.ListReports(origin)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// ListLineItems returns the ledger
func (s *Service) ListLineItems() ([]*Record, error) {
	records, err := s.db.ListLineItems()
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}
	return records, nil
}

// Summary returns the budget position of the ledger
func (s *Service) Summary() (*Summary, error) {
	records, err := s.ListLineItems()
	if err != nil {
		return nil, err
	}

	sum := &Summary{Items: len(records), BudgetTotal: s.budget}
	for _, r := range records {
		sum.BudgetSpent += r.Amount
	}
	if s.budget > 0 {
		sum.BudgetLeft = s.budget - sum.BudgetSpent
	}
	return sum, nil
}

// ExportSOA renders the ledger as an XLSX statement of account
func (s *Service) ExportSOA() ([]byte, error) {
	records, err := s.ListLineItems()
	if err != nil {
		return nil, err
	}
	data, err := ExportXLSX(records)
	if err != nil {
		return nil, fmt.Errorf("exporting statement: %w", err)
	}
	s.logger.Info("Exported statement of account", "items", len(records), "bytes", len(data))
	return data, nil
}
