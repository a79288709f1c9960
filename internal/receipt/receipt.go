package receipt

import (
	"time"

	"github.com/zombor/soa-tracker/internal/pipeline"
	"github.com/zombor/soa-tracker/internal/scanning"
)

// Delivery is one attachment handed in by the transport
type Delivery struct {
	// Origin is where results for this delivery are reported
	Origin string
	// BurstID groups attachments sent together; empty for a single attachment
	BurstID  string
	Caption  string
	ReplyTo  string
	Filename string
	MimeType string
	Data     []byte
}

// Record is one extracted line item in the ledger
type Record struct {
	ID          string          `json:"id"`
	ReportID    string          `json:"report_id"`
	Origin      string          `json:"origin"`
	Document    string          `json:"document"`
	ArchivePath string          `json:"archive_path,omitempty"`
	Method      pipeline.Method `json:"method"`
	Date        string          `json:"date"` // DD/MM/YYYY
	Item        string          `json:"item"`
	Price       float64         `json:"price"`
	Qty         float64         `json:"qty"`
	Amount      float64         `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newRecord(id, reportID, origin, document string, method pipeline.Method, it scanning.LineItem, now time.Time) *Record {
	return &Record{
		ID:        id,
		ReportID:  reportID,
		Origin:    origin,
		Document:  document,
		Method:    method,
		Date:      it.Date,
		Item:      it.ItemName,
		Price:     it.UnitPrice,
		Qty:       it.Quantity,
		Amount:    it.Total,
		CreatedAt: now,
	}
}

// ReportStatus is the overall result of a delivery or burst
type ReportStatus string

const (
	ReportSucceeded  ReportStatus = "all_succeeded"
	ReportPartial    ReportStatus = "partial"
	ReportFailed     ReportStatus = "all_failed"
	ReportArchived   ReportStatus = "archived"
	ReportRejected   ReportStatus = "rejected"
	ReportProcessing ReportStatus = "processing"
)

// StatusReport is a message for the origin of a delivery
type StatusReport struct {
	ID        string       `json:"id"`
	Origin    string       `json:"origin"`
	BurstID   string       `json:"burst_id,omitempty"`
	Status    ReportStatus `json:"status"`
	Message   string       `json:"message"`
	Items     int          `json:"items"`
	Total     float64      `json:"total"`
	Methods   []string     `json:"methods,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Summary is the budget position of the ledger
type Summary struct {
	Items       int     `json:"items"`
	BudgetSpent float64 `json:"budget_spent"`
	BudgetLeft  float64 `json:"budget_left"`
	BudgetTotal float64 `json:"budget_total"`
}
