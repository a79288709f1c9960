package pipeline

import (
	"context"
	"strings"

	"github.com/zombor/soa-tracker/internal/scanning"
)

// columns in matching priority order
var columns = []struct {
	key   string
	names []string
}{
	{"item", []string{"item", "description", "name"}},
	{"qty", []string{"qty", "quantity"}},
	{"total", []string{"total", "amount"}},
	{"price", []string{"price", "unit price"}},
}

// TableStrategy rebuilds line items from tables detected in a PDF.
// The first row of each table is its header.
type TableStrategy struct {
	Detector scanning.TableDetector
}

func (s TableStrategy) Method() Method { return MethodTable }

func (s TableStrategy) Attempt(ctx context.Context, job *Job) ([]scanning.LineItem, error) {
	if s.Detector == nil || job.Document.Kind != scanning.KindPDF {
		return nil, nil
	}
	tables, err := s.Detector.Tables(ctx, job.Path)
	if err != nil {
		return nil, err
	}

	var items []scanning.LineItem
	for _, t := range tables {
		items = append(items, itemsFromTable(t, job.Today.Format(scanning.DateLayout))...)
	}
	return items, nil
}

func itemsFromTable(t scanning.Table, date string) []scanning.LineItem {
	if len(t) < 2 {
		return nil
	}
	cols := mapColumns(t[0])

	var items []scanning.LineItem
	for _, row := range t[1:] {
		name := cell(row, cols["item"])
		price, _ := scanning.ParseAmount(cell(row, cols["price"]))
		qty, ok := scanning.ParseAmount(cell(row, cols["qty"]))
		if !ok || qty == 0 {
			qty = 1
		}
		total, ok := scanning.ParseAmount(cell(row, cols["total"]))
		if !ok {
			total = price * qty
		}

		if name == "" && total == 0 {
			continue
		}
		if name == "" {
			name = "Unknown"
		}
		items = append(items, scanning.LineItem{
			Date:      date,
			ItemName:  name,
			UnitPrice: price,
			Quantity:  qty,
			Total:     total,
		})
	}
	return items
}

// mapColumns matches header cells to known columns; exact names win over partial matches
func mapColumns(header []string) map[string]int {
	cols := map[string]int{"item": -1, "price": -1, "qty": -1, "total": -1}
	for _, exact := range []bool{true, false} {
		for _, col := range columns {
			if cols[col.key] != -1 {
				continue
			}
			for i, h := range header {
				if claimed(cols, i) {
					continue
				}
				if matchesAny(strings.ToLower(strings.TrimSpace(h)), col.names, exact) {
					cols[col.key] = i
					break
				}
			}
		}
	}
	return cols
}

func matchesAny(h string, names []string, exact bool) bool {
	for _, name := range names {
		if (exact && h == name) || (!exact && strings.Contains(h, name)) {
			return true
		}
	}
	return false
}

func claimed(cols map[string]int, i int) bool {
	for _, c := range cols {
		if c == i {
			return true
		}
	}
	return false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
