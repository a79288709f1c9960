package receipt

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const soaSheet = "SOA"

var soaHeaders = []string{"Date bought", "Item", "Price", "Qty", "Amount"}

// ExportXLSX renders the ledger as a statement of account workbook
func ExportXLSX(records []*Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than leaving an empty Sheet1 behind
	if err := f.SetSheetName(f.GetSheetName(0), soaSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range soaHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(soaSheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	for i, r := range records {
		row := i + 2
		values := []any{r.Date, r.Item, r.Price, r.Qty, r.Amount}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(soaSheet, cell, v); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(soaSheet, "A", "A", 14)
	_ = f.SetColWidth(soaSheet, "B", "B", 40)
	_ = f.SetColWidth(soaSheet, "C", "E", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
