package scanning

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// cellGapFactor is the horizontal gap, in multiples of the font size, that starts a new table cell
const cellGapFactor = 1.5

// PDFText reads the embedded text layer of a PDF
type PDFText struct {
	// MaxPages limits how many pages are read (0 = all pages)
	MaxPages int
}

// Text returns the plain text of every page, one page per block
func (p PDFText) Text(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= pageCount(r, p.MaxPages); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading text from page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// PDFTables reconstructs tables from the positioned text of a PDF.
// Consecutive rows with at least two cells form one table.
type PDFTables struct {
	MaxPages int
}

// Tables returns every detected table, page by page
func (p PDFTables) Tables(ctx context.Context, path string) ([]Table, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var tables []Table
	for i := 1; i <= pageCount(r, p.MaxPages); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("reading rows from page %d: %w", i, err)
		}

		// Higher Y is nearer the top of the page
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })

		cells := make([][]string, 0, len(rows))
		for _, row := range rows {
			cells = append(cells, splitCells(row.Content))
		}
		tables = append(tables, groupTables(cells)...)
	}
	return tables, nil
}

func pageCount(r *pdf.Reader, maxPages int) int {
	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		return maxPages
	}
	return n
}

// splitCells joins positioned glyphs into cells, breaking on wide horizontal gaps
func splitCells(texts []pdf.Text) []string {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].X < sorted[b].X })

	var (
		cells []string
		cur   strings.Builder
		end   = sorted[0].X
	)
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
	}

	for i, t := range sorted {
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		if i > 0 {
			gap := t.X - end
			if gap > size*cellGapFactor {
				flush()
			} else if gap > size*0.2 {
				cur.WriteString(" ")
			}
		}
		cur.WriteString(t.S)
		w := t.W
		if w <= 0 {
			w = size * 0.5 * float64(len([]rune(t.S)))
		}
		end = t.X + w
	}
	flush()
	return cells
}

// groupTables collects runs of multi-cell rows; a table needs a header and at least one data row
func groupTables(rows [][]string) []Table {
	var (
		tables []Table
		cur    Table
	)
	closeTable := func() {
		if len(cur) >= 2 {
			tables = append(tables, cur)
		}
		cur = nil
	}
	for _, row := range rows {
		if len(row) < 2 {
			closeTable()
			continue
		}
		cur = append(cur, row)
	}
	closeTable()
	return tables
}
