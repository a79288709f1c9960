package pipeline

import (
	"context"
	"regexp"

	"github.com/zombor/soa-tracker/internal/scanning"
)

// amountCeiling bounds unlabeled decimal amounts
const amountCeiling = 100000

var (
	// Tried in order; the first labeled amount found wins
	labeledTotals = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btotal[:\s]*\$?([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)grand\s*total[:\s]*\$?([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)amount\s*due[:\s]*\$?([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)subtotal[:\s]*\$?([\d,]+\.?\d*)`),
	}
	decimalAmount = regexp.MustCompile(`[\d,]+\.\d{2}`)
)

// RegexStrategy scans the recovered text for a total and reports it as a single "Receipt Total" item
type RegexStrategy struct{}

func (RegexStrategy) Method() Method { return MethodRegex }

func (RegexStrategy) Attempt(_ context.Context, job *Job) ([]scanning.LineItem, error) {
	amount, ok := findAmount(job.Text)
	if !ok {
		return nil, ErrNoAmounts
	}
	return []scanning.LineItem{{
		Date:      job.Today.Format(scanning.DateLayout),
		ItemName:  "Receipt Total",
		UnitPrice: amount,
		Quantity:  1,
		Total:     amount,
	}}, nil
}

func findAmount(text string) (float64, bool) {
	for _, re := range labeledTotals {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if amt, ok := scanning.ParseAmount(m[1]); ok && amt > 0 {
				return amt, true
			}
		}
	}
	for _, m := range decimalAmount.FindAllString(text, -1) {
		if amt, ok := scanning.ParseAmount(m); ok && amt > 0 && amt < amountCeiling {
			return amt, true
		}
	}
	return 0, false
}
