package scanning

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format used for every LineItem
const DateLayout = "02/01/2006"

var (
	nonNumeric  = regexp.MustCompile(`[^\d.\-]`)
	dateLayouts = []string{
		"2/1/2006",
		"2006-1-2",
		"2-1-2006",
		"2.1.2006",
		"2006/1/2",
		"2/1/06",
		"2 Jan 2006",
		"Jan 2, 2006",
	}
)

// ParseAmount coerces a JSON value or a string such as "$1,234.56" to a number.
// It reports false, with a 0 value, when nothing numeric can be read.
func ParseAmount(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		return parseAmountString(t)
	}
	return 0, false
}

func parseAmountString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	s = strings.ReplaceAll(s, ",", "")
	s = nonNumeric.ReplaceAllString(s, "")
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		negative = !negative
		s = rest
	}
	// only a leading minus is a sign
	if s == "" || s == "." || strings.Contains(s, "-") {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// NormalizeDate rewrites a receipt date as DD/MM/YYYY, using today when it cannot be read
func NormalizeDate(s string, today time.Time) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return today.Format(DateLayout)
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(DateLayout)
		}
	}
	return today.Format(DateLayout)
}

// NormalizeItems converts loosely typed AI output rows into LineItems. Rows are never dropped.
func NormalizeItems(rows []map[string]any, today time.Time) []LineItem {
	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		item := LineItem{
			Date:     NormalizeDate(stringField(row, "date"), today),
			ItemName: strings.TrimSpace(stringField(row, "item", "item_name", "name", "description")),
			Quantity: 1,
		}
		if item.ItemName == "" {
			item.ItemName = "Unknown"
		}
		if v, ok := field(row, "price", "unit_price", "unit price"); ok {
			item.UnitPrice, _ = ParseAmount(v)
		}
		if v, ok := field(row, "qty", "quantity"); ok && v != nil {
			item.Quantity, _ = ParseAmount(v)
		}
		if v, ok := field(row, "total", "amount"); ok {
			var parsed bool
			item.Total, parsed = ParseAmount(v)
			item.TotalUnparsed = !parsed && v != nil
		}
		items = append(items, item)
	}
	return items
}

// EnsureDates fills any empty LineItem date with today
func EnsureDates(items []LineItem, today time.Time) []LineItem {
	for i := range items {
		if strings.TrimSpace(items[i].Date) == "" {
			items[i].Date = today.Format(DateLayout)
		}
	}
	return items
}

func field(row map[string]any, names ...string) (any, bool) {
	for _, name := range names {
		for k, v := range row {
			if strings.EqualFold(strings.TrimSpace(k), name) {
				return v, true
			}
		}
	}
	return nil, false
}

func stringField(row map[string]any, names ...string) string {
	v, ok := field(row, names...)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
