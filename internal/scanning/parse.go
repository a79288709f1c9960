package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const lineItemsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "Date":  {"type": ["string", "null"]},
      "Item":  {"type": ["string", "number", "null"]},
      "Price": {"type": ["number", "string", "null"]},
      "Qty":   {"type": ["number", "string", "null"]},
      "Total": {"type": ["number", "string", "null"]}
    }
  }
}`

var (
	lineItemsValidator = jsonschema.MustCompileString("line_items.json", lineItemsSchema)
	fencedBlock        = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
)

// ParseLineItems extracts the JSON array of line items from a model response.
// Markdown fences and surrounding prose are ignored; a lone object is treated as a one-item array.
func ParseLineItems(text string) ([]map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	} else {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end < start {
		// Some models answer with a single object for single-item receipts
		objStart := strings.Index(text, "{")
		objEnd := strings.LastIndex(text, "}")
		if objStart == -1 || objEnd < objStart {
			return nil, fmt.Errorf("no JSON array found in response")
		}
		text = "[" + text[objStart:objEnd+1] + "]"
	} else {
		text = text[start : end+1]
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := lineItemsValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("validating line items: %w", err)
	}

	list := doc.([]any)
	rows := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if row, ok := v.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
