package pipeline

import "github.com/zombor/soa-tracker/internal/scanning"

// Engines are the external collaborators behind the strategies. Any may be nil; its stage is skipped.
type Engines struct {
	Vision scanning.VisionModel
	Text   scanning.TextModel
	OCR    scanning.OCR
	Layer  scanning.TextLayer
	Tables scanning.TableDetector
}

// DefaultStrategies returns the fallback chain: vision, text + AI, tables, regex
func DefaultStrategies(e Engines) []Strategy {
	var strategies []Strategy
	if e.Vision != nil {
		strategies = append(strategies, VisionStrategy{Model: e.Vision})
	}
	strategies = append(strategies,
		TextStrategy{Layer: e.Layer, Tables: e.Tables, OCR: e.OCR, Vision: e.Vision, Model: e.Text},
		TableStrategy{Detector: e.Tables},
		RegexStrategy{},
	)
	return strategies
}
