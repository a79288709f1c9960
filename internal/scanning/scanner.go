package scanning

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedKind is returned when a file is neither an image nor a PDF
var ErrUnsupportedKind = errors.New("unsupported document kind")

// Kind tags a document as an image or a PDF
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

var extensionKinds = map[string]Kind{
	".pdf":  KindPDF,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".webp": KindImage,
	".gif":  KindImage,
	".heic": KindImage,
	".heif": KindImage,
}

// KindOf derives the document kind from the file extension, falling back to the declared media type
func KindOf(filename, mimeType string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := extensionKinds[ext]; ok {
		return kind, nil
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(mimeType, "application/pdf"):
		return KindPDF, nil
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage, nil
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedKind, filename, mimeType)
}

// Document is an uploaded receipt file. It is never modified after creation.
type Document struct {
	Name     string
	MimeType string
	Kind     Kind
	Data     []byte
}

// NewDocument builds a Document, deriving its Kind
func NewDocument(name, mimeType string, data []byte) (Document, error) {
	kind, err := KindOf(name, mimeType)
	if err != nil {
		return Document{}, err
	}
	if mimeType == "" {
		mimeType = mimeTypeFor(name, kind)
	}
	return Document{Name: name, MimeType: mimeType, Kind: kind, Data: data}, nil
}

// Extension returns a file extension suitable for staging the document on disk
func (d Document) Extension() string {
	if ext := strings.ToLower(filepath.Ext(d.Name)); ext != "" {
		return ext
	}
	if d.Kind == KindPDF {
		return ".pdf"
	}
	switch strings.ToLower(d.MimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

func mimeTypeFor(name string, kind Kind) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if kind == KindPDF {
		return "application/pdf"
	}
	return "image/jpeg"
}

// LineItem is one structured receipt line
type LineItem struct {
	Date      string  `json:"date"` // DD/MM/YYYY
	ItemName  string  `json:"item_name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  float64 `json:"quantity"`
	Total     float64 `json:"total"`
	// TotalUnparsed marks a total that could not be read as a number and was recorded as 0
	TotalUnparsed bool `json:"total_unparsed,omitempty"`
}

// VisionModel answers a prompt about an image
type VisionModel interface {
	Vision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// TextModel answers a text-only prompt
type TextModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Model is an AI backend able to read images and text
type Model interface {
	VisionModel
	TextModel
	// Close releases the underlying client
	Close() error
}

// OCR turns a raster image into text
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TextLayer reads the embedded text of a PDF on disk
type TextLayer interface {
	Text(ctx context.Context, path string) (string, error)
}

// Table is a detected grid of cells; the first row is the header
type Table [][]string

// TableDetector finds tables in a PDF on disk
type TableDetector interface {
	Tables(ctx context.Context, path string) ([]Table, error)
}

// Rasterizer renders PDF pages to PNG images
type Rasterizer interface {
	Pages(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error)
}
