package scanning

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements OCR with a local tesseract install
type Tesseract struct {
	Languages []string
}

// NewTesseract creates a Tesseract OCR engine, defaulting to English
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{Languages: languages}
}

// Recognize runs OCR over an image after grayscale, contrast and sharpen passes
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prepared, err := preprocessForOCR(image)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Languages...); err != nil {
		return "", fmt.Errorf("setting OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(prepared); err != nil {
		return "", fmt.Errorf("loading image for OCR: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running OCR: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func preprocessForOCR(data []byte) ([]byte, error) {
	img, err := decodeImage(data, "")
	if err != nil {
		return nil, err
	}

	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
