package scanning

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp" // Register WEBP decoder
)

// Fitz renders PDF pages with MuPDF
type Fitz struct {
	// DPI used for rendering; 0 uses the library default
	DPI float64
}

// Pages renders up to maxPages pages of the PDF as PNG images (0 = all pages)
func (f Fitz) Pages(ctx context.Context, pdfData []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var img image.Image
		if f.DPI > 0 {
			img, err = doc.ImageDPI(i, f.DPI)
		} else {
			img, err = doc.Image(i)
		}
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

// decodeImage decodes any supported image, applying EXIF orientation
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	// Check for HEIC/HEIF format (common on iPhones) - Go's standard image package doesn't support it
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, WEBP, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// imageToPNG converts any image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	img, err := decodeImage(imageData, mimeType)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with brand 'heic', 'heif', 'mif1', 'msf1'
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData normalizes the MIME type and converts the image to PNG if needed.
// Returns the PNG data and whether conversion occurred.
func prepareImageData(imageData []byte, contentType string) ([]byte, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}

	if mimeType == "image/png" && !isHEICFormat(imageData) {
		return imageData, false, nil
	}

	pngData, err := imageToPNG(imageData, mimeType)
	if err != nil {
		return nil, false, fmt.Errorf("converting image to PNG: %w", err)
	}
	return pngData, true, nil
}
