package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// prepareImage decodes an uploaded image, cleans it up for OCR and returns it as PNG
func prepareImage(data []byte, mediaType string, maxEdge int) ([]byte, error) {
	img, err := decodeImage(data, mediaType)
	if err != nil {
		return nil, err
	}
	return encodePNG(enhanceForOCR(img, maxEdge))
}

// decodeImage decodes JPEG, PNG, GIF, BMP, TIFF, WebP and HEIC/HEIF data
func decodeImage(data []byte, mediaType string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// HEIC/HEIF is common on iPhones and not handled by the image package
	if isHEICFormat(data) || isHEICMimeType(mediaType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format %q: %w", mediaType, err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// enhanceForOCR bounds the image size and boosts text contrast
func enhanceForOCR(img image.Image, maxEdge int) image.Image {
	if maxEdge > 0 {
		b := img.Bounds()
		if b.Dx() > maxEdge || b.Dy() > maxEdge {
			img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
		}
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	return imaging.Sharpen(gray, 1.0)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfToPNG renders the first page of a PDF for OCR. Receipts are almost always a single page.
func pdfToPNG(pdfData []byte, maxEdge int) ([]byte, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("empty PDF")
	}
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	img, err := doc.ImageDPI(0, 300)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(enhanceForOCR(img, maxEdge))
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = normalizeMediaType(mimeType)
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
