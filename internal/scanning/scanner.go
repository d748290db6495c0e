package scanning

import (
	"context"
	"path/filepath"
	"strings"
)

// Document is an uploaded proof of purchase. It is owned by the caller and never persisted here.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
	Size      int64
}

// NewDocument builds a Document whose Size matches its payload
func NewDocument(name, mediaType string, data []byte) Document {
	return Document{
		Name:      name,
		MediaType: mediaType,
		Data:      data,
		Size:      int64(len(data)),
	}
}

// Kind is the recovery route chosen for a document
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindPDF
	KindPlainText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	case KindPlainText:
		return "plain-text"
	default:
		return "unsupported"
	}
}

// Provenance records how a piece of text was obtained
type Provenance string

const (
	ProvenanceOCR         Provenance = "ocr"
	ProvenancePlainRead   Provenance = "plain-read"
	ProvenancePDFText     Provenance = "pdf-text"
	ProvenanceUnsupported Provenance = "unsupported"
)

// ExtractedText is the output of text recovery. Text may be empty.
type ExtractedText struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
	Method     string     `json:"method"`
	Engine     string     `json:"engine,omitempty"`
	Confidence float32    `json:"confidence"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// OCREngine turns a PNG image into text
type OCREngine interface {
	// Name identifies the engine in logs and results
	Name() string

	// Recognize returns the text found in a PNG image using a single language profile
	Recognize(ctx context.Context, png []byte, lang string) (string, error)

	// Close releases the engine's resources
	Close() error
}

// transcribePrompt is shared by the vision-model engines
const transcribePrompt = `You are an OCR engine. Transcribe every piece of text visible in this image of a receipt, invoice or bill, exactly as printed.

Rules:
- Keep the original line breaks and reading order (top to bottom, left to right)
- Keep labels such as "Product:", "Brand:", "Total" and their values on the same line
- Keep prices with their currency symbol, for example $199.99
- Keep dates exactly as printed
- Do not summarise, translate, correct or explain anything
- Do not use markdown code blocks
- If there is no text, return an empty response`

// KindOf picks the recovery route from the declared media type, falling back to the file
// extension when the type is missing or generic
func KindOf(mediaType, name string) Kind {
	mt := normalizeMediaType(mediaType)
	if mt == "" || mt == "application/octet-stream" {
		mt = MediaTypeFromExt(name)
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case mt == "application/pdf":
		return KindPDF
	case mt == "text/plain":
		return KindPlainText
	default:
		return KindUnsupported
	}
}

// MediaTypeFromExt maps common receipt file extensions to media types
func MediaTypeFromExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".text":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func normalizeMediaType(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
