package scanning

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// Config controls which recovery routes are available
type Config struct {
	// Language is the OCR language profile, e.g. "eng"
	Language string

	// PDFText reads the embedded text layer of PDFs
	PDFText bool

	// PDFRaster renders the first PDF page and OCRs it when there is no text layer
	PDFRaster bool

	// MaxImageEdge bounds the longest image side sent to OCR, in pixels
	MaxImageEdge int
}

// Recoverer produces raw text from documents. It holds no per-document state and is safe for
// concurrent use as long as its OCR engine is.
type Recoverer struct {
	engine OCREngine
	cfg    Config
	logger *slog.Logger

	pdfText   func(data []byte) (string, error)
	rasterize func(data []byte) ([]byte, error)
}

// NewRecoverer creates a Recoverer. engine may be nil, in which case images recover to empty text.
func NewRecoverer(engine OCREngine, cfg Config, logger *slog.Logger) *Recoverer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.MaxImageEdge <= 0 {
		cfg.MaxImageEdge = 2000
	}
	r := &Recoverer{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
	r.pdfText = pdfTextLayer
	r.rasterize = func(data []byte) ([]byte, error) {
		return pdfToPNG(data, r.cfg.MaxImageEdge)
	}
	return r
}

// Recover returns the text of doc. It never fails: unreadable input yields empty text and
// unsupported input yields a placeholder that names the file.
func (r *Recoverer) Recover(ctx context.Context, doc Document) ExtractedText {
	kind := KindOf(doc.MediaType, doc.Name)
	r.logger.Debug("recovering text", "name", doc.Name, "media_type", doc.MediaType, "kind", kind.String(), "size", len(doc.Data))

	switch kind {
	case KindImage:
		return r.recoverImage(ctx, doc)
	case KindPlainText:
		return recoverPlainText(doc)
	case KindPDF:
		return r.recoverPDF(ctx, doc)
	default:
		return placeholder(doc)
	}
}

func (r *Recoverer) recoverImage(ctx context.Context, doc Document) ExtractedText {
	out := ExtractedText{Provenance: ProvenanceOCR, Method: "image-ocr"}
	png, err := prepareImage(doc.Data, doc.MediaType, r.cfg.MaxImageEdge)
	if err != nil {
		r.logger.Warn("image preparation failed", "name", doc.Name, "media_type", doc.MediaType, "error", err)
		out.Warnings = append(out.Warnings, err.Error())
		return out
	}
	return r.ocr(ctx, doc.Name, png, out)
}

func (r *Recoverer) recoverPDF(ctx context.Context, doc Document) ExtractedText {
	if !r.cfg.PDFText && !r.cfg.PDFRaster {
		return placeholder(doc)
	}

	var warns []string
	if r.cfg.PDFText {
		var text string
		err := guard(func() error {
			var err error
			text, err = r.pdfText(doc.Data)
			return err
		})
		if err != nil {
			warns = append(warns, fmt.Sprintf("pdf text layer: %v", err))
		} else if text = Normalize(text); text != "" {
			return ExtractedText{
				Text:       text,
				Provenance: ProvenancePDFText,
				Method:     "pdf-text",
				Confidence: heuristicConfidence(text),
				Warnings:   warns,
			}
		}
	}

	if r.cfg.PDFRaster && r.engine != nil {
		var png []byte
		err := guard(func() error {
			var err error
			png, err = r.rasterize(doc.Data)
			return err
		})
		if err != nil {
			warns = append(warns, fmt.Sprintf("pdf render: %v", err))
		} else {
			out := r.ocr(ctx, doc.Name, png, ExtractedText{Provenance: ProvenanceOCR, Method: "pdf-ocr", Warnings: warns})
			if out.Text != "" || ctx.Err() != nil {
				return out
			}
			warns = out.Warnings
		}
	}

	r.logger.Info("no usable pdf text, using placeholder", "name", doc.Name, "warnings", len(warns))
	out := placeholder(doc)
	out.Warnings = append(warns, out.Warnings...)
	return out
}

// ocr runs the engine and folds any failure into empty text
func (r *Recoverer) ocr(ctx context.Context, name string, png []byte, out ExtractedText) ExtractedText {
	if r.engine == nil {
		out.Warnings = append(out.Warnings, "no OCR engine configured")
		return out
	}
	out.Engine = r.engine.Name()

	var text string
	err := guard(func() error {
		var err error
		text, err = r.engine.Recognize(ctx, png, r.cfg.Language)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Info("ocr abandoned", "name", name, "engine", out.Engine)
		} else {
			r.logger.Error("ocr failed", "name", name, "engine", out.Engine, "image_bytes", len(png), "error", err)
		}
		out.Warnings = append(out.Warnings, err.Error())
		return out
	}

	out.Text = Normalize(text)
	out.Confidence = heuristicConfidence(out.Text)
	return out
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func recoverPlainText(doc Document) ExtractedText {
	out := ExtractedText{Provenance: ProvenancePlainRead, Method: "plain-read"}
	data := bytes.TrimPrefix(doc.Data, utf8BOM)
	if !utf8.Valid(data) {
		out.Warnings = append(out.Warnings, "invalid utf-8")
		return out
	}
	out.Text = Normalize(string(data))
	out.Confidence = heuristicConfidence(out.Text)
	return out
}

// placeholder is kept lower-case so no extraction heuristic can match inside it
func placeholder(doc Document) ExtractedText {
	return ExtractedText{
		Text:       fmt.Sprintf("[unsupported document: %s]", doc.Name),
		Provenance: ProvenanceUnsupported,
		Method:     "placeholder",
	}
}

// guard converts a panic inside fn into an error
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recovered from panic: %v", p)
		}
	}()
	return fn()
}
