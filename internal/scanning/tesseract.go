package scanning

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// Tesseract runs the tesseract CLI, feeding the image on stdin
type Tesseract struct {
	binary      string
	tessdataDir string
	psm         int
	runner      Runner
}

// NewTesseract creates a Tesseract engine. An empty binary means "tesseract" on PATH.
func NewTesseract(binary, tessdataDir string, psm int) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{
		binary:      binary,
		tessdataDir: tessdataDir,
		psm:         psm,
		runner:      execRunner{},
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize runs `tesseract stdin stdout -l <lang>`
func (t *Tesseract) Recognize(ctx context.Context, png []byte, lang string) (string, error) {
	args := []string{"stdin", "stdout", "-l", lang}
	if t.psm > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.psm))
	}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}

	out, errb, err := t.runner.Run(ctx, bytes.NewReader(png), t.binary, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return "", fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 512))
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

func (t *Tesseract) Close() error { return nil }
