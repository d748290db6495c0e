package scanning

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// pdfTextLayer returns the embedded text of every page. Scanned PDFs have no text layer and
// return an empty string.
func pdfTextLayer(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i, err)
		}
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(word.S)
			}
			buf.WriteByte('\n')
		}
	}
	if buf.Len() > 0 {
		return buf.String(), nil
	}

	// some generators put everything in one content stream without row metadata
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(b), nil
}
