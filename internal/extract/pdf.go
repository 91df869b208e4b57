package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF pulls text page by page. Blank pages are dropped; a PDF whose
// every page is blank (scans without an OCR layer, mostly) reports ErrNoText.
func ExtractPDF(data []byte) (units []Unit, err error) {
	// The pdf library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = fmt.Errorf("malformed pdf: %v: %w", r, ErrNoText)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %v: %w", err, ErrNoText)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		units = append(units, Unit{
			Text:      text,
			Page:      i,
			PageLabel: fmt.Sprintf("Page %d", i),
		})
	}

	if len(units) == 0 {
		return nil, ErrNoText
	}
	return units, nil
}
