// Package extract turns uploaded documents into plain-text units ready for
// chunking. PDFs yield one unit per page, everything else yields a single
// unlabeled unit. Extraction failures degrade instead of failing the upload.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrNoText marks a document from which no usable text could be extracted.
// Callers keep the upload but skip vectorization.
var ErrNoText = errors.New("no extractable text")

// Unit is one extractable piece of a document.
type Unit struct {
	Text      string
	Page      int    // 1-indexed for paged formats, 0 otherwise
	PageLabel string // "Page 3" for paged formats, "" otherwise
}

// Extract dispatches on the filename extension.
func Extract(filename string, data []byte) ([]Unit, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return ExtractPDF(data)
	case ".docx":
		return ExtractDOCX(data)
	case ".txt", ".md", ".csv", ".json", ".log", "":
		return ExtractText(data)
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		// Images go to the multimodal completion path, never the index.
		return nil, ErrNoText
	default:
		return ExtractText(data)
	}
}

// ExtractText decodes a plain-text document, trying UTF-8, ISO 8859-1 and
// Windows-1252 in order. Content with NUL bytes in the first kilobyte is
// treated as binary.
func ExtractText(data []byte) ([]Unit, error) {
	if len(data) == 0 {
		return nil, ErrNoText
	}

	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return nil, fmt.Errorf("binary content: %w", ErrNoText)
	}

	text, err := decode(data)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}
	return []Unit{{Text: text}}, nil
}

func decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, cm := range []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252} {
		if out, err := cm.NewDecoder().Bytes(data); err == nil {
			return string(out), nil
		}
	}
	return "", fmt.Errorf("undecodable content: %w", ErrNoText)
}
