package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ExtractDOCX reads word/document.xml out of the zip container and walks
// the WordprocessingML tree, collecting text runs paragraph by paragraph.
func ExtractDOCX(data []byte) ([]Unit, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening docx container: %v: %w", err, ErrNoText)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("docx missing word/document.xml: %w", ErrNoText)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("reading document.xml: %v: %w", err, ErrNoText)
	}
	defer rc.Close()

	text, err := wordprocessingText(rc)
	if err != nil {
		return nil, fmt.Errorf("parsing document.xml: %v: %w", err, ErrNoText)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}
	return []Unit{{Text: text}}, nil
}

// wordprocessingText streams the XML, emitting w:t character data and a
// newline per w:p paragraph close. Tabs and explicit breaks become spaces.
func wordprocessingText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte(' ')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
