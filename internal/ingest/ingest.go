// Package ingest extracts plain text from syllabus source documents.
//
// Plain-text and Markdown files are read directly; PDFs are extracted
// page by page with a form feed separating pages. Unreadable or
// unsupported sources fail with ErrSourceRead.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// ErrSourceRead indicates an unreadable or unsupported source document.
var ErrSourceRead = errors.New("source document unreadable")

// SupportedExtensions lists the file extensions ExtractText can handle.
var SupportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".pdf": true,
}

// ExtractText reads the document at path and returns its plain text.
func ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported file extension %q", ErrSourceRead, ext)
	}

	switch ext {
	case ".pdf":
		text, err := extractPDFText(path)
		if err != nil {
			return "", fmt.Errorf("%w: extracting pdf %s: %v", ErrSourceRead, path, err)
		}
		return text, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: reading %s: %v", ErrSourceRead, path, err)
		}
		return string(data), nil
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", errors.New("no extractable text")
	}
	return buf.String(), nil
}
