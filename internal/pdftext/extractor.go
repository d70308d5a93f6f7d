// Package pdftext turns statement PDF bytes into a single linear text blob.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned by ExtractPages when the document decodes but has no text.
var ErrNoText = errors.New("pdftext: no text in document")

// Extract returns the text of every page in page order, joined by newlines and
// trimmed. The second result is false when the document cannot be decoded or
// contains no text; library errors never escape.
func Extract(data []byte) (string, bool) {
	pages, err := ExtractPages(data)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(strings.Join(pages, "\n"))
	return text, text != ""
}

// ExtractPages returns the non-empty page texts of the document in page order.
func ExtractPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("ExtractPages: PDF library crashed: %v", r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("ExtractPages: empty document")
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ExtractPages: open: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("ExtractPages: PDF has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text := pageRows(page)
		if text == "" {
			text = pagePlainText(page)
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

// pageRows rebuilds the page line by line: words of a row joined by a space.
func pageRows(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var lines []string
	for _, row := range rows {
		parts := make([]string, 0, len(row.Content))
		for _, word := range row.Content {
			parts = append(parts, word.S)
		}
		line := strings.TrimSpace(strings.Join(parts, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func pagePlainText(page pdf.Page) string {
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
