package pdftext

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal uncompressed PDF with one page per content
// stream, computing the cross-reference offsets so the reader can open it.
func buildPDF(t *testing.T, pageContents ...string) []byte {
	t.Helper()

	n := len(pageContents)
	fontObj := 3 + 2*n
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n),
	}
	for i, content := range pageContents {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func textPage(line string) string {
	return fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
}

func TestExtract_PagesInOrder(t *testing.T) {
	doc := buildPDF(t,
		textPage("Opening balance 1000.00"),
		textPage("Closing balance 550.00"),
	)

	text, ok := Extract(doc)
	require.True(t, ok)

	first := bytes.Index([]byte(text), []byte("Opening balance"))
	second := bytes.Index([]byte(text), []byte("Closing balance"))
	assert.GreaterOrEqual(t, first, 0)
	assert.Greater(t, second, first, "page texts must keep page order")
	assert.Equal(t, text, trimmed(text))
}

func TestExtract_Unreadable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "empty", data: []byte{}},
		{name: "not a pdf", data: []byte("date,description\n2024-01-01,coffee")},
		{name: "truncated pdf", data: []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := Extract(tt.data)
			assert.False(t, ok)
			assert.Empty(t, text)
		})
	}
}

func TestExtractPages_NoText(t *testing.T) {
	doc := buildPDF(t, "0 0 m 10 10 l S")

	_, err := ExtractPages(doc)
	assert.Error(t, err)

	_, ok := Extract(doc)
	assert.False(t, ok)
}

func trimmed(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}
