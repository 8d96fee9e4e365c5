package extract

import (
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

func newTestExtractor() *Extractor {
	return NewExtractor(log.New(os.Stdout, "[extract-test] ", log.LstdFlags))
}

func TestExtractPlainText(t *testing.T) {
	extractor := newTestExtractor()

	text, err := extractor.Extract([]byte("  Jane Doe\nSenior Engineer\n\n"), domain.FormatTXT)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if text != "Jane Doe\nSenior Engineer" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	extractor := newTestExtractor()

	for _, data := range [][]byte{nil, {}} {
		if _, err := extractor.Extract(data, domain.FormatPDF); !errors.Is(err, ErrEmptyDocument) {
			t.Fatalf("expected ErrEmptyDocument, got %v", err)
		}
	}
}

func TestExtractWhitespaceOnlyText(t *testing.T) {
	extractor := newTestExtractor()

	if _, err := extractor.Extract([]byte("  \n\t  \n"), domain.FormatTXT); !errors.Is(err, ErrNoTextContent) {
		t.Fatalf("expected ErrNoTextContent, got %v", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	extractor := newTestExtractor()

	_, err := extractor.Extract([]byte("data"), domain.DocumentFormat("application/vnd.ms-excel"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractCorruptBinaryFormats(t *testing.T) {
	extractor := newTestExtractor()
	garbage := []byte("this is not a valid binary document payload at all")

	for _, format := range []domain.DocumentFormat{domain.FormatPDF, domain.FormatDOCX, domain.FormatDOC} {
		if _, err := extractor.Extract(garbage, format); !errors.Is(err, ErrCorruptDocument) {
			t.Fatalf("format %s: expected ErrCorruptDocument, got %v", format, err)
		}
	}
}

func TestWordXMLToText(t *testing.T) {
	content := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Senior</w:t></w:r><w:r><w:tab/><w:t>Engineer</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := wordXMLToText(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Jane Doe") {
		t.Fatalf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Senior Engineer") {
		t.Fatalf("tab should become a space: %q", text)
	}
	if !strings.Contains(text, "\n") {
		t.Fatalf("paragraphs should break lines: %q", text)
	}
}

func TestSalvagePrintableDropsShortRuns(t *testing.T) {
	data := append([]byte{0x01, 0x02}, []byte("Experienced developer")...)
	data = append(data, 0x00, 0x03)
	data = append(data, []byte("ab")...) // below the run threshold
	data = append(data, 0x00)

	text := salvagePrintable(data)
	if !strings.Contains(text, "Experienced developer") {
		t.Fatalf("long run should survive: %q", text)
	}
	if strings.Contains(text, "ab") {
		t.Fatalf("short run should be discarded: %q", text)
	}
}

func TestDecodeUTF16LE(t *testing.T) {
	data := []byte{'H', 0, 'i', 0, '!', 0}
	if got := string(decodeUTF16LE(data)); got != "Hi!" {
		t.Fatalf("unexpected decode: %q", got)
	}
	if decodeUTF16LE([]byte{'x'}) != nil {
		t.Fatalf("single byte should decode to nil")
	}
}
