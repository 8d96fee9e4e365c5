package extract

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

// Classified extraction failures. Callers message these differently, so the
// distinction between a corrupt file and a parseable-but-textless one (for
// example a scanned PDF) must survive the trip out of this package.
var (
	ErrEmptyDocument     = errors.New("document is empty")
	ErrCorruptDocument   = errors.New("document could not be parsed")
	ErrNoTextContent     = errors.New("document contains no extractable text")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Extractor converts document blobs into plain text. It is a pure
// transformation over the blob bytes; it never touches storage.
type Extractor struct {
	logger *log.Logger
}

func NewExtractor(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract dispatches on the declared format. The API boundary validates
// formats before submission, but an unknown value is still rejected here
// explicitly rather than being read as raw bytes.
func (e *Extractor) Extract(data []byte, format domain.DocumentFormat) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	var (
		text string
		err  error
	)
	switch format {
	case domain.FormatPDF:
		text, err = extractPDF(data)
	case domain.FormatDOCX:
		text, err = extractDOCX(data)
	case domain.FormatDOC:
		text, err = extractDOC(data)
	case domain.FormatTXT:
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		if e.logger != nil {
			e.logger.Printf("extraction failed format=%s size=%d err=%v", format, len(data), err)
		}
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoTextContent
	}
	return text, nil
}
