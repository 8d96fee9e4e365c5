package extract

import (
	"bytes"
	"fmt"
	"strings"

	pdfextractor "github.com/unidoc/unipdf/v3/extractor"
	pdfmodel "github.com/unidoc/unipdf/v3/model"
)

func extractPDF(data []byte) (string, error) {
	reader, err := pdfmodel.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %v", ErrCorruptDocument, err)
	}

	pageCount, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("%w: pdf page count: %v", ErrCorruptDocument, err)
	}
	if pageCount == 0 {
		return "", fmt.Errorf("%w: pdf has no pages", ErrCorruptDocument)
	}

	var builder strings.Builder
	for pageNumber := 1; pageNumber <= pageCount; pageNumber++ {
		page, err := reader.GetPage(pageNumber)
		if err != nil {
			continue
		}
		ex, err := pdfextractor.New(page)
		if err != nil {
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n\n")
	}

	// A readable PDF with nothing but images yields no text at all; the
	// dispatcher turns the empty string into ErrNoTextContent.
	return builder.String(), nil
}
