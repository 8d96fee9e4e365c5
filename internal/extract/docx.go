package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

func extractDOCX(data []byte) (string, error) {
	document, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: read docx: %v", ErrCorruptDocument, err)
	}
	defer document.Close()

	content := document.Editable().GetContent()
	text, err := wordXMLToText(content)
	if err != nil {
		return "", fmt.Errorf("%w: docx body: %v", ErrCorruptDocument, err)
	}
	return text, nil
}

// wordXMLToText walks WordprocessingML and keeps the character data of w:t
// runs, breaking lines at paragraph boundaries.
func wordXMLToText(content string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(content))

	var builder strings.Builder
	inTextRun := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch node := token.(type) {
		case xml.StartElement:
			switch node.Name.Local {
			case "t":
				inTextRun = true
			case "br", "tab":
				builder.WriteString(" ")
			}
		case xml.EndElement:
			switch node.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				builder.WriteString("\n")
			}
		case xml.CharData:
			if inTextRun {
				builder.Write(node)
			}
		}
	}
	return builder.String(), nil
}
