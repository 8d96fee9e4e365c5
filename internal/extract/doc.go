package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// extractDOC reads a legacy Word binary file. The container is an OLE
// compound file; the visible text lives in the WordDocument stream. A full
// FIB/piece-table walk is not implemented: the stream is scanned for
// printable runs in both the 8-bit and UTF-16LE encodings Word mixes, and
// the richer reading wins. Good enough for resume prose; formatting
// artifacts are dropped by the scan.
func extractDOC(data []byte) (string, error) {
	container, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: read ole container: %v", ErrCorruptDocument, err)
	}

	var stream []byte
	for entry, err := container.Next(); err == nil; entry, err = container.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err = io.ReadAll(entry)
		if err != nil {
			return "", fmt.Errorf("%w: read WordDocument stream: %v", ErrCorruptDocument, err)
		}
		break
	}
	if len(stream) == 0 {
		return "", fmt.Errorf("%w: missing WordDocument stream", ErrCorruptDocument)
	}

	narrow := salvagePrintable(stream)
	wide := salvagePrintable(decodeUTF16LE(stream))
	if len(wide) > len(narrow) {
		return wide, nil
	}
	return narrow, nil
}

func decodeUTF16LE(data []byte) []byte {
	if len(data) < 2 {
		return nil
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])|uint16(data[i+1])<<8)
	}
	return []byte(string(utf16.Decode(units)))
}

// salvagePrintable keeps runs of at least four consecutive printable
// characters, separating runs with newlines. Shorter runs are almost always
// binary noise from the piece table and style records.
func salvagePrintable(data []byte) string {
	const minRun = 4

	var builder strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= minRun {
			builder.WriteString(strings.TrimSpace(string(run)))
			builder.WriteString("\n")
		}
		run = run[:0]
	}

	for _, r := range string(data) {
		if r == '\r' || r == 0x07 { // cell/paragraph marks
			run = append(run, ' ')
			continue
		}
		if unicode.IsPrint(r) || r == '\t' {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return builder.String()
}
