package document

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/pkg/file"
	"github.com/sngdarren/mr-team/pkg/log"
)

// Extractor pulls plain text out of an uploaded document.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText returns the text of every page. An empty result means the document is
// unreadable (for example a scanned PDF without a text layer).
func (PDFExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if !file.IsRegularFile(path) {
		return "", apperr.New(apperr.ErrFileNotFound, "document %s not found", path)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrInputValidation, "open pdf %s", path)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrInputValidation, "read pdf text %s", path)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", apperr.Wrap(err, apperr.ErrInputValidation, "read pdf text %s", path)
	}

	text := Normalize(buf.String())
	if text == "" {
		return "", apperr.New(apperr.ErrInputValidation, "document %s has no extractable text", path)
	}
	log.Info("Extracted %d characters from %d page(s) of %s", len(text), reader.NumPage(), path)
	return text, nil
}

// Normalize collapses runs of blank lines and trims trailing spaces.
func Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
