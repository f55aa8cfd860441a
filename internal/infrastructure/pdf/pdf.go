// Package pdf extracts plain text from PDF documents so they can be fed to
// the entity extractor.  Pages that cannot be decoded are skipped; a document
// with no decodable text at all fails with ErrCodeDocumentUnreadable.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// ContentTypePDF is the MIME type this package handles.
const ContentTypePDF = "application/pdf"

// Extractor converts PDF bytes to plain text.
type Extractor struct {
	logger logging.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{logger: logger.Named("pdf")}
}

// IsPDF sniffs the magic bytes of the document.
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(content, []byte("%PDF-"))
}

// Text extracts the plain text of every decodable page, in page order.
// The underlying reader panics on some corrupt files; that surfaces as an
// ErrCodeDocumentUnreadable error, not a crash.
func (e *Extractor) Text(content []byte) (out string, err error) {
	if len(content) == 0 {
		return "", errors.New(errors.ErrCodeDocumentEmpty, "document is empty")
	}
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = errors.New(errors.ErrCodeDocumentUnreadable,
				fmt.Sprintf("PDF reader panicked: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentUnreadable, "failed to open PDF")
	}

	var (
		b       strings.Builder
		skipped int
	)
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			skipped++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			e.logger.Warn("page skipped, text not decodable",
				logging.Int("page", i), logging.Err(err))
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	out = strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New(errors.ErrCodeDocumentUnreadable,
			"PDF contains no extractable text").
			WithDetail("pages_skipped=" + strconv.Itoa(skipped))
	}

	e.logger.Debug("pdf text extracted",
		logging.Int("pages", total),
		logging.Int("pages_skipped", skipped),
		logging.Int("text_length", len(out)))
	return out, nil
}
