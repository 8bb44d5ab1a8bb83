package extract

import (
	"bytes"
	"fmt"
	"strings"

	"smartats/internal/errors"

	"github.com/ledongthuc/pdf"
)

// Document is the text recovered from an uploaded resume
type Document struct {
	Text      string
	PageCount int
	// EmptyPages counts pages that yielded no text
	EmptyPages int
}

// Extractor turns uploaded document bytes into plain text
type Extractor interface {
	Extract(data []byte) (*Document, error)
}

// PDFExtractor extracts the plain text of every page of a PDF
type PDFExtractor struct {
	logger *errors.Logger
}

// NewPDFExtractor creates a PDF extractor
func NewPDFExtractor(logger *errors.Logger) *PDFExtractor {
	return &PDFExtractor{logger: logger}
}

// Extract concatenates page text in page order with no separator.
// Pages without decodable text contribute an empty string.
func (e *PDFExtractor) Extract(data []byte) (doc *Document, err error) {
	if len(data) == 0 {
		return nil, errors.NewDocumentParseError(errors.ErrCodeInvalidPDF, "uploaded resume is empty", nil)
	}

	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = errors.NewDocumentParseError(errors.ErrCodeInvalidPDF,
				"could not read resume PDF", fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewDocumentParseError(errors.ErrCodeInvalidPDF, "could not read resume PDF", err)
	}

	numPages := reader.NumPage()
	var text strings.Builder
	empty := 0
	for i := 1; i <= numPages; i++ {
		pageText := e.pageText(reader, i)
		if pageText == "" {
			empty++
		}
		text.WriteString(pageText)
	}

	if e.logger != nil {
		e.logger.Debug("Extracted resume text",
			"pages", numPages,
			"empty_pages", empty,
			"characters", text.Len())
	}

	return &Document{Text: text.String(), PageCount: numPages, EmptyPages: empty}, nil
}

func (e *PDFExtractor) pageText(reader *pdf.Reader, index int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Warn("Failed to decode page text", "page", index, "panic", fmt.Sprint(r))
			}
			text = ""
		}
	}()

	page := reader.Page(index)
	if page.V.IsNull() {
		return ""
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("Failed to decode page text", "page", index, "error", err)
		}
		return ""
	}
	return text
}
