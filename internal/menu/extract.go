package menu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

var errNotPDF = errors.New("content is not a PDF document")

// ExtractionError reports a document that could not be turned into text.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return "menu: extract text: " + e.Err.Error() }

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor converts raw document bytes into normalized text.
type Extractor interface {
	Extract(raw []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(raw []byte) (string, error)

func (f ExtractorFunc) Extract(raw []byte) (string, error) { return f(raw) }

// PDFExtractor is the production Extractor.
type PDFExtractor struct{}

func (PDFExtractor) Extract(raw []byte) (string, error) { return Extract(raw) }

// Extract reads the full text content of a PDF and lower-cases it.
// Whitespace is kept as the PDF reader produced it.
func Extract(raw []byte) (text string, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), pdfMagic) {
		return "", &ExtractionError{Err: errNotPDF}
	}
	// The PDF reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Err: fmt.Errorf("malformed document: %v", r)}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", &ExtractionError{Err: err}
	}
	pr, err := r.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Err: err}
	}
	b, err := io.ReadAll(pr)
	if err != nil {
		return "", &ExtractionError{Err: err}
	}
	return Normalize(string(b)), nil
}

// Normalize case-folds text the same way Extract does.
func Normalize(s string) string { return strings.ToLower(s) }
