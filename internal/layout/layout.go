// Package layout produces a geometrically faithful text reconstruction of a
// PDF by ordering characters by position, plus table grids and labeled-field
// detection on the reconstructed text.
package layout

import (
	"context"

	"github.com/nokoro/statement-tracker/internal/extract"
)

// Config holds the geometric tolerances. Values mirror the strict-line table
// strategy: small snap/join tolerances, one-line minimums.
type Config struct {
	LineTolerance float64 // chars whose Y differs by less than this share a line
	SnapTolerance float64 // row clustering tolerance for table detection
	JoinTolerance float64 // column-edge joining tolerance for table detection
}

// DefaultConfig returns the tolerances used in production.
func DefaultConfig() Config {
	return Config{
		LineTolerance: 5.0,
		SnapTolerance: 3.0,
		JoinTolerance: 3.0,
	}
}

// Char is one positioned character from a PDF content stream.
type Char struct {
	X, Y float64
	W    float64
	S    string
}

// TextRow is a reconstructed line of text with its geometric extent.
type TextRow struct {
	Y      float64
	X0, X1 float64
	Text   string
}

// Table is a detected straight-grid table: rows by columns of cell strings.
type Table struct {
	Rows  int
	Cols  int
	Cells [][]string
}

// Page is the raw extraction of a single PDF page. Immutable once produced;
// owned by the extraction run.
type Page struct {
	Index  int
	Text   string
	Rows   []TextRow
	Tables []Table
	// UsedOCR marks pages whose text came from the OCR fallback rather than
	// embedded text.
	UsedOCR bool
}

// DocumentResult is the whole-document layout extraction outcome. Failures
// are represented in Method/Steps, never as an error to the caller.
type DocumentResult struct {
	Text    string
	Pages   []Page
	Method  string
	Steps   extract.StepLog
	Overall float64
}

// FieldResult is the smart-mode outcome: reconstructed text plus candidate
// fields with per-field-class confidences.
type FieldResult struct {
	Text       string
	Fields     extract.FieldSet
	Confidence extract.ConfidenceMap
	Method     string
	Steps      extract.StepLog
}

// PageRecognizer rasterizes and OCRs a single page. The layout extractor
// calls it only for pages with no embedded text.
type PageRecognizer interface {
	RecognizePage(ctx context.Context, path string, pageNum int) (string, error)
}
