package layout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/extract"
)

// Extractor reconstructs PDF page text from character positions. A
// PageRecognizer, when configured, handles pages without embedded text.
type Extractor struct {
	cfg Config
	ocr PageRecognizer
	log *slog.Logger
}

// NewExtractor builds a layout extractor. ocr may be nil; pages without
// embedded text then simply produce empty text.
func NewExtractor(cfg Config, ocr PageRecognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LineTolerance <= 0 {
		cfg.LineTolerance = DefaultConfig().LineTolerance
	}
	if cfg.SnapTolerance <= 0 {
		cfg.SnapTolerance = DefaultConfig().SnapTolerance
	}
	if cfg.JoinTolerance <= 0 {
		cfg.JoinTolerance = DefaultConfig().JoinTolerance
	}
	return &Extractor{cfg: cfg, ocr: ocr, log: logger}
}

// ExtractDocument extracts every page. Page-level failures degrade to the
// library's plain-text extraction for that page; a document-level failure
// returns an empty-text result tagged as failed. It never returns an error.
func (e *Extractor) ExtractDocument(ctx context.Context, path string) DocumentResult {
	res := DocumentResult{Method: "layout_positional"}

	f, reader, err := pdf.Open(path)
	if err != nil {
		e.log.Error("layout.open.failed", "path", path, "error", err)
		res.Method = "layout_failed"
		res.Steps.Add("layout", "error", err.Error())
		res.Overall = 0.0
		return res
	}
	defer f.Close()

	var all []string
	for n := 1; n <= reader.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			res.Method = "layout_failed"
			res.Steps.Add("layout", "error", err.Error())
			res.Overall = 0.0
			return res
		}
		page := e.extractPage(ctx, reader, path, n)
		res.Pages = append(res.Pages, page)
		all = append(all, page.Text)
		res.Steps.Add("layout", fmt.Sprintf("page_%d", n-1),
			fmt.Sprintf("layout extraction (text: %d chars)", len(page.Text)))
	}

	res.Text = joinPages(all)
	res.Overall = 0.8
	return res
}

// extractPage reconstructs one page. Any panic inside the PDF library
// degrades to plain-text extraction; an empty page goes to the OCR fallback.
func (e *Extractor) extractPage(ctx context.Context, reader *pdf.Reader, path string, n int) Page {
	out := Page{Index: n - 1}

	chars, err := e.pageChars(reader, n)
	if err != nil {
		e.log.Warn("layout.page.degraded", "page", n, "error", err)
		out.Text = e.plainText(reader, n)
	} else {
		rows := reconstructRows(chars, e.cfg.LineTolerance)
		out.Rows = rows
		out.Text = rowsText(rows)
		out.Tables = detectTables(chars, e.cfg.SnapTolerance, e.cfg.JoinTolerance)
	}

	if out.Text == "" && e.ocr != nil {
		text, ocrErr := e.ocr.RecognizePage(ctx, path, n)
		if ocrErr != nil {
			e.log.Warn("layout.ocr.failed", "page", n, "error", ocrErr)
		} else if text != "" {
			out.Text = text
			out.UsedOCR = true
		}
	}
	return out
}

// pageChars pulls the positioned characters for a page, converting the
// library's panics into errors.
func (e *Extractor) pageChars(reader *pdf.Reader, n int) (chars []Char, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d content: %v", n, r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d is null", n)
	}
	content := page.Content()
	chars = make([]Char, 0, len(content.Text))
	for _, t := range content.Text {
		chars = append(chars, Char{X: t.X, Y: t.Y, W: t.W, S: t.S})
	}
	return chars, nil
}

// plainText is the degraded per-page path.
func (e *Extractor) plainText(reader *pdf.Reader, n int) string {
	defer func() {
		// GetPlainText can panic on malformed content streams as well.
		_ = recover()
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		e.log.Warn("layout.plaintext.failed", "page", n, "error", err)
		return ""
	}
	return text
}

// ExtractFields runs document extraction and then the smart field heuristics
// over the reconstructed text. It never returns an error: a failed document
// yields empty fields with zero confidence and the error in the step log.
func (e *Extractor) ExtractFields(ctx context.Context, path string) FieldResult {
	doc := e.ExtractDocument(ctx, path)

	res := FieldResult{
		Text:       doc.Text,
		Fields:     extract.NewFieldSet(),
		Confidence: extract.NewConfidenceMap(),
		Method:     constants.MethodSmartLayout,
		Steps:      doc.Steps,
	}
	if doc.Method == "layout_failed" || doc.Text == "" {
		if doc.Method == "layout_failed" {
			res.Method = "smart_layout_failed"
		}
		return res
	}

	res.Fields, res.Confidence = scanFields(doc.Text, e.log)
	return res
}

func joinPages(pages []string) string {
	return strings.TrimSpace(strings.Join(pages, "\n"))
}
