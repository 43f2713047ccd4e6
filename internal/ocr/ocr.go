package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Document-level confidences: direct text extraction is trusted more than a
// rasterize-and-recognize pass.
const (
	ConfidenceDirect = 0.9
	ConfidenceOCR    = 0.7

	// DefaultWordThreshold filters recognized words by their engine
	// confidence (0..1 here, 0..100 in the TSV output).
	DefaultWordThreshold = 0.6
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string  // default "eng"
	DPI           int     // rasterization DPI for scanned pages, default 144
	MaxPages      int     // 0 = no limit
	WordThreshold float64 // per-word confidence cutoff, default 0.6

	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

type Result struct {
	Text       string        `json:"text"`
	Pages      int           `json:"pages"`
	Method     string        `json:"method"` // "pdf-direct" | "pdf-ocr" | "hybrid"
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration_ns"`
	Warnings   []string      `json:"warnings,omitempty"`
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	if cfg.WordThreshold <= 0 {
		cfg.WordThreshold = DefaultWordThreshold
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract pulls text from every page, trying direct extraction first and
// falling back to OCR for pages with no embedded text. Failures degrade to an
// empty result with zero confidence; the error is in Warnings, never returned.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", path)

	direct, pages, err := e.pdfToText(ctx, path)
	if err != nil {
		e.logger.Warn("ocr.pdftotext.failed", "path", path, "error", err)
	}

	pageTexts := splitPages(direct, pages)
	var warnings []string
	ocrPages := 0
	for i, txt := range pageTexts {
		if strings.TrimSpace(txt) != "" {
			continue
		}
		recognized, rerr := e.recognize(ctx, path, i+1)
		if rerr != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i+1, rerr))
			continue
		}
		pageTexts[i] = recognized
		ocrPages++
	}

	res := Result{
		Text:     strings.TrimSpace(strings.Join(pageTexts, "\n")),
		Pages:    len(pageTexts),
		Duration: time.Since(start),
		Warnings: warnings,
	}
	switch {
	case res.Text == "":
		res.Method = "pdf-ocr"
		res.Confidence = 0.0
	case ocrPages == 0:
		res.Method = "pdf-direct"
		res.Confidence = ConfidenceDirect
	case ocrPages == len(pageTexts):
		res.Method = "pdf-ocr"
		res.Confidence = ConfidenceOCR
	default:
		res.Method = "hybrid"
		res.Confidence = ConfidenceDirect
	}

	e.logger.Info("ocr.extract.done",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"ocr_pages", ocrPages,
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds())
	return res
}

// RecognizePage rasterizes and recognizes a single page (1-based).
func (e *Extractor) RecognizePage(ctx context.Context, path string, pageNum int) (string, error) {
	return e.recognize(ctx, path, pageNum)
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w (%s)", err, truncate(string(errb), 512))
	}
	text = string(out)
	// A form-feed \f is used as page separator by default.
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil
}

// splitPages breaks pdftotext output on its form-feed separators, padding to
// the expected count when extraction failed outright.
func splitPages(text string, pages int) []string {
	if text == "" {
		if pages <= 0 {
			pages = 1
		}
		return make([]string, pages)
	}
	parts := strings.Split(text, "\f")
	for len(parts) < pages {
		parts = append(parts, "")
	}
	return parts
}

// recognize renders one page to PNG, preprocesses it, and runs the OCR engine
// in TSV mode so low-confidence words can be dropped.
func (e *Extractor) recognize(ctx context.Context, path string, pageNum int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "st-ocr-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmpdir.cleanup", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	page := fmt.Sprintf("%d", pageNum)
	// pdftoppm -r <dpi> -f <n> -l <n> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", e.cfg.DPI), "-f", page, "-l", page, "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", pageNum)
	}
	img := matches[0]

	if prepped, perr := preprocessImage(img); perr != nil {
		// Recognition still works on the raw render.
		e.logger.Warn("ocr.preprocess.failed", "image", img, "error", perr)
	} else {
		img = prepped
	}

	return e.tesseractTSV(ctx, img)
}

// tesseractTSV runs the engine in TSV mode and joins the words whose
// confidence clears the threshold, preserving line breaks.
func (e *Extractor) tesseractTSV(ctx context.Context, imgPath string) (string, error) {
	args := []string{imgPath, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return parseTSV(string(out), e.cfg.WordThreshold*100), nil
}
