package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/ai"
	"github.com/nokoro/statement-tracker/internal/common"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/layout"
	"github.com/nokoro/statement-tracker/internal/ocr"
	"github.com/nokoro/statement-tracker/internal/pipeline"
)

type output struct {
	File              string                     `json:"file"`
	Issuer            string                     `json:"issuer"`
	Fields            extract.FieldSet           `json:"fields"`
	Confidence        extract.ConfidenceMap      `json:"confidence"`
	OverallConfidence float64                    `json:"overall_confidence"`
	Method            string                     `json:"extraction_method"`
	Steps             extract.StepLog            `json:"extraction_steps"`
	FieldRationale    map[constants.Field]string `json:"field_rationale,omitempty"`
	LLMRationale      string                     `json:"llm_rationale,omitempty"`
	DurationMs        int64                      `json:"duration_ms"`
}

func main() {
	var (
		issuer  = flag.String("issuer", "", "card issuer hint (hdfc, icici, sbi, axis, citibank)")
		noAI    = flag.Bool("no-ai", false, "skip the validation stage")
		ocrOnly = flag.Bool("ocr-only", false, "print the hybrid text extraction result and exit")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] <statement.pdf>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	iss := ""
	if *issuer != "" {
		norm, ok := constants.NormalizeIssuer(*issuer)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown issuer %q\n", *issuer)
			os.Exit(2)
		}
		iss = norm
	}

	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		WordThreshold: cfg.OCR.WordThreshold,
	}, logger)

	if *ocrOnly {
		res := ocrx.Extract(ctx, path)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			logger.Error("encode result", "error", err)
			os.Exit(1)
		}
		if res.Text == "" {
			os.Exit(1)
		}
		return
	}

	layoutx := layout.NewExtractor(layout.DefaultConfig(), ocrx, logger)
	validator := ai.NewProvider(ai.Config{
		Provider:    cfg.AI.Provider,
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	}, logger)
	orch := pipeline.NewOrchestrator(layoutx, nil, validator, logger)

	start := time.Now()
	var rec extract.Record
	if *noAI {
		rec = orch.ExtractNoAI(ctx, path, iss)
	} else {
		rec = orch.Extract(ctx, path, iss)
	}

	out := output{
		File:              path,
		Issuer:            iss,
		Fields:            rec.Fields,
		Confidence:        rec.Confidence,
		OverallConfidence: rec.OverallConfidence,
		Method:            rec.Method,
		Steps:             rec.Steps,
		FieldRationale:    rec.FieldRationale,
		LLMRationale:      rec.LLMRationale,
		DurationMs:        time.Since(start).Milliseconds(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	if rec.Method == constants.MethodFailed {
		os.Exit(1)
	}
}
