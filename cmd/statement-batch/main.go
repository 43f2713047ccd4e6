package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/ai"
	"github.com/nokoro/statement-tracker/internal/common"
	"github.com/nokoro/statement-tracker/internal/export"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/layout"
	"github.com/nokoro/statement-tracker/internal/ocr"
	"github.com/nokoro/statement-tracker/internal/pipeline"
	"github.com/nokoro/statement-tracker/internal/repository"
)

type result struct {
	path string
	rec  extract.Record
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of statement PDFs to process (required)")
		out     = flag.String("out", "", "output XLSX path (defaults to <dir>/../statements.xlsx)")
		issuer  = flag.String("issuer", "", "issuer hint applied to every file")
		noAI    = flag.Bool("no-ai", false, "skip the validation stage")
		workers = flag.Int("workers", 4, "concurrent extraction workers")
		scratch = flag.Bool("scratch", false, "use a throwaway SQLite database instead of DB_URL")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "error: --dir is required")
		os.Exit(2)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "statements.xlsx")
	}
	iss := ""
	if *issuer != "" {
		norm, ok := constants.NormalizeIssuer(*issuer)
		if !ok {
			fmt.Fprintf(os.Stderr, "error: unknown issuer %q\n", *issuer)
			os.Exit(2)
		}
		iss = norm
	}
	if *workers < 1 {
		*workers = 1
	}

	cfg := common.LoadConfig()
	dbCfg := cfg.Database
	if *scratch {
		tmp, err := os.MkdirTemp("", "statement-batch-*")
		if err != nil {
			logger.Error("create scratch dir", "error", err)
			os.Exit(1)
		}
		defer os.RemoveAll(tmp)
		dbCfg.DSN = "sqlite://" + filepath.Join(tmp, "batch.db")
	}

	ctx := context.Background()

	db, err := repository.Open(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	statements := repository.NewStatementRepository(db, logger)

	ocrx := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		WordThreshold: cfg.OCR.WordThreshold,
	}, logger)
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

	files, err := collectPDFs(*dir)
	if err != nil {
		logger.Error("scanning directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("batch.scan.done", "dir", *dir, "files", len(files))
	if len(files) == 0 {
		fmt.Println("no PDF files found, nothing to do")
		return
	}

	results := processAll(ctx, orch, files, iss, *noAI, *workers)

	processed := 0
	failures := 0
	for _, r := range results {
		st := &repository.Statement{
			Filename: filepath.Base(r.path),
			FilePath: r.path,
			Issuer:   iss,
		}
		st.ApplyRecord(r.rec)
		if err := statements.Create(ctx, st); err != nil {
			logger.Error("batch.store.failed", "path", r.path, "error", err)
			failures++
			continue
		}
		if r.rec.Method == constants.MethodFailed {
			failures++
		} else {
			processed++
		}
	}

	exporter := export.NewService(statements, logger)
	xlsxBytes, err := exporter.ExportXLSX(ctx)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("write output", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch.done",
		"files", len(files),
		"processed", processed,
		"failures", failures,
		"output", *out,
	)
	fmt.Printf("batch complete: %d files, %d processed, %d failed -> %s\n",
		len(files), processed, failures, *out)
}

// collectPDFs walks dir recursively and returns every file with an accepted
// extension, in walk order.
func collectPDFs(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if constants.IsAllowedExt(filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// processAll fans the files out over a fixed worker pool. Extraction never
// returns an error; failures surface as records with the failed method.
func processAll(ctx context.Context, orch *pipeline.Orchestrator, files []string, issuer string, noAI bool, workers int) []result {
	extractFn := orch.Extract
	if noAI {
		extractFn = orch.ExtractNoAI
	}

	jobs := make(chan int)
	results := make([]result, len(files))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				rec := extractFn(ctx, files[i], issuer)
				slog.Info("batch.file.done",
					"path", files[i],
					"method", rec.Method,
					"overall_confidence", rec.OverallConfidence,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				results[i] = result{path: files[i], rec: rec}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
