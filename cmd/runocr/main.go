package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/extract"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/ocr"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <document-path>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ocrCfg := ocr.Config{
		TesseractLang: cfg.OCR.Language,
		TessdataDir:   cfg.OCR.TessdataDir,
		Timeout:       cfg.OCR.Timeout,
	}
	if missing := ocr.MissingTools(ocrCfg); len(missing) > 0 {
		logger.Warn("ocr tools missing", "tools", missing)
	}
	ocrx := ocr.NewExtractor(ocrCfg, logger)
	textExtractor := extract.NewOCRAdapter(ocrx, logger, extract.WithMinOCRConfidence(cfg.OCR.MinConfidence))

	start := time.Now()
	res, err := textExtractor.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", dur.Milliseconds(),
	)

	inv := extract.BuildInvoice(llm.Extraction{Fields: llm.NewRegexExtractor().Extract(res.Text), Source: llm.SourceRegex}, cfg.Pipeline.DefaultCurrency)
	fmt.Println(res.Text)
	fmt.Printf("--- regex fields: vendor=%q number=%q date=%q total=%s confidence=%.2f\n",
		inv.VendorName, inv.InvoiceNumber, inv.InvoiceDate, inv.TotalAmount.String(), inv.Confidence)
}
