package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/warrantysafe/internal/engine"
	"github.com/zombor/warrantysafe/internal/extraction"
	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
	"github.com/zombor/warrantysafe/internal/warranty"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	_ = godotenv.Load()

	fs := ff.NewFlagSet("warranty-scan")
	var (
		ocrType     = fs.StringLong("ocr", "tesseract", "OCR engine: 'tesseract', 'gemini', 'ollama', 'azure' or 'none'")
		ocrLang     = fs.StringLong("ocr-lang", "eng", "OCR language profile")
		tessBinary  = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary")
		tessData    = fs.StringLong("tessdata", "", "Tesseract tessdata directory (optional)")
		tessPSM     = fs.IntLong("tesseract-psm", 6, "Tesseract page segmentation mode")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		azureURL    = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey    = fs.StringLong("azure-key", "", "Azure Computer Vision key")
		noPDFText   = fs.BoolLong("no-pdf-text", "Skip the embedded text layer of PDFs")
		noPDFOCR    = fs.BoolLong("no-pdf-ocr", "Do not OCR PDFs without a text layer")
		brands      = fs.StringLong("brands", "", "Comma separated brand allow-list (defaults to the built-in list)")
		asOf        = fs.StringLong("as-of", "", "Classify warranties at this date (YYYY-MM-DD) instead of today")
		maxUploadMB = fs.IntLong("max-upload-mb", 5, "Skip documents larger than this many MB")
		concurrency = fs.IntLong("concurrency", 4, "Documents processed at once")
		outPath     = fs.StringLong("out", "-", "Output file for the JSON results ('-' for stdout)")
		withText    = fs.BoolLong("with-text", "Include the recovered text in the output")
		verbose     = fs.BoolLong("verbose", "Log progress to stderr")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("WARRANTYSAFE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	paths := fs.GetArgs()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: no documents given")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ocr, err := scanning.NewEngine(*ocrType, scanning.EngineOptions{
		TesseractBinary: *tessBinary,
		TessdataDir:     *tessData,
		TesseractPSM:    *tessPSM,
		GeminiKey:       *geminiKey,
		GeminiModel:     *geminiModel,
		OllamaURL:       *ollamaURL,
		OllamaModel:     *ollamaModel,
		AzureEndpoint:   *azureURL,
		AzureKey:        *azureKey,
	})
	if err != nil {
		slog.Error("Failed to initialize OCR engine", "type", *ocrType, "error", err)
		os.Exit(1)
	}
	if ocr != nil {
		defer ocr.Close()
	}

	opts := []engine.Option{engine.WithLogger(slog.Default())}
	if *brands != "" {
		opts = append(opts, engine.WithExtractor(extraction.New(splitList(*brands))))
	}
	if *asOf != "" {
		d, err := record.ParseDate(*asOf)
		if err != nil {
			slog.Error("Invalid --as-of date", "error", err)
			os.Exit(1)
		}
		opts = append(opts, engine.WithClock(func() time.Time { return d.Time() }))
	}

	recoverer := scanning.NewRecoverer(ocr, scanning.Config{
		Language:  *ocrLang,
		PDFText:   !*noPDFText,
		PDFRaster: !*noPDFOCR,
	}, slog.Default())
	eng := engine.New(recoverer, opts...)

	docs, skipped, err := readDocuments(paths, warranty.UploadPolicy{MaxBytes: int64(*maxUploadMB) << 20})
	if err != nil {
		slog.Error("Failed to read documents", "error", err)
		os.Exit(1)
	}
	for _, s := range skipped {
		slog.Warn("Skipping document", "path", s.Path, "error", s.Err)
	}
	if len(docs) == 0 {
		slog.Error("No documents left to process", "skipped", len(skipped))
		os.Exit(1)
	}

	results, err := eng.ProcessAll(ctx, docs, *concurrency)
	if err != nil {
		slog.Error("Processing stopped", "error", err)
		os.Exit(1)
	}
	if !*withText {
		for i := range results {
			results[i].Text.Text = ""
		}
	}

	var out io.Writer = os.Stdout
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("Failed to create output file", "path", *outPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		slog.Error("Failed to write results", "error", err)
		os.Exit(1)
	}
}

// skippedDocument is a document rejected before processing
type skippedDocument struct {
	Path string
	Err  error
}

// readDocuments loads each path and applies the upload policy. Rejected documents are
// returned separately and never reach the engine.
func readDocuments(paths []string, policy warranty.UploadPolicy) ([]scanning.Document, []skippedDocument, error) {
	docs := make([]scanning.Document, 0, len(paths))
	var skipped []skippedDocument
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", p, err)
		}
		name := filepath.Base(p)
		if policy.MaxBytes > 0 && info.Size() > policy.MaxBytes {
			skipped = append(skipped, skippedDocument{
				Path: p,
				Err:  fmt.Errorf("%w: %d bytes, limit is %d", warranty.ErrTooLarge, info.Size(), policy.MaxBytes),
			})
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", p, err)
		}
		doc := scanning.NewDocument(name, scanning.MediaTypeFromExt(name), data)
		if err := warranty.CheckUpload(doc, policy); err != nil {
			skipped = append(skipped, skippedDocument{Path: p, Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
