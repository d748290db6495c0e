package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/warrantysafe/internal/engine"
	"github.com/zombor/warrantysafe/internal/extraction"
	"github.com/zombor/warrantysafe/internal/scanning"
	"github.com/zombor/warrantysafe/internal/warranty"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// a missing .env file is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("warrantysafe")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbType       = fs.StringLong("db-type", "bolt", "Database: 'bolt' or 'postgres'")
		dbPath       = fs.StringLong("db", "warrantysafe.db", "BoltDB file path")
		databaseURL  = fs.StringLong("database-url", "", "Postgres connection URL (for --db-type=postgres)")
		storageType  = fs.StringLong("storage-type", "local", "Archive storage: 'local' or 'gcs'")
		storagePath  = fs.StringLong("storage", "./archive", "Local archive directory")
		gcsBucket    = fs.StringLong("gcs-bucket", "", "GCS bucket for archived documents")
		gcsPrefix    = fs.StringLong("gcs-prefix", "warranties", "Object name prefix inside the GCS bucket")
		ocrType      = fs.StringLong("ocr", "tesseract", "OCR engine: 'tesseract', 'gemini', 'ollama', 'azure' or 'none'")
		ocrLang      = fs.StringLong("ocr-lang", "eng", "OCR language profile")
		tessBinary   = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary")
		tessData     = fs.StringLong("tessdata", "", "Tesseract tessdata directory (optional)")
		tessPSM      = fs.IntLong("tesseract-psm", 6, "Tesseract page segmentation mode")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		azureURL     = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey     = fs.StringLong("azure-key", "", "Azure Computer Vision key")
		noPDFText    = fs.BoolLong("no-pdf-text", "Skip the embedded text layer of PDFs")
		noPDFRaster  = fs.BoolLong("no-pdf-ocr", "Do not OCR PDFs without a text layer")
		brands       = fs.StringLong("brands", "", "Comma separated brand allow-list (defaults to the built-in list)")
		maxUploadMB  = fs.IntLong("max-upload-mb", 5, "Maximum upload size in MB")
		premiumUsers = fs.StringLong("premium-users", "", "Comma separated users on the paid plan")
		authUsers    = fs.StringLong("auth-users", "", "Basic auth users as user:password,user:password (empty runs single-user)")
		remindEvery  = fs.DurationLong("remind-every", time.Hour, "Interval between expiry reminder sweeps (0 disables)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("WARRANTYSAFE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	slog.Info("Initializing database...", "type", *dbType)
	var db warranty.DB
	var err error
	switch *dbType {
	case "bolt":
		db, err = warranty.NewBoltDB(*dbPath)
	case "postgres":
		db, err = warranty.OpenPostgres(ctx, *databaseURL)
	default:
		err = fmt.Errorf("invalid database type %q, want bolt or postgres", *dbType)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR engine based on type
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

	recoverer := scanning.NewRecoverer(ocr, scanning.Config{
		Language:  *ocrLang,
		PDFText:   !*noPDFText,
		PDFRaster: !*noPDFRaster,
	}, slog.Default())

	extractor := extraction.New(extraction.DefaultBrands)
	if *brands != "" {
		extractor = extraction.New(splitList(*brands))
	}
	eng := engine.New(recoverer, engine.WithExtractor(extractor))

	// Initialize storage
	slog.Info("Initializing storage...", "type", *storageType)
	var store warranty.Storage
	switch *storageType {
	case "local":
		store, err = warranty.NewLocalStorage(*storagePath)
	case "gcs":
		var gcs *warranty.GCSStorage
		gcs, err = warranty.NewGCSStorage(ctx, *gcsBucket, *gcsPrefix)
		if err == nil {
			defer gcs.Close()
			store = gcs
		}
	default:
		err = fmt.Errorf("invalid storage type %q, want local or gcs", *storageType)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	users, err := warranty.ParseUsers(*authUsers)
	if err != nil {
		slog.Error("Invalid auth users", "error", err)
		os.Exit(1)
	}

	// Initialize service
	service := warranty.NewService(db, eng, store, warranty.NewStaticPlans(splitList(*premiumUsers)))
	service.SetUploadPolicy(warranty.UploadPolicy{MaxBytes: int64(*maxUploadMB) << 20})

	if *remindEvery > 0 {
		go runReminders(ctx, service, *remindEvery)
	}

	server := warranty.NewServer(service, warranty.BasicAuth{Users: users})
	if len(users) > 0 {
		slog.Info("Basic auth enabled", "users", len(users))
	} else {
		slog.Info("Basic auth disabled, running single-user", "user", warranty.LocalUser)
	}

	addr := fmt.Sprintf(":%d", *port)
	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shut down")
}

func runReminders(ctx context.Context, service *warranty.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := service.SweepReminders(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Reminder sweep failed", "error", err)
			}
		}
	}
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
