package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zombor/soa-tracker/internal/batch"
	"github.com/zombor/soa-tracker/internal/pipeline"
	"github.com/zombor/soa-tracker/internal/receipt"
	"github.com/zombor/soa-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port        *int
	dbPath      *string
	archive     *string
	archivePath *string

	minioEndpoint  *string
	minioAccessKey *string
	minioSecretKey *string
	minioBucket    *string
	minioRegion    *string
	minioSSL       *bool

	scannerType    *string
	geminiKey      *string
	geminiModel    *string
	geminiFallback *string
	ollamaURL      *string
	ollamaModel    *string
	ocr            *bool
	ocrLanguage    *string

	timeout  *time.Duration
	window   *time.Duration
	workers  *int
	maxPages *int
	trigger  *string
	budget   *float64

	authUser *string
	authPass *string

	logLevel *string
	logFile  *string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("soa-tracker")
	cfg := config{
		port:        fs.IntLong("port", 8080, "HTTP server port"),
		dbPath:      fs.StringLong("db", "soa-tracker.db", "Database file path"),
		archive:     fs.StringLong("archive", "local", "Archive backend: 'local' or 'minio'"),
		archivePath: fs.StringLong("archive-dir", "./receipts", "Archive directory for the local backend"),

		minioEndpoint:  fs.StringLong("minio-endpoint", "localhost:9000", "MinIO/S3 endpoint"),
		minioAccessKey: fs.StringLong("minio-access-key", "", "MinIO/S3 access key"),
		minioSecretKey: fs.StringLong("minio-secret-key", "", "MinIO/S3 secret key"),
		minioBucket:    fs.StringLong("minio-bucket", "receipts", "MinIO/S3 bucket"),
		minioRegion:    fs.StringLong("minio-region", "", "MinIO/S3 region"),
		minioSSL:       fs.BoolLong("minio-ssl", "Use TLS for MinIO/S3"),

		scannerType:    fs.StringLong("scanner", "gemini", "AI backend: 'gemini' or 'ollama'"),
		geminiKey:      fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:    fs.StringLong("gemini-model", "gemini-2.5-flash-lite", "Google Gemini model name"),
		geminiFallback: fs.StringLong("gemini-fallback-model", "gemini-2.5-flash", "Gemini model tried when the primary fails"),
		ollamaURL:      fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:    fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)"),
		ocr:            fs.BoolLong("ocr", "Use local Tesseract OCR as a text source"),
		ocrLanguage:    fs.StringLong("ocr-lang", "eng", "Tesseract languages, '+' separated"),

		timeout:  fs.DurationLong("timeout", pipeline.DefaultTimeout, "Per-document extraction timeout"),
		window:   fs.DurationLong("window", batch.DefaultWindow, "Album debounce window"),
		workers:  fs.IntLong("workers", pipeline.DefaultWorkers, "Concurrent extractions"),
		maxPages: fs.IntLong("max-pages", pipeline.DefaultMaxPages, "PDF pages read per document"),
		trigger:  fs.StringLong("trigger", receipt.DefaultTrigger, "Caption text that requests extraction"),
		budget:   fs.Float64Long("budget", 0, "Statement of account budget (0 = none)"),

		authUser: fs.StringLong("auth-user", "", "Basic auth username (optional)"),
		authPass: fs.StringLong("auth-pass", "", "Basic auth password (optional)"),

		logLevel: fs.StringLong("log-level", "info", "Log level: debug, info, warn, error"),
		logFile:  fs.StringLong("log-file", "", "Also write logs to this rotating file"),
	}
	_ = fs.StringLong("config", "", "Config file (key value per line)")
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SOA_TRACKER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger, err := newLogger(*cfg.logLevel, *cfg.logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level, file string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var w io.Writer = os.Stdout
	if file != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func newModel(cfg config) (scanning.Model, error) {
	switch *cfg.scannerType {
	case "gemini":
		apiKey := *cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini...", "model", *cfg.geminiModel, "fallback", *cfg.geminiFallback)
		return scanning.NewGemini(apiKey, *cfg.geminiModel, *cfg.geminiFallback)
	case "ollama":
		slog.Info("Initializing Ollama...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		return scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q: want gemini or ollama", *cfg.scannerType)
	}
}

func newStorage(ctx context.Context, cfg config) (receipt.Storage, error) {
	switch *cfg.archive {
	case "local":
		slog.Info("Initializing local archive...", "path", *cfg.archivePath)
		return receipt.NewLocalStorage(*cfg.archivePath)
	case "minio":
		slog.Info("Initializing MinIO archive...", "endpoint", *cfg.minioEndpoint, "bucket", *cfg.minioBucket)
		return receipt.NewMinioStorage(ctx, receipt.MinioConfig{
			Endpoint:  *cfg.minioEndpoint,
			AccessKey: *cfg.minioAccessKey,
			SecretKey: *cfg.minioSecretKey,
			Bucket:    *cfg.minioBucket,
			Region:    *cfg.minioRegion,
			UseSSL:    *cfg.minioSSL,
		})
	default:
		return nil, fmt.Errorf("invalid archive backend %q: want local or minio", *cfg.archive)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	slog.Info("Initializing database...", "path", *cfg.dbPath)
	db, err := receipt.NewBoltDB(*cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	model, err := newModel(cfg)
	if err != nil {
		return fmt.Errorf("initializing AI backend: %w", err)
	}
	defer model.Close()

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing archive: %w", err)
	}

	engines := pipeline.Engines{
		Vision: model,
		Text:   model,
		Layer:  scanning.PDFText{MaxPages: *cfg.maxPages},
		Tables: scanning.PDFTables{MaxPages: *cfg.maxPages},
	}
	if *cfg.ocr {
		engines.OCR = scanning.NewTesseract(strings.Split(*cfg.ocrLanguage, "+")...)
	}

	extractor := pipeline.New(pipeline.DefaultStrategies(engines),
		pipeline.WithTimeout(*cfg.timeout),
		pipeline.WithWorkers(*cfg.workers),
		pipeline.WithLogger(logger),
		pipeline.WithRasterizer(scanning.Fitz{DPI: 150}, *cfg.maxPages),
	)

	service := receipt.NewService(db, extractor, store, receipt.Config{
		Trigger: *cfg.trigger,
		Budget:  *cfg.budget,
		Window:  *cfg.window,
		Logger:  logger,
	})

	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: *cfg.authUser,
		Password: *cfg.authPass,
	})

	addr := fmt.Sprintf(":%d", *cfg.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if *cfg.authUser != "" || *cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", *cfg.authUser)
	}

	select {
	case err := <-errCh:
		if err != nil {
			service.Close()
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}

	// Seals open albums and waits for in-flight extractions
	service.Close()
	slog.Info("Shutdown complete")
	return nil
}
