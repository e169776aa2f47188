// Campusd is the campus assistant HTTP daemon.
//
// It serves chat, retrieval over the prebuilt chunk index, structured
// campus records and the study document tools.
//
// Configuration is loaded from ~/.config/campusd/config.yaml (or --config)
// and CAMPUSD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	campusd
//
//	# Configure via environment
//	CAMPUSD_SERVER_HTTP_PORT=9000 CAMPUSD_INDEX_DIR=/var/lib/campusd/index campusd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/chat"
	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/fyrsmithlabs/campusd/internal/documents"
	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/campusd/internal/http"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
	"github.com/fyrsmithlabs/campusd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  campusd [--config path]   Start the campusd daemon\n")
			fmt.Fprintf(os.Stderr, "  campusd version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Loading .env: %v", err)
	}
	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("campusd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every service from cfg and serves until ctx is cancelled:
//  1. Initializes telemetry and the logger
//  2. Opens the campus and document stores (Postgres or in-memory)
//  3. Creates the embedding provider and loads the chunk index
//  4. Starts the index watcher when enabled
//  5. Serves HTTP and shuts down gracefully on cancellation
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logCfg, err := logging.ConfigFor(cfg.Observability)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting campusd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("index_dir", cfg.Index.Dir),
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
	)

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	provider, err := embeddings.NewProvider(embeddings.ProviderConfigFrom(cfg.Embeddings), logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	defer provider.Close()

	engine := retrieval.NewEngine(index.NewStore(nil), provider,
		retrieval.WithLogger(logger),
		retrieval.WithTracer(tel.Tracer("github.com/fyrsmithlabs/campusd/internal/retrieval")),
		retrieval.WithIndexDir(cfg.Index.Dir),
		retrieval.WithBatchSize(cfg.Embeddings.BatchSize),
	)
	if _, err := engine.Reload(ctx); err != nil {
		// A broken index is fatal at startup; an absent one only disables retrieval.
		return fmt.Errorf("failed to load index from %s: %w", cfg.Index.Dir, err)
	}
	if stats := engine.Stats(); !stats.Absent && stats.Dimension != provider.Dimension() {
		return fmt.Errorf("%w: index has dimension %d, provider %q produces %d",
			index.ErrDimensionMismatch, stats.Dimension, cfg.Embeddings.Provider, provider.Dimension())
	}

	if cfg.Index.Watch {
		watcher, err := retrieval.NewWatcher(cfg.Index.Dir, engine, cfg.Index.Debounce.Duration(), logger.Underlying())
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Warn(ctx, "index watcher not started", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	study := documents.NewService(stores.documents, cfg.Study.UploadDir,
		documents.WithMaxUploadBytes(cfg.Study.MaxUploadBytes),
		documents.WithLogger(logger),
	)

	router := chat.NewRouter(stores.campus, engine, chat.WithLogger(logger))

	srv, err := httpserver.NewServer(httpserver.Services{
		Chat:   router,
		Campus: stores.campus,
		Index:  engine,
		Study:  study,
	}, logger, &httpserver.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		RateLimit:        cfg.Server.RateLimit,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Auth:             cfg.Auth,
		DefaultQuestions: cfg.Study.DefaultQuestions,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// stores holds the record stores chosen by configuration.
type stores struct {
	campus    campus.Source
	documents documents.Store
	db        *bun.DB
}

// Close releases the database pool, if any.
func (s *stores) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openStores connects to Postgres when a DSN is configured and creates the
// tables; otherwise it returns empty in-memory stores.
func openStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stores, error) {
	if cfg.Database.DSN == "" {
		logger.Warn(ctx, "no database configured, using in-memory stores")
		return &stores{
			campus:    campus.NewMemorySource(),
			documents: documents.NewMemoryStore(),
		}, nil
	}

	db := campus.OpenDB(cfg.Database.DSN, cfg.Database.Password.Value(), cfg.Database.Debug)
	source := campus.NewBunSource(db)
	docs := documents.NewBunStore(db)

	if err := source.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := errors.Join(source.Migrate(ctx), docs.Migrate(ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info(ctx, "database ready")

	return &stores{campus: source, documents: docs, db: db}, nil
}
