// Curriculumd is the academic planning daemon.
//
// It serves the planning workflow and index rebuilds over HTTP,
// backed by a local vector index of the course syllabus and an
// OpenAI-compatible generation provider.
//
// Configuration is loaded from a YAML file and overridden by
// CURRICULUMD_* environment variables. See internal/config for
// details.
//
// Usage:
//
//	# Start with defaults
//	curriculumd
//
//	# Start with a config file
//	curriculumd -config /etc/curriculumd/config.yaml
//
//	# Configure via environment
//	CURRICULUMD_SERVER_PORT=9090 curriculumd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/app"
	"github.com/veldtlabs/curriculumd/internal/chunk"
	"github.com/veldtlabs/curriculumd/internal/config"
	"github.com/veldtlabs/curriculumd/internal/logging"
	"github.com/veldtlabs/curriculumd/internal/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
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
			fmt.Fprintf(os.Stderr, "  curriculumd           Start the curriculumd daemon\n")
			fmt.Fprintf(os.Stderr, "  curriculumd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("curriculumd by Veldt Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("Starting curriculumd",
		zap.Int("port", cfg.Server.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	logger.Info("Application initialized",
		zap.Int("indexed_chunks", application.Store.Len()),
		zap.Int("embedding_dimension", application.Embedder.Dimension()))

	srv, err := server.NewServer(
		application.Orchestrator,
		application.Store,
		application.Metrics,
		logger,
		&server.Config{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
			Chunking: chunk.Config{
				ChunkSize: cfg.RAG.ChunkSize,
				Overlap:   cfg.RAG.ChunkOverlap,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/healthz", cfg.Server.Host, cfg.Server.Port)),
		zap.String("workflow_endpoint", "/v1/workflows"),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
