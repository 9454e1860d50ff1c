package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/edgesync/internal/config"
	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/server"
	"github.com/iudanet/edgesync/internal/server/responder"
	"github.com/iudanet/edgesync/internal/storage"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to config file")
	address := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to database (overrides config)")
	flag.Parse()

	if *showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := cfg.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry, err := cfg.RelayRegistry()
	if err != nil {
		return err
	}

	db, err := storage.OpenBackend(ctx, cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	store, err := storage.New(ctx, db, cfg.Replica.ID, logger)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	r := replica.New(store, registry, logger)
	resp := responder.New(r, lease.NewLocal(), cfg.ResponderConfig(), logger)

	logger.Info("EdgeSync Server starting",
		"version", Version,
		"replica_id", r.ID(),
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path)

	srv := server.New(server.Config{
		Address:         cfg.Server.Address,
		Version:         Version,
		Auth:            cfg.AuthConfig(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       cfg.Server.RateLimit,
	}, r.ID(), resp, logger)
	return srv.Run(ctx)
}

func printVersion() {
	fmt.Printf("EdgeSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
