package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/edgesync/internal/client/agent"
	"github.com/iudanet/edgesync/internal/client/cli"
	"github.com/iudanet/edgesync/internal/client/iocli"
	"github.com/iudanet/edgesync/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// defaultConfigPath используется, если --config не задан и файл существует
const defaultConfigPath = "edgesync.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to config file")
	peerURL := flag.String("peer", "", "Cloud replica URL (overrides config)")
	dbPath := flag.String("db", "", "Path to local database (overrides config)")
	transport := flag.String("transport", "", "Transport to the cloud replica: http or ws (overrides config)")
	passphrase := flag.String("passphrase", "", "Passphrase for sealed categories (not recommended, use env var or file)")
	passphraseFile := flag.String("passphrase-file", "", "Path to file containing the passphrase")

	flag.Usage = func() { cli.PrintUsage(os.Stderr) }
	flag.Parse()

	if *showVersion {
		printVersion()
		return 0
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(os.Stderr)
		return 1
	}
	command := args[0]

	stdio := iocli.NewStdio()
	phrases := cli.Passphrases{FromFile: *passphraseFile, FromArgs: *passphrase}

	if command == "keygen" {
		if err := cli.Keygen(stdio, phrases); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *peerURL != "" {
		cfg.Replica.PeerURL = *peerURL
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *transport != "" {
		cfg.Replica.Transport = *transport
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := cli.LoadKey(cfg, stdio, phrases)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	a, err := agent.Open(ctx, cfg, key, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open replica: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close replica", slog.Any("error", err))
		}
	}()

	if command == "run" {
		if err := a.Run(ctx, true); err != nil {
			logger.Error("agent failed", slog.Any("error", err))
			return 1
		}
		return 0
	}

	c := cli.New(stdio, a.Replica, a.Engine, a.Cloud)
	if err := c.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUnknownCommand) {
			cli.PrintUsage(os.Stderr)
		}
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("EdgeSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
