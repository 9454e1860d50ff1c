// Package cli implements the one-shot commands of the edge replica client:
// local reads and writes, manual conflict resolution and explicit sync.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/iudanet/edgesync/internal/client/iocli"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/session"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/pkg/api"
)

//go:generate moq -out store_mock.go . Store
//go:generate moq -out syncer_mock.go . Syncer
//go:generate moq -out health_mock.go . HealthChecker

// ErrUnknownCommand возвращается Run для неизвестной команды.
var ErrUnknownCommand = errors.New("unknown command")

// Store локальная реплика, с которой работают команды.
type Store interface {
	Put(ctx context.Context, category, itemID string, value []byte) (*models.Operation, error)
	Get(ctx context.Context, itemID string) ([]byte, *models.DataItem, error)
	Delete(ctx context.Context, itemID string) (*models.Operation, error)
	List(ctx context.Context) ([]*models.DataItem, error)
	ManualConflicts(ctx context.Context) ([]*models.ManualConflict, error)
	ResolveManual(ctx context.Context, itemID string, value []byte) error
	PendingStats(ctx context.Context) (*storage.PendingStats, error)
}

// Syncer выполняет одну сессию синхронизации.
type Syncer interface {
	Sync(ctx context.Context, req session.Request) (*session.Outcome, error)
}

// HealthChecker проверяет доступность облачной реплики.
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// Cli команды клиента поверх одной реплики.
type Cli struct {
	io     iocli.IO
	store  Store
	syncer Syncer
	health HealthChecker
}

// New создает набор команд. health может быть nil: тогда status не
// проверяет облако.
func New(io iocli.IO, store Store, syncer Syncer, health HealthChecker) *Cli {
	return &Cli{
		io:     io,
		store:  store,
		syncer: syncer,
		health: health,
	}
}

// Run выполняет команду. args передаются без имени команды.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "put":
		return c.runPut(ctx, args)
	case "get":
		return c.runGet(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "list":
		return c.runList(ctx, args)
	case "sync":
		return c.runSync(ctx)
	case "status":
		return c.runStatus(ctx)
	case "conflicts":
		return c.runConflicts(ctx)
	case "resolve":
		return c.runResolve(ctx, args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// PrintUsage печатает справку клиента.
func PrintUsage(w io.Writer) {
	lines := []string{
		"EdgeSync Client",
		"",
		"Usage:",
		"  edgesync [OPTIONS] COMMAND [ARGS]",
		"",
		"Options:",
		"  --config PATH              Path to config file (default: edgesync.yaml)",
		"  --version                  Show version information",
		"  --peer URL                 Cloud replica URL (overrides config)",
		"  --db PATH                  Path to local database (overrides config)",
		"  --transport NAME           Transport to the cloud replica: http or ws",
		"  --passphrase PHRASE        Passphrase for sealed categories (not recommended)",
		"  --passphrase-file PATH     Path to file containing the passphrase",
		"",
		"Passphrase Priority (highest to lowest):",
		"  1. " + EnvPassphrase + " environment variable",
		"  2. --passphrase-file (file path)",
		"  3. --passphrase (command line)",
		"  4. Interactive prompt (fallback)",
		"",
		"Commands:",
		"  put <category> <id> [value]   Write item value (prompts when value is omitted)",
		"  get <id>                      Show item value and metadata",
		"  delete <id> [-y]              Delete item",
		"  list [category]               List items",
		"  sync                          Run one sync session with the cloud replica",
		"  status                        Show pending journal and peer status",
		"  conflicts                     List items waiting for manual resolution",
		"  resolve <id> [value]          Resolve conflict, keeping the current or a new value",
		"  run                           Run adaptive sync until interrupted",
		"  keygen                        Generate crypto settings for sealed categories",
		"",
		"Examples:",
		"  edgesync put notes greeting 'hello'",
		"  edgesync list notes",
		"  edgesync --config /etc/edgesync.yaml run",
		"  EDGESYNC_ENV=local edgesync sync",
	}
	for _, l := range lines {
		_, _ = fmt.Fprintln(w, l)
	}
}
