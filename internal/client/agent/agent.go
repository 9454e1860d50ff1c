// Package agent assembles the edge replica from configuration: storage,
// category registry, transport to the cloud peer and the session engine,
// and runs the adaptive sync loop (network monitor plus scheduler).
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/config"
	"github.com/iudanet/edgesync/internal/kv"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/netmon"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/scheduler"
	"github.com/iudanet/edgesync/internal/session"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/transport/httpapi"
)

// reportInterval период записи статистики планировщика в лог
const reportInterval = time.Minute

// Agent edge-реплика, собранная из конфигурации.
type Agent struct {
	Replica *replica.Replica
	Engine  *session.Engine // Engine для разовых сессий (команда sync)
	Peer    transport.Peer  // Peer транспорт к облаку
	Cloud   *httpapi.Client // Cloud HTTP клиент облака: health и измерения сети
	db      kv.Store
	logger  *slog.Logger
	cfg     *config.Config
}

// Open открывает хранилище и собирает реплику. key нужен, только если
// есть sealed-категории. Сеть не используется до первой сессии.
func Open(ctx context.Context, cfg *config.Config, key []byte, logger *slog.Logger) (*Agent, error) {
	registry, err := cfg.Registry(key)
	if err != nil {
		return nil, err
	}

	db, err := storage.OpenBackend(ctx, cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	store, err := storage.New(ctx, db, cfg.Replica.ID, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	tokens := auth.NewTokenSource(cfg.AuthConfig(), cfg.Replica.ID)
	cloud := httpapi.NewClient(cfg.Replica.PeerURL, tokens, cfg.Network.RequestTimeout)

	var peer transport.Peer = cloud
	if cfg.Replica.Transport == config.TransportWS {
		peer = newStreamPeer(cfg.Replica.PeerURL, tokens, logger)
	}

	r := replica.New(store, registry, logger)
	return &Agent{
		Replica: r,
		Engine:  session.New(r, peer, cfg.SessionConfig(), logger),
		Peer:    peer,
		Cloud:   cloud,
		db:      db,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Close закрывает транспорт и хранилище.
func (a *Agent) Close() error {
	var errs []error
	if err := a.Peer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}
	_ = a.Cloud.Close()
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	return errors.Join(errs...)
}

// Daemon компоненты адаптивной синхронизации одного запуска Run.
type Daemon struct {
	Monitor   *netmon.Monitor
	Scheduler *scheduler.Scheduler
	Engine    *session.Engine
}

// NewDaemon собирает монитор сети и планировщик. Движок демона публикует
// итоги сессий в планировщик, поэтому он отделен от Agent.Engine.
func (a *Agent) NewDaemon() *Daemon {
	prober := netmon.NewHTTPProber(a.Cloud.HTTPClient(), netmon.TargetFor(a.Cloud.BaseURL()),
		a.cfg.Network.PingSamples, a.cfg.Network.ProbeBytes)
	monitor := netmon.NewMonitor(prober, a.cfg.MonitorConfig(), a.logger)

	runner := &engineRunner{}
	sched := scheduler.New(a.cfg.SchedulerConfig(), a.Replica, a.Replica.Registry(), runner,
		monitor, nil, a.logger)
	runner.engine = session.New(a.Replica, a.Peer, a.cfg.SessionConfig(), a.logger,
		session.WithOutcomes(sched.Outcomes()))

	// новое измерение или запись в журнал могут изменить решение
	monitor.OnSample(func(models.NetworkSample) { sched.Notify() })
	a.Replica.Store().OnAppend(func(*models.Operation) { sched.Notify() })

	return &Daemon{
		Monitor:   monitor,
		Scheduler: sched,
		Engine:    runner.engine,
	}
}

// Run выполняет адаптивную синхронизацию до отмены ctx. immediate
// запрашивает сессию сразу после старта.
func (a *Agent) Run(ctx context.Context, immediate bool) error {
	d := a.NewDaemon()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.Monitor.Run(gctx)
	})
	g.Go(func() error {
		return d.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		a.report(gctx, d)
		return nil
	})

	if immediate {
		d.Scheduler.Request()
	}

	a.logger.Info("Agent started",
		"replica_id", a.Replica.ID(),
		"peer", a.Cloud.BaseURL(),
		"transport", a.cfg.Replica.Transport)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("agent stopped: %w", err)
	}
	a.logger.Info("Agent stopped")
	return nil
}

func (a *Agent) report(ctx context.Context, d *Daemon) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := d.Scheduler.Stats()
			a.logger.Info("Sync stats",
				"sessions", st.Sessions,
				"success_rate", st.SuccessRate,
				"queue_depth", st.QueueDepth,
				"interval", st.Interval,
				"budget_used", st.BudgetUsed,
				"last_success", st.LastSuccess,
				"network_quality", d.Monitor.Quality())
		}
	}
}

// engineRunner передает сессии движку, созданному после планировщика.
type engineRunner struct {
	engine *session.Engine
}

func (r *engineRunner) Sync(ctx context.Context, req session.Request) (*session.Outcome, error) {
	return r.engine.Sync(ctx, req)
}
