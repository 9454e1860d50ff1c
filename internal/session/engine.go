// Package session drives one synchronization session from the initiating
// replica: negotiation, batched exchange, resolution and atomic commit.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/pkg/api"
)

// Config таймауты и размеры пакетов сессии
type Config struct {
	NegotiateTimeout time.Duration // NegotiateTimeout предел фазы согласования
	BatchTimeout     time.Duration // BatchTimeout предел одного пакета обмена
	CommitTimeout    time.Duration // CommitTimeout предел фиксации у пира
	AbortTimeout     time.Duration // AbortTimeout предел уведомления пира об отмене
	LeaseTTL         time.Duration // LeaseTTL срок аренды строгих категорий
	DefaultBatchSize int           // DefaultBatchSize операций в пакете, если бюджет не задан
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		NegotiateTimeout: 10 * time.Second,
		BatchTimeout:     15 * time.Second,
		CommitTimeout:    30 * time.Second,
		AbortTimeout:     5 * time.Second,
		LeaseTTL:         time.Minute,
		DefaultBatchSize: 500,
	}
}

// Budget ограничения обмена, выданные планировщиком.
type Budget struct {
	MaxBytes  int64 // MaxBytes объем одного пакета в байтах, 0 без ограничения
	BatchSize int   // BatchSize операций в пакете
}

// Request запрос на сессию.
type Request struct {
	Reason string
	Budget Budget
}

// Outcome итог сессии.
type Outcome struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
	SessionID  string
	PeerID     string
	Reason     string
	Path       []State // Path пройденные состояния
	FinalState State   // FinalState последнее состояние перед возвратом в IDLE
	Pushed     int
	Pulled     int
	Applied    int
	Deferred   int
	Conflicts  int
	Manual     int
	Compacted  int
	BytesOut   int64
	BytesIn    int64
	Committed  bool // Committed локальная фиксация выполнена
	PeerAcked  bool // PeerAcked пир подтвердил фиксацию
}

// Duration длительность сессии.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Option настраивает Engine.
type Option func(*Engine)

// WithOutcomes задает канал итогов сессий. Получатель обязан читать канал:
// отправка блокирующая.
func WithOutcomes(ch chan<- Outcome) Option {
	return func(e *Engine) {
		e.outcomes = ch
	}
}

// WithLeases подменяет координатор аренды (по умолчанию аренду выдает пир).
func WithLeases(c lease.Coordinator) Option {
	return func(e *Engine) {
		e.leases = c
	}
}

// WithNow подменяет источник времени.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine выполняет сессии синхронизации с одним пиром.
// Одновременно активна не более одной сессии.
type Engine struct {
	replica  *replica.Replica
	peer     transport.Peer
	leases   lease.Coordinator
	logger   *slog.Logger
	outcomes chan<- Outcome
	now      func() time.Time
	cancel   context.CancelFunc
	resolved func() // resolved вызывается после разрешения, до проверки отмены
	machine  machine
	cfg      Config
	lock     sync.Mutex // lock блокировка сессии для пира
	cancelMu sync.Mutex
}

// New создает Engine.
func New(r *replica.Replica, peer transport.Peer, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = DefaultConfig().DefaultBatchSize
	}
	e := &Engine{
		replica: r,
		peer:    peer,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.leases == nil {
		e.leases = transport.NewLeases(peer)
	}
	return e
}

// State возвращает состояние текущей сессии.
func (e *Engine) State() State {
	return e.machine.current()
}

// Cancel прерывает активную сессию. Фаза фиксации не прерывается.
func (e *Engine) Cancel() bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()

	if e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

func (e *Engine) setCancel(cancel context.CancelFunc) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()

	e.cancel = cancel
}

// Sync выполняет одну сессию. Если сессия уже идет, возвращает
// syncerr.ErrSessionBusy без итога. Иначе итог возвращается всегда,
// в том числе вместе с ошибкой, и публикуется в канал итогов.
func (e *Engine) Sync(ctx context.Context, req Request) (*Outcome, error) {
	if !e.lock.TryLock() {
		return nil, syncerr.ErrSessionBusy
	}
	defer e.lock.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	e.setCancel(cancel)
	defer func() {
		e.setCancel(nil)
		cancel()
	}()

	e.machine.reset()
	r := &run{
		e:      e,
		budget: e.budget(req.Budget),
		out: &Outcome{
			SessionID: uuid.NewString(),
			Reason:    req.Reason,
			StartedAt: e.now(),
		},
	}

	e.logger.Debug("Sync session started",
		"session_id", r.out.SessionID,
		"reason", req.Reason)

	err := r.execute(ctx)

	out := r.out
	out.Err = err
	out.FinishedAt = e.now()
	out.Path = e.machine.path()

	if err != nil {
		e.logger.Warn("Sync session failed",
			"session_id", out.SessionID,
			"peer_id", out.PeerID,
			"state", out.FinalState,
			"error", err)
	} else {
		e.logger.Info("Sync session committed",
			"session_id", out.SessionID,
			"peer_id", out.PeerID,
			"pushed", out.Pushed,
			"pulled", out.Pulled,
			"applied", out.Applied,
			"conflicts", out.Conflicts,
			"compacted", out.Compacted,
			"duration", out.Duration())
	}

	if e.outcomes != nil {
		e.outcomes <- *out
	}
	return out, err
}

func (e *Engine) budget(b Budget) Budget {
	if b.BatchSize <= 0 {
		b.BatchSize = e.cfg.DefaultBatchSize
	}
	if b.MaxBytes < 0 {
		b.MaxBytes = 0
	}
	return b
}

// run состояние одной сессии.
type run struct {
	e          *Engine
	out        *Outcome
	snap       *storage.Snapshot
	peerVV     models.VersionVector
	tokens     map[string]string
	held       []*lease.Lease
	inbound    []*models.Operation
	budget     Budget
	negotiated bool // negotiated пир мог открыть сессию
}

func (r *run) execute(ctx context.Context) error {
	if err := r.e.machine.to(StateNegotiating); err != nil {
		return err
	}
	if err := r.negotiate(ctx); err != nil {
		return r.abort(ctx, err)
	}

	if err := r.e.machine.to(StateExchanging); err != nil {
		return err
	}
	if err := r.push(ctx); err != nil {
		return r.abort(ctx, err)
	}
	if err := r.pull(ctx); err != nil {
		return r.abort(ctx, err)
	}

	if err := r.e.machine.to(StateResolving); err != nil {
		return err
	}
	changes, err := r.e.replica.Prepare(ctx, r.snap.Unapplied(), r.inbound)
	if err != nil {
		return r.abort(ctx, err)
	}
	if r.e.resolved != nil {
		r.e.resolved()
	}
	// последняя точка, где отмена еще возможна
	if err := ctx.Err(); err != nil {
		return r.abort(ctx, syncerr.FromContext("resolve", err))
	}

	if err := r.e.machine.to(StateCommitting); err != nil {
		return err
	}
	r.out.FinalState = StateCommitting
	err = r.commit(ctx, changes)
	if terr := r.e.machine.to(StateIdle); terr != nil {
		return terr
	}
	return err
}

func (r *run) negotiate(ctx context.Context) error {
	nctx, cancel := context.WithTimeout(ctx, r.e.cfg.NegotiateTimeout)
	defer cancel()

	self := r.e.replica.ID()
	snap, err := r.e.replica.Store().Snapshot(nctx)
	if err != nil {
		return syncerr.Storage("snapshot", err)
	}
	r.snap = snap

	// аренда строгих категорий держится всю сессию
	if strong := r.e.replica.Registry().StrongCategories(); len(strong) > 0 {
		held, err := lease.AcquireAll(nctx, r.e.leases, strong, self, r.e.cfg.LeaseTTL)
		if err != nil {
			return classify(nctx, "acquire lease", err)
		}
		r.held = held
		r.tokens = make(map[string]string, len(held))
		for _, l := range held {
			r.tokens[l.Key] = l.Token
		}
	}

	r.negotiated = true
	resp, err := r.e.peer.Negotiate(nctx, &api.NegotiateRequest{
		SessionID: r.out.SessionID,
		ReplicaID: self,
		Vector:    transport.FromVector(snap.Vector),
	})
	if err != nil {
		return classify(nctx, "negotiate", err)
	}

	switch {
	case resp.SessionID != r.out.SessionID:
		return syncerr.Protocol("negotiate", fmt.Errorf("peer answered for session %q", resp.SessionID))
	case resp.ReplicaID == "" || resp.ReplicaID == self:
		return syncerr.Protocol("negotiate", fmt.Errorf("invalid peer replica id %q", resp.ReplicaID))
	}

	peerVV := transport.ToVector(resp.Vector)
	if peerVV.Get(self) > snap.LastSeq {
		return syncerr.Protocol("negotiate",
			fmt.Errorf("peer claims %s:%d, journal ends at %d", self, peerVV.Get(self), snap.LastSeq))
	}

	r.peerVV = peerVV
	r.out.PeerID = resp.ReplicaID
	return nil
}

// push отправляет пиру операции журнала, которых у него нет.
func (r *run) push(ctx context.Context) error {
	outbound := r.snap.Outbound(r.peerVV.Get(r.e.replica.ID()))

	for i, batch := range split(outbound, r.budget) {
		if err := ctx.Err(); err != nil {
			return syncerr.FromContext("push", err)
		}

		bctx, cancel := context.WithTimeout(ctx, r.e.cfg.BatchTimeout)
		_, err := r.e.peer.Push(bctx, &api.PushRequest{
			SessionID:  r.out.SessionID,
			Operations: transport.ToWireOps(batch),
			Batch:      i,
		})
		if err != nil {
			err = classify(bctx, "push", err)
			cancel()
			return err
		}
		cancel()

		r.out.Pushed += len(batch)
		r.out.BytesOut += opsSize(batch)
	}
	return nil
}

// pull получает операции пира пакетами до признака Done.
// Полученное хранится только в памяти до фиксации.
func (r *run) pull(ctx context.Context) error {
	cursor := 0
	for {
		if err := ctx.Err(); err != nil {
			return syncerr.FromContext("pull", err)
		}

		bctx, cancel := context.WithTimeout(ctx, r.e.cfg.BatchTimeout)
		resp, err := r.e.peer.Pull(bctx, &api.PullRequest{
			SessionID: r.out.SessionID,
			After:     cursor,
			Limit:     r.budget.BatchSize,
			MaxBytes:  r.budget.MaxBytes,
		})
		if err != nil {
			err = classify(bctx, "pull", err)
			cancel()
			return err
		}
		cancel()

		ops, err := transport.FromWireOps(resp.Operations, r.out.PeerID)
		if err != nil {
			return err
		}
		if resp.Next != cursor+len(ops) || (len(ops) == 0 && !resp.Done) {
			return syncerr.Protocol("pull", fmt.Errorf("cursor moved from %d to %d with %d operations", cursor, resp.Next, len(ops)))
		}

		r.inbound = append(r.inbound, ops...)
		r.out.Pulled += len(ops)
		r.out.BytesIn += opsSize(ops)
		cursor = resp.Next

		if resp.Done {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return syncerr.FromContext("pull", err)
	}
	return nil
}

// commit фиксирует локально, затем у пира. Отмена ctx фазу не прерывает.
// Если пир не подтвердил фиксацию, журнал не сжимается и операции
// будут отправлены повторно; повтор идемпотентен.
func (r *run) commit(ctx context.Context, changes *replica.Changes) error {
	cctx := context.WithoutCancel(ctx)
	defer r.releaseLeases(cctx)

	if err := r.e.replica.Commit(cctx, changes); err != nil {
		r.abortPeer(cctx, err)
		return err
	}
	r.out.Committed = true
	r.out.Applied = changes.Applied
	r.out.Deferred = len(changes.Deferred)
	r.out.Conflicts = changes.Conflicts
	r.out.Manual = changes.Manual

	vv, err := r.e.replica.Store().VersionVector(cctx)
	if err != nil {
		r.abortPeer(cctx, err)
		return syncerr.Storage("commit", err)
	}

	pctx, cancel := context.WithTimeout(cctx, r.e.cfg.CommitTimeout)
	defer cancel()

	resp, err := r.e.peer.Commit(pctx, &api.CommitRequest{
		SessionID:   r.out.SessionID,
		Vector:      transport.FromVector(vv),
		LeaseTokens: r.tokens,
		Received:    len(r.inbound),
	})
	if err != nil {
		r.abortPeer(cctx, err)
		return classify(pctx, "peer commit", err)
	}
	r.out.PeerAcked = true

	peerVV := transport.ToVector(resp.Vector)
	compacted, err := r.e.replica.Compact(cctx, peerVV)
	if err != nil {
		return err
	}
	r.out.Compacted = compacted

	if err := r.e.replica.Store().RecordPeer(cctx, r.out.PeerID, peerVV); err != nil {
		r.e.logger.Warn("Failed to record peer vector",
			"peer_id", r.out.PeerID,
			"error", err)
	}
	return nil
}

// abort переводит сессию в ABORTED. Локальное состояние не менялось.
func (r *run) abort(ctx context.Context, cause error) error {
	if err := r.e.machine.to(StateAborted); err != nil {
		return err
	}
	r.out.FinalState = StateAborted

	actx := context.WithoutCancel(ctx)
	r.abortPeer(actx, cause)
	r.releaseLeases(actx)

	if err := r.e.machine.to(StateIdle); err != nil {
		return err
	}
	return cause
}

// abortPeer уведомляет пира; ошибка только логируется.
func (r *run) abortPeer(ctx context.Context, cause error) {
	if !r.negotiated {
		return
	}
	actx, cancel := context.WithTimeout(ctx, r.e.cfg.AbortTimeout)
	defer cancel()

	err := r.e.peer.Abort(actx, &api.AbortRequest{
		SessionID: r.out.SessionID,
		Reason:    cause.Error(),
	})
	if err != nil {
		r.e.logger.Debug("Failed to notify peer about abort",
			"session_id", r.out.SessionID,
			"error", err)
	}
}

func (r *run) releaseLeases(ctx context.Context) {
	if len(r.held) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, r.e.cfg.AbortTimeout)
	defer cancel()

	lease.ReleaseAll(rctx, r.e.leases, r.held)
	r.held = nil
}

// classify приводит ошибку фазы к таксономии: истекший или отмененный
// контекст фазы важнее ответа транспорта.
func classify(ctx context.Context, op string, err error) error {
	if syncerr.KindOf(err) == syncerr.KindStorage {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return syncerr.FromContext(op, cerr)
	}
	if syncerr.KindOf(err) == syncerr.KindUnknown {
		return syncerr.Network(op, err)
	}
	return err
}

// split делит операции на пакеты по числу и объему; в пакете
// всегда есть хотя бы одна операция.
func split(ops []*models.Operation, b Budget) [][]*models.Operation {
	var (
		batches [][]*models.Operation
		cur     []*models.Operation
		size    int64
	)
	for _, op := range ops {
		n := int64(op.Size())
		full := len(cur) >= b.BatchSize || (b.MaxBytes > 0 && size+n > b.MaxBytes)
		if len(cur) > 0 && full {
			batches = append(batches, cur)
			cur, size = nil, 0
		}
		cur = append(cur, op)
		size += n
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func opsSize(ops []*models.Operation) int64 {
	var n int64
	for _, op := range ops {
		n += int64(op.Size())
	}
	return n
}
