// Package responder serves the peer side of the sync protocol: it answers
// negotiation, stages pushed operations, streams its own journal and
// commits the staged operations through the same resolve path as the
// initiator.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/pkg/api"
)

// Config настройки обслуживания сессий
type Config struct {
	SessionTTL      time.Duration // SessionTTL простой, после которого сессия удаляется
	DefaultLeaseTTL time.Duration // DefaultLeaseTTL срок аренды, если клиент не указал
	MaxLeaseTTL     time.Duration // MaxLeaseTTL верхняя граница срока аренды
	MaxBatch        int           // MaxBatch максимум операций в ответе Pull
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		SessionTTL:      2 * time.Minute,
		DefaultLeaseTTL: 30 * time.Second,
		MaxLeaseTTL:     5 * time.Minute,
		MaxBatch:        1000,
	}
}

// peerSession состояние сессии одного пира
type peerSession struct {
	lastSeen time.Time
	staged   map[string]*models.Operation
	id       string
	outbound []*models.Operation
	local    []*models.Operation // local собственные непримененные на момент Negotiate
	order    []string            // порядок поступления staged
}

// Responder обслуживает сессии синхронизации от пиров.
type Responder struct {
	replica  *replica.Replica
	leases   *lease.Local
	logger   *slog.Logger
	now      func() time.Time
	sessions map[string]*peerSession // peerID -> сессия
	cfg      Config
	mu       sync.Mutex // одна активная сессия на пира
}

var _ transport.Handler = (*Responder)(nil)

// New создает Responder для реплики r.
func New(r *replica.Replica, leases *lease.Local, cfg Config, logger *slog.Logger) *Responder {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultConfig().MaxBatch
	}
	return &Responder{
		replica:  r,
		leases:   leases,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*peerSession),
		cfg:      cfg,
	}
}

// Negotiate открывает сессию пира. Повтор с тем же SessionID начинает
// сессию заново; другая активная сессия пира дает ErrSessionBusy.
func (s *Responder) Negotiate(ctx context.Context, req *api.NegotiateRequest) (*api.NegotiateResponse, error) {
	peerID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ReplicaID != peerID {
		return nil, syncerr.Protocol("negotiate", fmt.Errorf("replica %s negotiates as %s", peerID, req.ReplicaID))
	}
	if req.SessionID == "" {
		return nil, syncerr.Protocol("negotiate", fmt.Errorf("empty session id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if cur, ok := s.sessions[peerID]; ok {
		switch {
		case now.Sub(cur.lastSeen) > s.cfg.SessionTTL:
			s.logger.Info("Stale session dropped", "peer_id", peerID, "session_id", cur.id)
			delete(s.sessions, peerID)
		case cur.id != req.SessionID:
			return nil, syncerr.ErrSessionBusy
		}
	}

	snap, err := s.replica.Store().Snapshot(ctx)
	if err != nil {
		return nil, syncerr.Storage("negotiate", err)
	}

	peerVV := transport.ToVector(req.Vector)
	self := s.replica.ID()
	if peerVV.Get(self) > snap.LastSeq {
		return nil, syncerr.Protocol("negotiate",
			fmt.Errorf("peer claims %s:%d, journal ends at %d", self, peerVV.Get(self), snap.LastSeq))
	}

	sess := &peerSession{
		id:       req.SessionID,
		lastSeen: now,
		staged:   make(map[string]*models.Operation),
		outbound: snap.Outbound(peerVV.Get(self)),
		local:    snap.Unapplied(),
	}
	s.sessions[peerID] = sess

	s.logger.Debug("Session negotiated",
		"peer_id", peerID,
		"session_id", sess.id,
		"outbound", len(sess.outbound))

	return &api.NegotiateResponse{
		SessionID: sess.id,
		ReplicaID: self,
		Vector:    transport.FromVector(snap.Vector),
		Pending:   len(sess.outbound),
	}, nil
}

// Push принимает пакет операций пира в staging.
func (s *Responder) Push(ctx context.Context, req *api.PushRequest) (*api.PushResponse, error) {
	peerID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := transport.FromWireOps(req.Operations, peerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(peerID, req.SessionID)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if _, ok := sess.staged[op.ID]; ok {
			continue
		}
		sess.staged[op.ID] = op
		sess.order = append(sess.order, op.ID)
	}
	return &api.PushResponse{Accepted: len(ops)}, nil
}

// Pull возвращает следующий пакет собственных операций после курсора After.
func (s *Responder) Pull(ctx context.Context, req *api.PullRequest) (*api.PullResponse, error) {
	peerID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(peerID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.After < 0 || req.After > len(sess.outbound) {
		return nil, syncerr.Protocol("pull", fmt.Errorf("cursor %d out of range", req.After))
	}

	limit := req.Limit
	if limit <= 0 || limit > s.cfg.MaxBatch {
		limit = s.cfg.MaxBatch
	}

	var (
		batch []*models.Operation
		size  int64
	)
	for _, op := range sess.outbound[req.After:] {
		if len(batch) >= limit {
			break
		}
		// хотя бы одна операция, иначе обмен не продвинется
		if req.MaxBytes > 0 && len(batch) > 0 && size+int64(op.Size()) > req.MaxBytes {
			break
		}
		batch = append(batch, op)
		size += int64(op.Size())
	}

	next := req.After + len(batch)
	return &api.PullResponse{
		Operations: transport.ToWireOps(batch),
		Next:       next,
		Done:       next >= len(sess.outbound),
	}, nil
}

// Commit применяет staged операции вместе с собственными, непримененными
// на момент Negotiate, затем сжимает журнал по вектору инициатора.
// Записи, сделанные после Negotiate, инициатор не получал: они остаются
// в журнале до следующей сессии. Категории со строгой согласованностью
// требуют действующей аренды.
func (s *Responder) Commit(ctx context.Context, req *api.CommitRequest) (*api.CommitResponse, error) {
	peerID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(peerID, req.SessionID)
	if err != nil {
		return nil, err
	}

	staged := make([]*models.Operation, 0, len(sess.order))
	for _, id := range sess.order {
		staged = append(staged, sess.staged[id])
	}
	if err := s.checkLeases(req.LeaseTokens, staged, sess.local, sess.outbound); err != nil {
		return nil, err
	}

	// фиксация не прерывается отменой запроса
	ctx = context.WithoutCancel(ctx)

	changes, err := s.replica.Apply(ctx, sess.local, staged)
	if err != nil {
		delete(s.sessions, peerID)
		return nil, err
	}

	initiatorVV := transport.ToVector(req.Vector)
	compacted, err := s.replica.Compact(ctx, initiatorVV)
	if err != nil {
		delete(s.sessions, peerID)
		return nil, err
	}
	if err := s.replica.Store().RecordPeer(ctx, peerID, initiatorVV); err != nil {
		s.logger.Warn("Failed to record peer vector", "peer_id", peerID, "error", err)
	}

	vv, err := s.replica.Store().VersionVector(ctx)
	if err != nil {
		delete(s.sessions, peerID)
		return nil, syncerr.Storage("commit", err)
	}
	delete(s.sessions, peerID)

	s.logger.Info("Session committed",
		"peer_id", peerID,
		"session_id", req.SessionID,
		"applied", changes.Applied,
		"deferred", len(changes.Deferred),
		"conflicts", changes.Conflicts,
		"compacted", compacted)

	return &api.CommitResponse{
		Vector:    transport.FromVector(vv),
		Applied:   changes.Applied,
		Deferred:  len(changes.Deferred),
		Conflicts: changes.Conflicts,
		Compacted: compacted,
	}, nil
}

// Abort отбрасывает staging. Отсутствующая сессия не является ошибкой.
func (s *Responder) Abort(ctx context.Context, req *api.AbortRequest) error {
	peerID, err := s.caller(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.sessions[peerID]; ok && cur.id == req.SessionID {
		delete(s.sessions, peerID)
		s.logger.Info("Session aborted by peer",
			"peer_id", peerID,
			"session_id", req.SessionID,
			"reason", req.Reason)
	}
	return nil
}

// AcquireLease выдает аренду категории вызывающей реплике.
func (s *Responder) AcquireLease(ctx context.Context, req *api.LeaseRequest) (*api.LeaseResponse, error) {
	peerID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Holder != peerID {
		return nil, syncerr.Protocol("lease", fmt.Errorf("replica %s requests lease for %s", peerID, req.Holder))
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = s.cfg.DefaultLeaseTTL
	}
	if s.cfg.MaxLeaseTTL > 0 && ttl > s.cfg.MaxLeaseTTL {
		ttl = s.cfg.MaxLeaseTTL
	}

	l, err := s.leases.Acquire(ctx, req.Key, peerID, ttl)
	if err != nil {
		return nil, err
	}
	return &api.LeaseResponse{
		ExpiresAt: l.Expires,
		Key:       l.Key,
		Holder:    l.Holder,
		Token:     l.Token,
	}, nil
}

// ReleaseLease освобождает аренду.
func (s *Responder) ReleaseLease(ctx context.Context, req *api.LeaseRequest) error {
	peerID, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.leases.Release(ctx, &lease.Lease{Key: req.Key, Holder: peerID, Token: req.Token})
}

// Sweep удаляет сессии, простаивающие дольше SessionTTL.
func (s *Responder) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for peerID, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.cfg.SessionTTL {
			delete(s.sessions, peerID)
			removed++
		}
	}
	return removed
}

// Active возвращает число открытых сессий.
func (s *Responder) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *Responder) caller(ctx context.Context) (string, error) {
	peerID, ok := auth.PeerFromContext(ctx)
	if !ok {
		return "", transport.ErrUnauthorized
	}
	return peerID, nil
}

// session возвращает активную сессию; вызывается под s.mu.
func (s *Responder) session(peerID, sessionID string) (*peerSession, error) {
	sess, ok := s.sessions[peerID]
	if !ok || sess.id != sessionID {
		return nil, fmt.Errorf("%w: %s", transport.ErrNoSession, sessionID)
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.cfg.SessionTTL {
		delete(s.sessions, peerID)
		return nil, fmt.Errorf("%w: %s expired", transport.ErrNoSession, sessionID)
	}
	sess.lastSeen = now
	return sess, nil
}

// checkLeases проверяет аренду каждой строгой категории, затронутой сессией.
func (s *Responder) checkLeases(tokens map[string]string, sets ...[]*models.Operation) error {
	checked := make(map[string]struct{})
	for _, ops := range sets {
		for _, op := range ops {
			if _, ok := checked[op.Category]; ok {
				continue
			}
			checked[op.Category] = struct{}{}

			cat, err := s.replica.Registry().Lookup(op.Category)
			if err != nil {
				return syncerr.Protocol("commit", err)
			}
			if !cat.Strong() {
				continue
			}
			if err := s.leases.Check(op.Category, tokens[op.Category]); err != nil {
				return fmt.Errorf("commit of strong category: %w", err)
			}
		}
	}
	return nil
}
