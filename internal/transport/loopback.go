package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/pkg/api"
)

// ErrClosed транспорт закрыт
var ErrClosed = errors.New("transport closed")

// Loopback соединяет инициатора с обработчиком пира в том же процессе.
// Запросы и ответы проходят через JSON, поэтому стороны не делят память.
type Loopback struct {
	handler Handler
	fault   func(method string) error
	caller  string
	mu      sync.RWMutex
	closed  bool
}

var _ Peer = (*Loopback)(nil)

// NewLoopback создает транспорт от реплики caller к handler.
func NewLoopback(caller string, handler Handler) *Loopback {
	return &Loopback{
		handler: handler,
		caller:  caller,
	}
}

// SetFault задает функцию, вызываемую перед каждым запросом; ненулевая
// ошибка возвращается вместо обращения к пиру как сетевой сбой.
func (l *Loopback) SetFault(fn func(method string) error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fault = fn
}

func (l *Loopback) Negotiate(ctx context.Context, req *api.NegotiateRequest) (*api.NegotiateResponse, error) {
	return call(ctx, l, MethodNegotiate, req, l.handler.Negotiate)
}

func (l *Loopback) Push(ctx context.Context, req *api.PushRequest) (*api.PushResponse, error) {
	return call(ctx, l, MethodPush, req, l.handler.Push)
}

func (l *Loopback) Pull(ctx context.Context, req *api.PullRequest) (*api.PullResponse, error) {
	return call(ctx, l, MethodPull, req, l.handler.Pull)
}

func (l *Loopback) Commit(ctx context.Context, req *api.CommitRequest) (*api.CommitResponse, error) {
	return call(ctx, l, MethodCommit, req, l.handler.Commit)
}

func (l *Loopback) Abort(ctx context.Context, req *api.AbortRequest) error {
	_, err := call(ctx, l, MethodAbort, req, func(ctx context.Context, r *api.AbortRequest) (*struct{}, error) {
		return &struct{}{}, l.handler.Abort(ctx, r)
	})
	return err
}

func (l *Loopback) AcquireLease(ctx context.Context, req *api.LeaseRequest) (*api.LeaseResponse, error) {
	return call(ctx, l, MethodAcquireLease, req, l.handler.AcquireLease)
}

func (l *Loopback) ReleaseLease(ctx context.Context, req *api.LeaseRequest) error {
	_, err := call(ctx, l, MethodReleaseLease, req, func(ctx context.Context, r *api.LeaseRequest) (*struct{}, error) {
		return &struct{}{}, l.handler.ReleaseLease(ctx, r)
	})
	return err
}

// Close закрывает транспорт; последующие вызовы возвращают сетевую ошибку.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	return nil
}

func call[Req, Resp any](ctx context.Context, l *Loopback, method string, req *Req, fn func(context.Context, *Req) (*Resp, error)) (*Resp, error) {
	l.mu.RLock()
	closed, fault := l.closed, l.fault
	l.mu.RUnlock()

	if closed {
		return nil, syncerr.Network(method, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, syncerr.FromContext(method, err)
	}
	if fault != nil {
		if err := fault(method); err != nil {
			return nil, syncerr.Network(method, err)
		}
	}

	in, err := roundTrip(req)
	if err != nil {
		return nil, syncerr.Protocol(method, err)
	}

	resp, err := fn(auth.WithPeer(ctx, l.caller), in)
	if err != nil {
		// ошибки пира приходят к инициатору так же, как через сеть
		status, body := ErrorResponse(err)
		return nil, ErrorFrom(method, status, body)
	}

	out, err := roundTrip(resp)
	if err != nil {
		return nil, syncerr.Protocol(method, err)
	}
	return out, nil
}

func roundTrip[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	return &out, nil
}
