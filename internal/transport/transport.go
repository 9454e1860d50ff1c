// Package transport defines the request/response contract between the
// initiator of a sync session and its peer, and an in-process loopback
// implementation of it.
package transport

import (
	"context"

	"github.com/iudanet/edgesync/pkg/api"
)

// Handler обслуживает протокол синхронизации на стороне пира.
// Идентификатор вызывающей реплики передается в ctx (auth.WithPeer).
type Handler interface {
	Negotiate(ctx context.Context, req *api.NegotiateRequest) (*api.NegotiateResponse, error)
	Push(ctx context.Context, req *api.PushRequest) (*api.PushResponse, error)
	Pull(ctx context.Context, req *api.PullRequest) (*api.PullResponse, error)
	Commit(ctx context.Context, req *api.CommitRequest) (*api.CommitResponse, error)
	Abort(ctx context.Context, req *api.AbortRequest) error
	AcquireLease(ctx context.Context, req *api.LeaseRequest) (*api.LeaseResponse, error)
	ReleaseLease(ctx context.Context, req *api.LeaseRequest) error
}

// Peer клиентская сторона протокола: удаленная реплика.
//
//go:generate moq -out peer_mock.go . Peer
type Peer interface {
	Handler
	Close() error
}

// Method names
const (
	MethodNegotiate    = "negotiate"
	MethodPush         = "push"
	MethodPull         = "pull"
	MethodCommit       = "commit"
	MethodAbort        = "abort"
	MethodAcquireLease = "lease.acquire"
	MethodReleaseLease = "lease.release"
)

// TokenSource выдает bearer токен для запросов к пиру (auth.TokenSource).
type TokenSource interface {
	Token() (string, error)
}
