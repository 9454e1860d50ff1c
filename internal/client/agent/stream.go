package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/transport/ws"
	"github.com/iudanet/edgesync/pkg/api"
)

// streamPeer держит websocket поток к пиру и открывает его заново после
// обрыва. Соединение устанавливается при первом вызове.
type streamPeer struct {
	tokens  transport.TokenSource
	logger  *slog.Logger
	cur     *ws.Client
	baseURL string
	mu      sync.Mutex
}

var _ transport.Peer = (*streamPeer)(nil)

func newStreamPeer(baseURL string, tokens transport.TokenSource, logger *slog.Logger) *streamPeer {
	return &streamPeer{
		baseURL: baseURL,
		tokens:  tokens,
		logger:  logger,
	}
}

func (p *streamPeer) client(ctx context.Context) (*ws.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur != nil {
		select {
		case <-p.cur.Done():
			p.logger.Info("Stream lost, reconnecting", "error", p.cur.Err())
			p.cur = nil
		default:
			return p.cur, nil
		}
	}

	c, err := ws.Dial(ctx, p.baseURL, p.tokens, p.logger)
	if err != nil {
		return nil, err
	}
	p.cur = c
	return c, nil
}

func (p *streamPeer) Negotiate(ctx context.Context, req *api.NegotiateRequest) (*api.NegotiateResponse, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Negotiate(ctx, req)
}

func (p *streamPeer) Push(ctx context.Context, req *api.PushRequest) (*api.PushResponse, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Push(ctx, req)
}

func (p *streamPeer) Pull(ctx context.Context, req *api.PullRequest) (*api.PullResponse, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Pull(ctx, req)
}

func (p *streamPeer) Commit(ctx context.Context, req *api.CommitRequest) (*api.CommitResponse, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Commit(ctx, req)
}

func (p *streamPeer) Abort(ctx context.Context, req *api.AbortRequest) error {
	c, err := p.client(ctx)
	if err != nil {
		return err
	}
	return c.Abort(ctx, req)
}

func (p *streamPeer) AcquireLease(ctx context.Context, req *api.LeaseRequest) (*api.LeaseResponse, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.AcquireLease(ctx, req)
}

func (p *streamPeer) ReleaseLease(ctx context.Context, req *api.LeaseRequest) error {
	c, err := p.client(ctx)
	if err != nil {
		return err
	}
	return c.ReleaseLease(ctx, req)
}

func (p *streamPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return nil
	}
	err := p.cur.Close()
	p.cur = nil
	return err
}
