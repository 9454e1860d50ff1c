package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/wire"
	"github.com/iudanet/edgesync/pkg/api"
)

// Client реплика-пир за websocket соединением.
type Client struct {
	conn    *conn
	logger  *slog.Logger
	pending map[uint64]chan *wire.Frame
	done    chan struct{}
	err     error
	nextID  atomic.Uint64
	mu      sync.Mutex
}

var _ transport.Peer = (*Client)(nil)

// StreamURL переводит базовый адрес пира в адрес websocket потока.
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid peer url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported peer url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + api.PathStream
	return u.String(), nil
}

// Dial открывает поток к пиру baseURL. tokens может быть nil.
func Dial(ctx context.Context, baseURL string, tokens transport.TokenSource, logger *slog.Logger) (*Client, error) {
	target, err := StreamURL(baseURL)
	if err != nil {
		return nil, syncerr.Protocol("dial", err)
	}

	header := http.Header{}
	if tokens != nil {
		token, err := tokens.Token()
		if err != nil {
			return nil, syncerr.Protocol("dial", fmt.Errorf("failed to get token: %w", err))
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, transport.ErrorFrom("dial", resp.StatusCode, nil)
		}
		if ctx.Err() != nil {
			return nil, syncerr.FromContext("dial", ctx.Err())
		}
		return nil, syncerr.Network("dial", err)
	}

	c := &Client{
		conn:    newConn(ws),
		logger:  logger,
		pending: make(map[uint64]chan *wire.Frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.conn.keepalive(c.done)

	logger.Debug("Stream connected", "url", target)
	return c, nil
}

func (c *Client) readLoop() {
	for {
		f, err := c.conn.read()
		if err != nil {
			c.shutdown(fmt.Errorf("stream closed: %w", err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		delete(c.pending, f.ID)
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("Dropping response for unknown request", "id", f.ID, "method", f.Method)
			continue
		}
		ch <- f
	}
}

// shutdown помечает клиент закрытым; ожидающие вызовы получают err.
func (c *Client) shutdown(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return false
	}
	c.err = err
	close(c.done)
	return true
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close закрывает поток. Повторный вызов ничего не делает.
func (c *Client) Close() error {
	if !c.shutdown(transport.ErrClosed) {
		return nil
	}
	return c.conn.close(websocket.CloseNormalClosure, "")
}

func call[Req, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	id := c.nextID.Add(1)
	f, err := wire.NewFrame(id, method, req)
	if err != nil {
		return nil, syncerr.Protocol(method, err)
	}

	ch := make(chan *wire.Frame, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, syncerr.Network(method, err)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.conn.write(f); err != nil {
		return nil, syncerr.Network(method, err)
	}

	select {
	case <-ctx.Done():
		return nil, syncerr.FromContext(method, ctx.Err())
	case <-c.done:
		return nil, syncerr.Network(method, c.closeErr())
	case reply := <-ch:
		if reply.Error != nil || reply.Status != 0 {
			return nil, transport.ErrorFrom(method, reply.Status, reply.Error)
		}
		var out Resp
		if err := reply.DecodeBody(&out); err != nil {
			return nil, syncerr.Protocol(method, err)
		}
		return &out, nil
	}
}

func (c *Client) Negotiate(ctx context.Context, req *api.NegotiateRequest) (*api.NegotiateResponse, error) {
	return call[api.NegotiateRequest, api.NegotiateResponse](ctx, c, transport.MethodNegotiate, req)
}

func (c *Client) Push(ctx context.Context, req *api.PushRequest) (*api.PushResponse, error) {
	return call[api.PushRequest, api.PushResponse](ctx, c, transport.MethodPush, req)
}

func (c *Client) Pull(ctx context.Context, req *api.PullRequest) (*api.PullResponse, error) {
	return call[api.PullRequest, api.PullResponse](ctx, c, transport.MethodPull, req)
}

func (c *Client) Commit(ctx context.Context, req *api.CommitRequest) (*api.CommitResponse, error) {
	return call[api.CommitRequest, api.CommitResponse](ctx, c, transport.MethodCommit, req)
}

func (c *Client) Abort(ctx context.Context, req *api.AbortRequest) error {
	_, err := call[api.AbortRequest, struct{}](ctx, c, transport.MethodAbort, req)
	return err
}

func (c *Client) AcquireLease(ctx context.Context, req *api.LeaseRequest) (*api.LeaseResponse, error) {
	return call[api.LeaseRequest, api.LeaseResponse](ctx, c, transport.MethodAcquireLease, req)
}

func (c *Client) ReleaseLease(ctx context.Context, req *api.LeaseRequest) error {
	_, err := call[api.LeaseRequest, struct{}](ctx, c, transport.MethodReleaseLease, req)
	return err
}

// Done закрывается при обрыве или закрытии потока.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err возвращает причину закрытия потока.
func (c *Client) Err() error {
	err := c.closeErr()
	if errors.Is(err, transport.ErrClosed) {
		return nil
	}
	return err
}
