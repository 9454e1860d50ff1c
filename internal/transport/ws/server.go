package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/wire"
	"github.com/iudanet/edgesync/pkg/api"
)

// Server обслуживает протокол синхронизации по websocket.
// Ожидает, что вызывающая реплика уже аутентифицирована (auth.WithPeer).
type Server struct {
	handler  transport.Handler
	logger   *slog.Logger
	conns    map[*conn]struct{}
	upgrader websocket.Upgrader
	mu       sync.Mutex
	closed   bool
}

// NewServer создает websocket обработчик поверх handler.
func NewServer(handler transport.Handler, logger *slog.Logger) *Server {
	return &Server{
		handler: handler,
		logger:  logger,
		conns:   make(map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// реплики не являются браузерами, доступ ограничивает токен
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	peerID, ok := auth.PeerFromContext(r.Context())
	if !ok {
		status, body := transport.ErrorResponse(transport.ErrUnauthorized)
		http.Error(w, body.Error, status)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "peer", peerID, "error", err)
		return
	}
	c := newConn(ws)
	if !s.track(c) {
		_ = c.close(websocket.CloseGoingAway, "server shutdown")
		return
	}
	defer s.untrack(c)

	ctx, cancel := context.WithCancel(auth.WithPeer(context.Background(), peerID))
	defer cancel()

	done := make(chan struct{})
	go c.keepalive(done)

	s.logger.Info("Stream opened", "peer", peerID, "remote", r.RemoteAddr)

	var wg sync.WaitGroup
	for {
		f, err := c.read()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Stream read failed", "peer", peerID, "error", err)
			}
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.dispatch(ctx, c, f)
		}()
	}

	cancel()
	wg.Wait()
	close(done)
	_ = ws.Close()
	s.logger.Info("Stream closed", "peer", peerID)
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Close закрывает все открытые потоки и отклоняет новые.
// Вызывается при остановке http.Server (RegisterOnShutdown).
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for c := range s.conns {
		_ = c.close(websocket.CloseGoingAway, "server shutdown")
	}
}

func (s *Server) dispatch(ctx context.Context, c *conn, f *wire.Frame) {
	var out *wire.Frame
	resp, err := s.invoke(ctx, f)
	if err == nil {
		out, err = wire.NewFrame(f.ID, f.Method, resp)
	}
	if err != nil {
		status, body := transport.ErrorResponse(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Stream request failed", "method", f.Method, "error", err)
		}
		out = &wire.Frame{ID: f.ID, Method: f.Method, Status: status, Error: body}
	}

	if err := c.write(out); err != nil {
		s.logger.Warn("Failed to write stream response", "method", f.Method, "error", err)
	}
}

func (s *Server) invoke(ctx context.Context, f *wire.Frame) (any, error) {
	switch f.Method {
	case transport.MethodNegotiate:
		return handle(ctx, f, s.handler.Negotiate)
	case transport.MethodPush:
		return handle(ctx, f, s.handler.Push)
	case transport.MethodPull:
		return handle(ctx, f, s.handler.Pull)
	case transport.MethodCommit:
		return handle(ctx, f, s.handler.Commit)
	case transport.MethodAbort:
		return handle(ctx, f, func(ctx context.Context, req *api.AbortRequest) (*struct{}, error) {
			return &struct{}{}, s.handler.Abort(ctx, req)
		})
	case transport.MethodAcquireLease:
		return handle(ctx, f, s.handler.AcquireLease)
	case transport.MethodReleaseLease:
		return handle(ctx, f, func(ctx context.Context, req *api.LeaseRequest) (*struct{}, error) {
			return &struct{}{}, s.handler.ReleaseLease(ctx, req)
		})
	default:
		return nil, syncerr.Protocol(f.Method, errors.New("unknown method"))
	}
}

func handle[Req, Resp any](ctx context.Context, f *wire.Frame, fn func(context.Context, *Req) (*Resp, error)) (any, error) {
	var req Req
	if err := f.DecodeBody(&req); err != nil {
		return nil, syncerr.Protocol(f.Method, fmt.Errorf("invalid request: %w", err))
	}
	resp, err := fn(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
