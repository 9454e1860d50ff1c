// Package server assembles the cloud replica's HTTP surface: the sync
// protocol over JSON requests and over a websocket stream, health and
// bandwidth probe endpoints, and the middleware chain in front of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/server/handlers"
	"github.com/iudanet/edgesync/internal/server/middleware"
	"github.com/iudanet/edgesync/internal/server/responder"
	"github.com/iudanet/edgesync/internal/transport/ws"
	"github.com/iudanet/edgesync/pkg/api"
)

// Config настройки HTTP сервера
type Config struct {
	Address         string
	Version         string
	Auth            auth.Config
	ShutdownTimeout time.Duration
	SweepInterval   time.Duration // SweepInterval период удаления брошенных сессий
	RateLimit       int           // RateLimit запросов в минуту на пира, 0 без ограничения
}

// Server HTTP сервер облачной реплики.
type Server struct {
	responder *responder.Responder
	limiter   *middleware.RateLimiter
	stream    *ws.Server
	logger    *slog.Logger
	handler   http.Handler
	cfg       Config
}

// New создает сервер поверх resp. replicaID сообщается в /health.
func New(cfg Config, replicaID string, resp *responder.Responder, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	s := &Server{
		responder: resp,
		logger:    logger,
		cfg:       cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute, logger)
	}
	s.handler = s.routes(replicaID)
	return s
}

func (s *Server) routes(replicaID string) http.Handler {
	health := handlers.NewHealthHandler(s.logger, replicaID, s.cfg.Version)
	proto := handlers.NewSyncHandler(s.logger, s.responder)
	s.stream = ws.NewServer(s.responder, s.logger)

	authn := middleware.AuthMiddleware(s.logger, s.cfg.Auth)
	protect := func(h http.Handler) http.Handler {
		if s.limiter != nil {
			h = s.limiter.Middleware(h)
		}
		return authn(h)
	}

	mux := http.NewServeMux()

	// открытые маршруты
	mux.HandleFunc(api.PathHealth, health.Health)
	mux.HandleFunc(api.PathProbe, health.Probe)

	// протокол синхронизации
	mux.Handle(api.PathNegotiate, protect(http.HandlerFunc(proto.Negotiate)))
	mux.Handle(api.PathPush, protect(http.HandlerFunc(proto.Push)))
	mux.Handle(api.PathPull, protect(http.HandlerFunc(proto.Pull)))
	mux.Handle(api.PathCommit, protect(http.HandlerFunc(proto.Commit)))
	mux.Handle(api.PathAbort, protect(http.HandlerFunc(proto.Abort)))
	mux.Handle(api.PathLeaseAcquire, protect(http.HandlerFunc(proto.AcquireLease)))
	mux.Handle(api.PathLeaseRelease, protect(http.HandlerFunc(proto.ReleaseLease)))
	mux.Handle(api.PathStream, protect(s.stream))

	var h http.Handler = mux
	h = middleware.LoggingMiddleware(s.logger, api.PathHealth, api.PathProbe)(h)
	h = middleware.RecoveryMiddleware(s.logger)(h)
	return h
}

// Handler возвращает корневой обработчик со всеми middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает адрес из настроек до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx, затем корректно останавливается:
// новые соединения не принимаются, активные запросы завершаются в пределах
// ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	// потоки websocket захвачены у http.Server, Shutdown их не закрывает
	srv.RegisterOnShutdown(s.stream.Close)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sweep(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		if s.limiter != nil {
			s.limiter.Stop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.responder.Sweep(); n > 0 {
				s.logger.Info("Expired sync sessions removed", "count", n)
			}
		}
	}
}
