package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/wire"
	"github.com/iudanet/edgesync/pkg/api"
)

// SyncHandler обслуживает протокол синхронизации по HTTP.
// Идентификатор вызывающей реплики кладет в контекст AuthMiddleware.
type SyncHandler struct {
	logger  *slog.Logger
	handler transport.Handler
}

// NewSyncHandler создает handler поверх обработчика протокола
func NewSyncHandler(logger *slog.Logger, handler transport.Handler) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		handler: handler,
	}
}

// Negotiate обрабатывает POST /api/v1/sync/negotiate
func (h *SyncHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodNegotiate, h.handler.Negotiate)
}

// Push обрабатывает POST /api/v1/sync/push
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodPush, h.handler.Push)
}

// Pull обрабатывает POST /api/v1/sync/pull
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodPull, h.handler.Pull)
}

// Commit обрабатывает POST /api/v1/sync/commit
func (h *SyncHandler) Commit(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodCommit, h.handler.Commit)
}

// Abort обрабатывает POST /api/v1/sync/abort
func (h *SyncHandler) Abort(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodAbort, func(ctx context.Context, req *api.AbortRequest) (*struct{}, error) {
		return &struct{}{}, h.handler.Abort(ctx, req)
	})
}

// AcquireLease обрабатывает POST /api/v1/lease/acquire
func (h *SyncHandler) AcquireLease(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodAcquireLease, h.handler.AcquireLease)
}

// ReleaseLease обрабатывает POST /api/v1/lease/release
func (h *SyncHandler) ReleaseLease(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, transport.MethodReleaseLease, func(ctx context.Context, req *api.LeaseRequest) (*struct{}, error) {
		return &struct{}{}, h.handler.ReleaseLease(ctx, req)
	})
}

func serve[Req, Resp any](h *SyncHandler, w http.ResponseWriter, r *http.Request, method string, fn func(context.Context, *Req) (*Resp, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, wire.MaxMessageSize))
	if err != nil {
		h.logger.Warn("Failed to read request body", "method", method, "error", err)
		h.writeError(w, r, syncerr.Protocol(method, err))
		return
	}

	var req Req
	if err := wire.DecodeBody(data, r.Header.Get("Content-Encoding"), &req); err != nil {
		h.logger.Warn("Invalid request body", "method", method, "error", err)
		h.writeError(w, r, syncerr.Protocol(method, err))
		return
	}

	resp, err := fn(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, resp)
}

func (h *SyncHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := transport.ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Sync request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("Sync request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.write(w, r, status, body)
}

func (h *SyncHandler) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	compress := wire.AcceptsSnappy(r.Header.Get("Accept-Encoding"))
	data, err := wire.EncodeBody(v, compress)
	if err != nil {
		h.logger.Error("Failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", wire.ContentType)
	if compress {
		w.Header().Set("Content-Encoding", wire.ContentEncoding)
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
