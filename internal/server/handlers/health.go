package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/edgesync/pkg/api"
)

// Размеры блока измерения полосы
const (
	DefaultProbeBytes = 8192
	MaxProbeBytes     = 1 << 20
)

// HealthHandler обрабатывает health check и probe запросы
type HealthHandler struct {
	logger    *slog.Logger
	now       func() time.Time
	replicaID string
	version   string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, replicaID, version string) *HealthHandler {
	return &HealthHandler{
		logger:    logger,
		now:       time.Now,
		replicaID: replicaID,
		version:   version,
	}
}

// Health обрабатывает GET /api/v1/health
// Используется измерителем сети для RTT и потерь
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:    "ok",
		ReplicaID: h.replicaID,
		Version:   h.version,
		Time:      h.now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}

// Probe обрабатывает GET /api/v1/probe?bytes=N
// Отдает N байт для оценки пропускной способности
func (h *HealthHandler) Probe(w http.ResponseWriter, r *http.Request) {
	n := DefaultProbeBytes
	if s := r.URL.Query().Get("bytes"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			http.Error(w, "Invalid bytes parameter", http.StatusBadRequest)
			return
		}
		n = min(v, MaxProbeBytes)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(make([]byte, n)); err != nil {
		h.logger.Debug("failed to write probe", slog.Any("error", err))
	}
}
