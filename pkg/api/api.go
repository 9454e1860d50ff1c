// Package api defines the wire DTOs exchanged between replicas over the
// HTTP and websocket transports.
package api

import "time"

// Paths
const (
	PathNegotiate    = "/api/v1/sync/negotiate"
	PathPush         = "/api/v1/sync/push"
	PathPull         = "/api/v1/sync/pull"
	PathCommit       = "/api/v1/sync/commit"
	PathAbort        = "/api/v1/sync/abort"
	PathLeaseAcquire = "/api/v1/lease/acquire"
	PathLeaseRelease = "/api/v1/lease/release"
	PathHealth       = "/api/v1/health"
	PathProbe        = "/api/v1/probe"
	PathStream       = "/api/v1/stream"
)

// Error codes
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeSessionBusy  = "session_busy"
	CodeNoSession    = "no_session"
	CodeLeaseHeld    = "lease_held"
	CodeStorage      = "storage"
	CodeInternal     = "internal"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
	Code    string `json:"code,omitempty"`    // машинный код ошибки
}

// HealthResponse ответ проверки доступности
type HealthResponse struct {
	Time      time.Time `json:"time"`
	ReplicaID string    `json:"replica_id"`
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
}
