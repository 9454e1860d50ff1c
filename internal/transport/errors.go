package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/pkg/api"
)

// ErrNoSession сессия не найдена или истекла на стороне пира
var ErrNoSession = errors.New("sync session not found")

// ErrUnauthorized вызывающая реплика не аутентифицирована
var ErrUnauthorized = errors.New("unauthorized")

// ErrorResponse переводит ошибку обработчика в HTTP статус и тело ответа.
func ErrorResponse(err error) (int, *api.ErrorResponse) {
	resp := &api.ErrorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, ErrUnauthorized):
		resp.Code = api.CodeUnauthorized
		return http.StatusUnauthorized, resp
	case errors.Is(err, syncerr.ErrSessionBusy):
		resp.Code = api.CodeSessionBusy
		return http.StatusConflict, resp
	case errors.Is(err, ErrNoSession):
		resp.Code = api.CodeNoSession
		return http.StatusGone, resp
	case errors.Is(err, lease.ErrHeld), errors.Is(err, lease.ErrNotHeld):
		resp.Code = api.CodeLeaseHeld
		return http.StatusConflict, resp
	}

	switch syncerr.KindOf(err) {
	case syncerr.KindProtocol, syncerr.KindConflict:
		resp.Code = api.CodeBadRequest
		return http.StatusBadRequest, resp
	case syncerr.KindStorage:
		resp.Code = api.CodeStorage
		resp.Error = "storage failure"
		return http.StatusServiceUnavailable, resp
	default:
		resp.Code = api.CodeInternal
		resp.Error = "internal server error"
		return http.StatusInternalServerError, resp
	}
}

// ErrorFrom восстанавливает классифицированную ошибку из ответа пира.
// Сбой хранилища пира для инициатора сетевой: его собственное состояние цело.
func ErrorFrom(op string, status int, resp *api.ErrorResponse) error {
	msg := http.StatusText(status)
	code := ""
	if resp != nil {
		msg = resp.Error
		code = resp.Code
	}
	cause := fmt.Errorf("peer returned %d: %s", status, msg)

	switch code {
	case api.CodeSessionBusy:
		return syncerr.Network(op, fmt.Errorf("%w: %w", syncerr.ErrSessionBusy, cause))
	case api.CodeNoSession:
		return syncerr.Network(op, fmt.Errorf("%w: %w", ErrNoSession, cause))
	case api.CodeLeaseHeld:
		return syncerr.Network(op, fmt.Errorf("%w: %w", lease.ErrHeld, cause))
	case api.CodeUnauthorized:
		return syncerr.Protocol(op, fmt.Errorf("%w: %w", ErrUnauthorized, cause))
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return syncerr.Protocol(op, cause)
	default:
		return syncerr.Network(op, cause)
	}
}
