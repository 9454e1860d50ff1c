// Package syncerr classifies sync failures so that callers can decide
// between retry, abort and shutdown without inspecting error strings.
package syncerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the failure class of a sync error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork: transient transport failure, retried by the scheduler.
	KindNetwork
	// KindProtocol: malformed or unexpected message from the peer.
	KindProtocol
	// KindConflict: a merge function failed; the item needs manual resolution.
	KindConflict
	// KindStorage: the durable store failed. Fatal for the session.
	KindStorage
	// KindBudget: the transfer would exceed the bandwidth budget.
	KindBudget
	// KindTimeout: a phase deadline elapsed.
	KindTimeout
	// KindCancelled: the session was cancelled from outside.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol violation"
	case KindConflict:
		return "conflict unresolvable"
	case KindStorage:
		return "storage failure"
	case KindBudget:
		return "budget exceeded"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrProtocol    = &Error{Kind: KindProtocol}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrStorage     = &Error{Kind: KindStorage}
	ErrBudget      = &Error{Kind: KindBudget}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrCancelled   = &Error{Kind: KindCancelled}
	ErrSessionBusy = errors.New("sync session already active")
)

// Error is a classified failure of operation Op.
type Error struct {
	Err  error
	Op   string
	Kind Kind
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// New wraps err with a kind. An already classified err keeps its kind.
func New(kind Kind, op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Network(op string, err error) error { return New(KindNetwork, op, err) }
func Protocol(op string, err error) error { return New(KindProtocol, op, err) }
func Storage(op string, err error) error { return New(KindStorage, op, err) }
func Conflict(op string, err error) error { return New(KindConflict, op, err) }
func Budget(op string, err error) error { return New(KindBudget, op, err) }

// FromContext classifies a context error as timeout or cancellation.
func FromContext(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCancelled, Op: op, Err: err}
	default:
		return err
	}
}

// KindOf returns the kind of err. Bare context errors map to
// KindTimeout and KindCancelled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindUnknown
}

// IsFatal reports whether err must stop the sync runtime.
func IsFatal(err error) bool {
	return KindOf(err) == KindStorage
}

// IsRetryable reports whether the failure is expected to go away on its own.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindBudget:
		return true
	}
	return errors.Is(err, ErrSessionBusy)
}
