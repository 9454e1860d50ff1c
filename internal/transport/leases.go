package transport

import (
	"context"
	"time"

	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/pkg/api"
)

// Leases координатор аренды, обслуживаемый пиром.
type Leases struct {
	peer Peer
}

var _ lease.Coordinator = (*Leases)(nil)

// NewLeases создает координатор поверх peer.
func NewLeases(peer Peer) *Leases {
	return &Leases{peer: peer}
}

// Acquire запрашивает аренду key у пира.
func (l *Leases) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (*lease.Lease, error) {
	resp, err := l.peer.AcquireLease(ctx, &api.LeaseRequest{
		Key:        key,
		Holder:     holder,
		TTLSeconds: int64(ttl.Round(time.Second) / time.Second),
	})
	if err != nil {
		return nil, err
	}
	return &lease.Lease{
		Expires: resp.ExpiresAt,
		Key:     resp.Key,
		Holder:  resp.Holder,
		Token:   resp.Token,
	}, nil
}

// Release освобождает аренду у пира.
func (l *Leases) Release(ctx context.Context, ls *lease.Lease) error {
	return l.peer.ReleaseLease(ctx, &api.LeaseRequest{
		Key:    ls.Key,
		Holder: ls.Holder,
		Token:  ls.Token,
	})
}
