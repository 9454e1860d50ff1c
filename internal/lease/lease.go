// Package lease provides exclusive, time-limited leases used to serialize
// commits of strong-consistency categories between replicas.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrHeld аренда занята другим владельцем
	ErrHeld = errors.New("lease is held by another holder")
	// ErrNotHeld токен не соответствует действующей аренде
	ErrNotHeld = errors.New("lease is not held")
)

// Lease выданная аренда ключа.
type Lease struct {
	Expires time.Time // Expires момент истечения
	Key     string    // Key арендуемый ключ (имя категории)
	Holder  string    // Holder идентификатор реплики-владельца
	Token   string    // Token подтверждение владения
}

// Valid сообщает, что аренда действует в момент now.
func (l *Lease) Valid(now time.Time) bool {
	return l != nil && now.Before(l.Expires)
}

// Coordinator выдает эксклюзивные аренды.
type Coordinator interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, l *Lease) error
}

// Local координатор в памяти процесса. Облачная реплика обслуживает
// им запросы аренды от edge.
type Local struct {
	now    func() time.Time
	leases map[string]*Lease
	mu     sync.Mutex
}

// NewLocal создает пустой координатор.
func NewLocal() *Local {
	return &Local{
		now:    time.Now,
		leases: make(map[string]*Lease),
	}
}

// NewLocalWithTime создает координатор с заданным источником времени.
func NewLocalWithTime(now func() time.Time) *Local {
	l := NewLocal()
	l.now = now
	return l
}

// Acquire выдает аренду key на ttl. Повторный запрос того же holder
// продлевает его аренду; чужая действующая аренда дает ErrHeld.
func (c *Local) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || holder == "" {
		return nil, fmt.Errorf("lease key and holder are required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cur, ok := c.leases[key]
	if ok && cur.Valid(now) && cur.Holder != holder {
		return nil, fmt.Errorf("%w: %s by %s", ErrHeld, key, cur.Holder)
	}

	l := &Lease{
		Key:     key,
		Holder:  holder,
		Token:   uuid.New().String(),
		Expires: now.Add(ttl),
	}
	if ok && cur.Valid(now) {
		// продление сохраняет токен
		l.Token = cur.Token
	}
	c.leases[key] = l

	out := *l
	return &out, nil
}

// Release освобождает аренду. Освобождение истекшей или чужой аренды
// дает ErrNotHeld.
func (c *Local) Release(ctx context.Context, l *Lease) error {
	if l == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.leases[l.Key]
	if !ok || cur.Token != l.Token {
		return ErrNotHeld
	}
	delete(c.leases, l.Key)
	return nil
}

// Check проверяет, что token подтверждает действующую аренду key.
func (c *Local) Check(key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.leases[key]
	if !ok || cur.Token != token || !cur.Valid(c.now()) {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	return nil
}

// AcquireAll получает аренды всех keys в порядке сортировки.
// При ошибке уже полученные аренды освобождаются.
func AcquireAll(ctx context.Context, c Coordinator, keys []string, holder string, ttl time.Duration) ([]*Lease, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	leases := make([]*Lease, 0, len(sorted))
	for _, key := range sorted {
		l, err := c.Acquire(ctx, key, holder, ttl)
		if err != nil {
			ReleaseAll(context.WithoutCancel(ctx), c, leases)
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}
		leases = append(leases, l)
	}
	return leases, nil
}

// ReleaseAll освобождает аренды, игнорируя ошибки: истекшая аренда
// освобождается сама.
func ReleaseAll(ctx context.Context, c Coordinator, leases []*Lease) {
	for _, l := range leases {
		_ = c.Release(ctx, l)
	}
}
