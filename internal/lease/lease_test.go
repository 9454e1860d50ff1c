package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestLocal_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLocalWithTime(clock.Now)

	l, err := c.Acquire(ctx, "orders", "edge", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "orders", l.Key)
	assert.NotEmpty(t, l.Token)
	require.NoError(t, c.Check("orders", l.Token))

	_, err = c.Acquire(ctx, "orders", "other", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	// продление тем же владельцем
	renewed, err := c.Acquire(ctx, "orders", "edge", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, l.Token, renewed.Token)

	require.NoError(t, c.Release(ctx, renewed))
	assert.ErrorIs(t, c.Check("orders", l.Token), ErrNotHeld)
	assert.ErrorIs(t, c.Release(ctx, renewed), ErrNotHeld)
}

func TestLocal_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLocalWithTime(clock.Now)

	l, err := c.Acquire(ctx, "orders", "edge", time.Second)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Second)
	assert.ErrorIs(t, c.Check("orders", l.Token), ErrNotHeld)

	other, err := c.Acquire(ctx, "orders", "other", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, l.Token, other.Token)

	// старый владелец не может освободить чужую аренду
	assert.ErrorIs(t, c.Release(ctx, l), ErrNotHeld)
}

func TestLocal_AcquireValidation(t *testing.T) {
	c := NewLocal()
	ctx := context.Background()

	tests := []struct {
		name   string
		key    string
		holder string
		ttl    time.Duration
	}{
		{name: "empty key", key: "", holder: "edge", ttl: time.Second},
		{name: "empty holder", key: "orders", holder: "", ttl: time.Second},
		{name: "zero ttl", key: "orders", holder: "edge", ttl: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Acquire(ctx, tt.key, tt.holder, tt.ttl)
			assert.Error(t, err)
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := c.Acquire(cancelled, "orders", "edge", time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAcquireAll_ReleasesOnFailure(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()

	_, err := c.Acquire(ctx, "payments", "other", time.Minute)
	require.NoError(t, err)

	_, err = AcquireAll(ctx, c, []string{"payments", "orders"}, "edge", time.Minute)
	require.ErrorIs(t, err, ErrHeld)

	// "orders" получена первой и должна быть освобождена
	l, err := c.Acquire(ctx, "orders", "third", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "third", l.Holder)

	ReleaseAll(ctx, c, []*Lease{l})
	leases, err := AcquireAll(ctx, c, []string{"orders"}, "edge", time.Minute)
	require.NoError(t, err)
	require.Len(t, leases, 1)
}
