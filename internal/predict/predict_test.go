package predict

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstant(t *testing.T) {
	v, err := Constant(0.7).Predict(Features{})
	require.NoError(t, err)
	assert.Equal(t, 0.7, v)

	v, _ = Constant(3).Predict(Features{})
	assert.Equal(t, 1.0, v)
}

func TestFunc(t *testing.T) {
	fn := Func(func(f Features) (float64, error) {
		return float64(f.QueueDepth) / 10, nil
	})
	v, err := fn.Predict(Features{QueueDepth: 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, v, 1e-9)

	failing := Func(func(Features) (float64, error) { return 0, ErrNoScore })
	_, err = failing.Predict(Features{})
	assert.True(t, errors.Is(err, ErrNoScore))
}

func TestHeuristic(t *testing.T) {
	h := NewHeuristic()

	_, err := h.Predict(Features{MaxPriority: 10})
	require.ErrorIs(t, err, ErrNoScore)

	good := Features{
		NetworkKnown: true,
		RTT:          10 * time.Millisecond,
		Bandwidth:    20 * 1024 * 1024 / 8,
		MaxPriority:  8,
		PendingBytes: 1024,
	}
	bad := good
	bad.RTT = 450 * time.Millisecond
	bad.Bandwidth = 64 * 1024 / 8
	bad.LossRate = 0.5

	tests := []struct {
		name string
		f    Features
		min  float64
		max  float64
	}{
		{name: "good link", f: good, min: 0.9, max: 1},
		{name: "bad link", f: bad, min: 0.2, max: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := h.Predict(tt.f)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, tt.min)
			assert.LessOrEqual(t, v, tt.max)
		})
	}

	low := good
	low.MaxPriority = 1
	vLow, _ := h.Predict(low)
	vHigh, _ := h.Predict(good)
	assert.Less(t, vLow, vHigh, "priority raises utility")

	big := good
	big.PendingBytes = 10 << 20
	vBig, _ := h.Predict(big)
	assert.Less(t, vBig, vHigh, "large batches lower utility")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1))
	assert.Equal(t, 1.0, Clamp(2))
	assert.Equal(t, 0.0, Clamp(math.NaN()))
	assert.Equal(t, 0.5, Clamp(0.5))
}
