package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionVector_Compare(t *testing.T) {
	tests := []struct {
		a, b     VersionVector
		name     string
		expected Ordering
	}{
		{
			name:     "both empty",
			a:        VersionVector{},
			b:        nil,
			expected: OrderEqual,
		},
		{
			name:     "missing entries are zero",
			a:        VersionVector{"edge": 0},
			b:        VersionVector{},
			expected: OrderEqual,
		},
		{
			name:     "strictly before",
			a:        VersionVector{"edge": 1},
			b:        VersionVector{"edge": 2, "cloud": 1},
			expected: OrderBefore,
		},
		{
			name:     "strictly after",
			a:        VersionVector{"edge": 3, "cloud": 1},
			b:        VersionVector{"edge": 2},
			expected: OrderAfter,
		},
		{
			name:     "concurrent",
			a:        VersionVector{"edge": 3},
			b:        VersionVector{"cloud": 1},
			expected: OrderConcurrent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
		})
	}
}

func TestVersionVector_MergeIsMonotonic(t *testing.T) {
	v := VersionVector{"edge": 5, "cloud": 2}

	v.Merge(VersionVector{"edge": 3, "cloud": 4, "other": 1})

	assert.Equal(t, VersionVector{"edge": 5, "cloud": 4, "other": 1}, v)
	assert.False(t, v.Observe("edge", 4))
	assert.True(t, v.Observe("edge", 6))
	assert.Equal(t, uint64(6), v.Get("edge"))
}

func TestVersionVector_CloneIsIndependent(t *testing.T) {
	v := VersionVector{"edge": 1}
	c := v.Clone()
	c["edge"] = 7

	assert.Equal(t, uint64(1), v.Get("edge"))
	assert.Equal(t, "{edge:7}", c.String())
	assert.NotNil(t, VersionVector(nil).Clone())
}
