package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOp() *Operation {
	return &Operation{
		ID:        "op-1",
		ItemID:    "item",
		Category:  "counters",
		Origin:    "edge",
		Kind:      OpPut,
		Payload:   []byte("1"),
		Seq:       2,
		Timestamp: 100,
		Deps:      VersionVector{"edge": 1},
	}
}

func TestOperation_Validate(t *testing.T) {
	tests := []struct {
		mutate  func(op *Operation)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*Operation) {}},
		{name: "empty id", mutate: func(op *Operation) { op.ID = "" }, wantErr: true},
		{name: "empty item", mutate: func(op *Operation) { op.ItemID = "" }, wantErr: true},
		{name: "empty category", mutate: func(op *Operation) { op.Category = "" }, wantErr: true},
		{name: "empty origin", mutate: func(op *Operation) { op.Origin = "" }, wantErr: true},
		{name: "zero seq", mutate: func(op *Operation) { op.Seq = 0 }, wantErr: true},
		{name: "zero timestamp", mutate: func(op *Operation) { op.Timestamp = 0 }, wantErr: true},
		{name: "unknown kind", mutate: func(op *Operation) { op.Kind = "upsert" }, wantErr: true},
		{name: "self dependency", mutate: func(op *Operation) { op.Deps["edge"] = 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := validOp()
			tt.mutate(op)
			err := op.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOperation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStamp_After(t *testing.T) {
	a := Stamp{Origin: "edge", Timestamp: 10, Seq: 1}

	assert.True(t, Stamp{Origin: "edge", Timestamp: 11}.After(a))
	assert.True(t, Stamp{Origin: "zeta", Timestamp: 10}.After(a))
	assert.False(t, Stamp{Origin: "cloud", Timestamp: 10, Seq: 9}.After(a))
	assert.True(t, Stamp{Origin: "edge", Timestamp: 10, Seq: 2}.After(a))
	assert.False(t, a.After(a))
}

func TestOperation_Clone(t *testing.T) {
	op := validOp()
	op.WallTime = time.Now()

	clone := op.Clone()
	require.Equal(t, op, clone)

	clone.Payload[0] = '9'
	clone.Deps["edge"] = 0
	assert.Equal(t, []byte("1"), op.Payload)
	assert.Equal(t, uint64(1), op.Deps.Get("edge"))
}

func TestDataItem_CloneAndEqual(t *testing.T) {
	item := NewDataItem("a", "notes")
	assert.False(t, item.Exists())

	item.Value = []byte("v")
	item.Stamp = Stamp{Origin: "edge", Timestamp: 5, Seq: 1}
	item.Version.Observe("edge", 1)
	assert.True(t, item.Exists())

	clone := item.Clone()
	assert.True(t, item.Equal(clone))

	clone.Value[0] = 'x'
	assert.False(t, item.Equal(clone))

	clone = item.Clone()
	clone.Tombstone = true
	assert.False(t, clone.Exists())
}
