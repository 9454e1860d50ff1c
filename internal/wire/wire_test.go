package wire

import (
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/pkg/api"
)

func samplePush() *api.PushRequest {
	return &api.PushRequest{
		SessionID: "s1",
		Batch:     2,
		Operations: []api.Operation{{
			WallTime:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Deps:      map[string]uint64{"cloud": 4},
			ID:        "op-1",
			ItemID:    "sensor/1",
			Category:  "readings",
			Origin:    "edge",
			Kind:      "put",
			Payload:   []byte(`{"t":21.5}`),
			Seq:       7,
			Timestamp: 1 << 20,
		}},
	}
}

func TestJSON(t *testing.T) {
	data, err := EncodeJSON(samplePush())
	require.NoError(t, err)

	var got api.PushRequest
	require.NoError(t, DecodeJSON(data, &got))
	want := samplePush()
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.Batch, got.Batch)
	require.Len(t, got.Operations, 1)
	assert.Equal(t, want.Operations[0].Payload, got.Operations[0].Payload)
	assert.Equal(t, want.Operations[0].Deps, got.Operations[0].Deps)
	assert.True(t, want.Operations[0].WallTime.Equal(got.Operations[0].WallTime))

	assert.Error(t, DecodeJSON([]byte("not snappy"), &got))
}

func TestDecodeJSON_RejectsOversized(t *testing.T) {
	big := make([]byte, MaxMessageSize+1)
	data := snappy.Encode(nil, big)

	var v any
	err := DecodeJSON(data, &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestFrame(t *testing.T) {
	f, err := NewFrame(42, "push", samplePush())
	require.NoError(t, err)

	data, err := EncodeFrame(f)
	require.NoError(t, err)

	decoded, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), decoded.ID)
	assert.Equal(t, "push", decoded.Method)
	assert.Nil(t, decoded.Error)

	var got api.PushRequest
	require.NoError(t, decoded.DecodeBody(&got))
	assert.Equal(t, "s1", got.SessionID)
	require.Len(t, got.Operations, 1)
	assert.Equal(t, []byte(`{"t":21.5}`), got.Operations[0].Payload)
	assert.Equal(t, uint64(4), got.Operations[0].Deps["cloud"])
	assert.True(t, got.Operations[0].WallTime.Equal(samplePush().Operations[0].WallTime))
}

func TestFrame_Error(t *testing.T) {
	f := &Frame{ID: 1, Method: "commit", Status: 409, Error: &api.ErrorResponse{Error: "busy", Code: api.CodeSessionBusy}}

	data, err := EncodeFrame(f)
	require.NoError(t, err)

	decoded, err := DecodeFrame(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, api.CodeSessionBusy, decoded.Error.Code)
	assert.Equal(t, 409, decoded.Status)
	assert.Error(t, decoded.DecodeBody(&api.CommitResponse{}))
}
