// Package wire encodes sync messages for the network: JSON bodies for the
// HTTP transport and msgpack frames for the websocket transport, both
// compressed with snappy.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/iudanet/edgesync/pkg/api"
)

const (
	// ContentEncoding значение заголовка Content-Encoding для сжатых тел
	ContentEncoding = "snappy"
	// ContentType тип тела HTTP запросов и ответов
	ContentType = "application/json"
	// MaxMessageSize максимальный размер сообщения после распаковки
	MaxMessageSize = 32 << 20
)

// EncodeJSON сериализует v в JSON и сжимает snappy.
func EncodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// DecodeJSON распаковывает data и разбирает JSON в v.
func DecodeJSON(data []byte, v any) error {
	raw, err := decompress(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

func decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read compressed length: %w", err)
	}
	if n > MaxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", n)
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress message: %w", err)
	}
	return raw, nil
}

// Frame сообщение websocket транспорта. Ответ несет ID запроса.
type Frame struct {
	Error  *api.ErrorResponse `json:"error,omitempty"`
	Method string             `json:"method"`
	Body   msgpack.RawMessage `json:"body,omitempty"`
	ID     uint64             `json:"id"`
	Status int                `json:"status,omitempty"` // HTTP-подобный статус ошибки
}

// NewFrame создает кадр с телом body.
func NewFrame(id uint64, method string, body any) (*Frame, error) {
	f := &Frame{ID: id, Method: method}
	if body != nil {
		data, err := marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal frame body: %w", err)
		}
		f.Body = data
	}
	return f, nil
}

// DecodeBody разбирает тело кадра в v.
func (f *Frame) DecodeBody(v any) error {
	if len(f.Body) == 0 {
		return fmt.Errorf("frame %d has empty body", f.ID)
	}
	if err := unmarshal(f.Body, v); err != nil {
		return fmt.Errorf("failed to unmarshal frame body: %w", err)
	}
	return nil
}

// EncodeFrame сериализует кадр в msgpack и сжимает snappy.
func EncodeFrame(f *Frame) ([]byte, error) {
	data, err := marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// DecodeFrame распаковывает и разбирает кадр.
func DecodeFrame(data []byte) (*Frame, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	var f Frame
	if err := unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return &f, nil
}

// DTO описаны json тегами; msgpack использует их же.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
