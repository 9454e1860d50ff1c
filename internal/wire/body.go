package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeBody сериализует тело HTTP сообщения; compress включает snappy.
func EncodeBody(v any, compress bool) ([]byte, error) {
	if compress {
		return EncodeJSON(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// DecodeBody разбирает тело HTTP сообщения по значению Content-Encoding.
func DecodeBody(data []byte, encoding string, v any) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(data))
	}
	if encoding == ContentEncoding {
		return DecodeJSON(data, v)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

// AcceptsSnappy сообщает, принимает ли сторона сжатые тела (Accept-Encoding).
func AcceptsSnappy(acceptEncoding string) bool {
	for _, enc := range strings.Split(acceptEncoding, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), ContentEncoding) {
			return true
		}
	}
	return false
}
