package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/edgesync/internal/crypto"
)

// Codec names
const (
	CodecRaw    = "raw"
	CodecJSON   = "json"
	CodecSealed = "sealed"
)

// ErrInvalidValue is returned when a value does not fit the category codec.
var ErrInvalidValue = errors.New("invalid value")

// Codec converts application values to operation payloads and back.
type Codec interface {
	Name() string
	Encode(value []byte) ([]byte, error)
	Decode(payload []byte) ([]byte, error)
	// Deterministic reports whether Encode always yields the same payload
	// for the same value. Merge functions require deterministic codecs.
	Deterministic() bool
}

// RawCodec passes bytes through unchanged.
type RawCodec struct{}

func (RawCodec) Name() string                          { return CodecRaw }
func (RawCodec) Encode(value []byte) ([]byte, error)   { return bytes.Clone(value), nil }
func (RawCodec) Decode(payload []byte) ([]byte, error) { return bytes.Clone(payload), nil }
func (RawCodec) Deterministic() bool                   { return true }

// JSONCodec accepts only valid JSON and stores it compacted.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return buf.Bytes(), nil
}

func (JSONCodec) Decode(payload []byte) ([]byte, error) {
	return bytes.Clone(payload), nil
}

func (JSONCodec) Deterministic() bool { return true }

// SealedCodec encrypts values with AES-GCM so that only replicas sharing
// the passphrase can read them. The category name is bound as additional data.
type SealedCodec struct {
	sealer   *crypto.Sealer
	category []byte
}

// NewSealedCodec creates a codec for category using a derived 32-byte key.
func NewSealedCodec(key []byte, category string) (*SealedCodec, error) {
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &SealedCodec{sealer: sealer, category: []byte(category)}, nil
}

func (c *SealedCodec) Name() string { return CodecSealed }

func (c *SealedCodec) Encode(value []byte) ([]byte, error) {
	return c.sealer.Seal(value, c.category)
}

func (c *SealedCodec) Decode(payload []byte) ([]byte, error) {
	return c.sealer.Open(payload, c.category)
}

func (c *SealedCodec) Deterministic() bool { return false }
