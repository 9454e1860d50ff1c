package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrKeyMismatch ключ не совпадает с сохраненным отпечатком
var ErrKeyMismatch = errors.New("encryption key does not match key check")

// KeyCheck вычисляет отпечаток ключа шифрования (hex SHA256).
// Отпечаток хранится в конфигурации и позволяет отличить неверную
// парольную фразу до того, как sealed-значения начнут не расшифровываться.
func KeyCheck(key []byte) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("key cannot be empty")
	}

	h := sha256.New()
	h.Write([]byte("edgesync-keycheck"))
	h.Write(key)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyKeyCheck сверяет ключ с отпечатком check.
func VerifyKeyCheck(key []byte, check string) error {
	if check == "" {
		return fmt.Errorf("key check cannot be empty")
	}

	computed, err := KeyCheck(key)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(check)) != 1 {
		return ErrKeyMismatch
	}
	return nil
}
