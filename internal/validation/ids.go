package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ReplicaIDPattern определяет допустимый формат идентификатора реплики
// Латинские буквы, цифры, '_', '-', '.'; длина 1-64 символа
var ReplicaIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// CategoryPattern определяет допустимый формат имени категории
var CategoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

const (
	// MaxItemIDLen максимальная длина ключа элемента в байтах
	MaxItemIDLen = 256
	// MinPassphraseLen минимальная длина пароля для шифрования payload
	MinPassphraseLen = 12
)

// ValidateReplicaID проверяет идентификатор реплики.
// Идентификатор участвует в LWW сравнении и ключах хранилища.
func ValidateReplicaID(id string) error {
	if id == "" {
		return fmt.Errorf("replica id cannot be empty")
	}
	if !ReplicaIDPattern.MatchString(id) {
		return fmt.Errorf("replica id %q can only contain letters, numbers, '_', '-', '.' and must not exceed 64 characters", id)
	}
	return nil
}

// ValidateItemID проверяет ключ элемента
func ValidateItemID(id string) error {
	if id == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if len(id) > MaxItemIDLen {
		return fmt.Errorf("item id must not exceed %d bytes", MaxItemIDLen)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("item id must be valid UTF-8")
	}
	// \x00 разделяет ключ и seq в индексе журнала
	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("item id cannot contain NUL")
	}
	return nil
}

// ValidateCategory проверяет имя категории
func ValidateCategory(name string) error {
	if name == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if !CategoryPattern.MatchString(name) {
		return fmt.Errorf("category %q must start with a lowercase letter and contain only a-z, 0-9, '_', '-' (max 32)", name)
	}
	return nil
}

// ValidatePassphrase проверяет минимальные требования к паролю шифрования
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}
	if len(passphrase) < MinPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLen)
	}
	return nil
}
