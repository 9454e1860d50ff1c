package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/iudanet/edgesync/internal/client/iocli"
	"github.com/iudanet/edgesync/internal/config"
	"github.com/iudanet/edgesync/internal/crypto"
	"github.com/iudanet/edgesync/internal/validation"
)

// EnvPassphrase переменная окружения с парольной фразой
const EnvPassphrase = "EDGESYNC_PASSPHRASE"

// Passphrases источники парольной фразы из флагов.
type Passphrases struct {
	FromFile string
	FromArgs string
}

// ReadPassphrase возвращает парольную фразу из источников по приоритету:
// 1. Переменная окружения EDGESYNC_PASSPHRASE
// 2. Файл FromFile
// 3. Параметр командной строки FromArgs
// 4. Интерактивный ввод
func ReadPassphrase(io iocli.IO, src Passphrases) (string, error) {
	if env := os.Getenv(EnvPassphrase); env != "" {
		return env, nil
	}

	if src.FromFile != "" {
		content, err := os.ReadFile(src.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		// Убираем trailing newline/whitespace
		phrase := strings.TrimSpace(string(content))
		if phrase == "" {
			return "", fmt.Errorf("passphrase file is empty")
		}
		return phrase, nil
	}

	if src.FromArgs != "" {
		return src.FromArgs, nil
	}

	phrase, err := io.ReadPassword("Passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if phrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return phrase, nil
}

// LoadKey выводит ключ sealed-категорий. Без sealed-категорий фраза не
// запрашивается и ключ nil.
func LoadKey(cfg *config.Config, io iocli.IO, src Passphrases) ([]byte, error) {
	if !cfg.NeedsKey() {
		return nil, nil
	}
	if cfg.Crypto.Salt == "" {
		return nil, fmt.Errorf("crypto.salt is not configured. Run 'edgesync keygen' first")
	}

	phrase, err := ReadPassphrase(io, src)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePassphrase(phrase); err != nil {
		return nil, fmt.Errorf("invalid passphrase: %w", err)
	}

	key, err := crypto.DeriveKeyFromBase64Salt(phrase, cfg.Crypto.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	if cfg.Crypto.KeyCheck != "" {
		if err := crypto.VerifyKeyCheck(key, cfg.Crypto.KeyCheck); err != nil {
			return nil, fmt.Errorf("wrong passphrase: %w", err)
		}
	}
	return key, nil
}

// Keygen генерирует соль и отпечаток ключа для новой группы реплик и
// печатает секцию crypto конфигурации. Все реплики используют одну фразу
// и одну соль.
func Keygen(io iocli.IO, src Passphrases) error {
	phrase, err := ReadPassphrase(io, src)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassphrase(phrase); err != nil {
		return fmt.Errorf("invalid passphrase: %w", err)
	}

	// повтор нужен только при интерактивном вводе
	if os.Getenv(EnvPassphrase) == "" && src.FromFile == "" && src.FromArgs == "" {
		again, err := io.ReadPassword("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		if again != phrase {
			return fmt.Errorf("passphrases do not match")
		}
	}

	salt, err := crypto.GenerateSaltBase64()
	if err != nil {
		return err
	}
	key, err := crypto.DeriveKeyFromBase64Salt(phrase, salt)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}
	check, err := crypto.KeyCheck(key)
	if err != nil {
		return err
	}

	io.Println("Add to the config of every replica:")
	io.Println()
	io.Println("crypto:")
	io.Printf("  salt: %s\n", salt)
	io.Printf("  key_check: %s\n", check)
	return nil
}
