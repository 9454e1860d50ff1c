// Package auth issues and validates the bearer tokens that replicas present
// to each other on every sync request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer издатель токенов по умолчанию
const DefaultIssuer = "edgesync"

// ErrInvalidToken токен не прошел проверку
var ErrInvalidToken = errors.New("invalid token")

// Claims представляет JWT claims реплики
type Claims struct {
	ReplicaID string `json:"replica_id"`
	jwt.RegisteredClaims
}

// Config содержит конфигурацию для JWT
type Config struct {
	Issuer string
	Secret []byte
	TTL    time.Duration
}

// IssueToken создает подписанный токен реплики replicaID.
func IssueToken(cfg Config, replicaID string, now time.Time) (string, time.Time, error) {
	if len(cfg.Secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	expiresAt := now.Add(cfg.TTL)

	claims := Claims{
		ReplicaID: replicaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   replicaID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken валидирует и парсит токен реплики
func ValidateToken(cfg Config, tokenString string) (*Claims, error) {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ReplicaID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type peerKey struct{}

// WithPeer добавляет идентификатор аутентифицированной реплики в контекст
func WithPeer(ctx context.Context, replicaID string) context.Context {
	return context.WithValue(ctx, peerKey{}, replicaID)
}

// PeerFromContext извлекает идентификатор реплики из контекста
func PeerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(peerKey{}).(string)
	return id, ok && id != ""
}

// TokenSource выдает токен реплики, перевыпуская его незадолго до истечения.
type TokenSource struct {
	expires   time.Time
	now       func() time.Time
	token     string
	replicaID string
	cfg       Config
	mu        sync.Mutex
}

// NewTokenSource создает источник токенов для replicaID
func NewTokenSource(cfg Config, replicaID string) *TokenSource {
	return &TokenSource{
		cfg:       cfg,
		replicaID: replicaID,
		now:       time.Now,
	}
}

// Token возвращает действующий токен
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// перевыпуск за 10% TTL до истечения
	if s.token != "" && now.Before(s.expires.Add(-s.cfg.TTL/10)) {
		return s.token, nil
	}

	token, expires, err := IssueToken(s.cfg, s.replicaID, now)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expires = expires
	return token, nil
}
