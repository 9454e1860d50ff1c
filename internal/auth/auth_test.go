package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{Secret: []byte("test-secret-key-for-replicas"), TTL: time.Hour}
}

func TestIssueAndValidate(t *testing.T) {
	cfg := testConfig()

	token, expires, err := IssueToken(cfg, "edge-01", time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "edge-01", claims.ReplicaID)
	assert.Equal(t, "edge-01", claims.Subject)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
}

func TestValidateToken_Rejects(t *testing.T) {
	cfg := testConfig()
	valid, _, err := IssueToken(cfg, "edge-01", time.Now())
	require.NoError(t, err)

	expired, _, err := IssueToken(cfg, "edge-01", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	foreign, _, err := IssueToken(otherIssuer, "edge-01", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name  string
		cfg   Config
		token string
	}{
		{name: "garbage", cfg: cfg, token: "not-a-token"},
		{name: "wrong secret", cfg: Config{Secret: []byte("another-secret"), TTL: time.Hour}, token: valid},
		{name: "expired", cfg: cfg, token: expired},
		{name: "wrong issuer", cfg: cfg, token: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.cfg, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueToken_EmptySecret(t *testing.T) {
	_, _, err := IssueToken(Config{TTL: time.Hour}, "edge", time.Now())
	assert.Error(t, err)
}

func TestPeerContext(t *testing.T) {
	_, ok := PeerFromContext(context.Background())
	assert.False(t, ok)

	id, ok := PeerFromContext(WithPeer(context.Background(), "edge"))
	assert.True(t, ok)
	assert.Equal(t, "edge", id)
}

func TestTokenSource_Caches(t *testing.T) {
	now := time.Now()
	src := NewTokenSource(testConfig(), "edge")
	src.now = func() time.Time { return now }

	first, err := src.Token()
	require.NoError(t, err)
	second, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// ближе 10% TTL к истечению токен перевыпускается
	now = now.Add(55 * time.Minute)
	third, err := src.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}
