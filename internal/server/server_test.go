package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/replica/replicatest"
	"github.com/iudanet/edgesync/internal/server/responder"
	"github.com/iudanet/edgesync/internal/session"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/internal/transport/httpapi"
	"github.com/iudanet/edgesync/internal/transport/ws"
	"github.com/iudanet/edgesync/pkg/api"
)

var testAuth = auth.Config{Secret: []byte("test-secret-0123456789"), TTL: time.Minute}

type fixture struct {
	cloud *replica.Replica
	resp  *responder.Responder
	srv   *httptest.Server
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{cloud: replicatest.New(t, "cloud", storage.BackendSQLite)}
	f.resp = responder.New(f.cloud, lease.NewLocal(), responder.DefaultConfig(), replicatest.Logger())

	cfg.Auth = testAuth
	cfg.Version = "test"
	s := New(cfg, f.cloud.ID(), f.resp, replicatest.Logger())
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func seed(t *testing.T, edge, cloud *replica.Replica) {
	t.Helper()
	ctx := context.Background()
	_, err := edge.Put(ctx, replicatest.Notes, "greeting", []byte("hello"))
	require.NoError(t, err)
	_, err = edge.Put(ctx, replicatest.Orders, "order-1", []byte("qty=1"))
	require.NoError(t, err)
	_, err = cloud.Put(ctx, replicatest.Counters, "visits", []byte("4"))
	require.NoError(t, err)
}

func TestServer_SyncOverTransports(t *testing.T) {
	tests := []struct {
		name string
		dial func(t *testing.T, url string) transport.Peer
	}{
		{
			name: "http",
			dial: func(t *testing.T, url string) transport.Peer {
				return httpapi.NewClient(url, auth.NewTokenSource(testAuth, "edge"), 5*time.Second)
			},
		},
		{
			name: "websocket",
			dial: func(t *testing.T, url string) transport.Peer {
				c, err := ws.Dial(context.Background(), url, auth.NewTokenSource(testAuth, "edge"), replicatest.Logger())
				require.NoError(t, err)
				return c
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			edge := replicatest.New(t, "edge", storage.BackendBolt)
			seed(t, edge, f.cloud)

			peer := tt.dial(t, f.srv.URL)
			defer func() { _ = peer.Close() }()

			engine := session.New(edge, peer, session.DefaultConfig(), replicatest.Logger())
			out, err := engine.Sync(context.Background(), session.Request{Reason: "test"})
			require.NoError(t, err)
			assert.True(t, out.PeerAcked)
			assert.Equal(t, "cloud", out.PeerID)

			replicatest.RequireConverged(t, edge, f.cloud)
		})
	}
}

func TestServer_RequiresToken(t *testing.T) {
	f := newFixture(t, Config{})

	anonymous := httpapi.NewClient(f.srv.URL, nil, time.Second)
	_, err := anonymous.Negotiate(context.Background(), &api.NegotiateRequest{SessionID: "s1", ReplicaID: "edge"})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)
	assert.ErrorIs(t, err, transport.ErrUnauthorized)

	foreign := auth.Config{Secret: []byte("another-secret-0123456789"), TTL: time.Minute}
	_, err = ws.Dial(context.Background(), f.srv.URL, auth.NewTokenSource(foreign, "edge"), replicatest.Logger())
	assert.ErrorIs(t, err, syncerr.ErrProtocol)

	health, err := anonymous.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cloud", health.ReplicaID)
	assert.Equal(t, "test", health.Version)
}

func TestServer_RateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 2})
	client := httpapi.NewClient(f.srv.URL, auth.NewTokenSource(testAuth, "edge"), time.Second)

	ctx := context.Background()
	var lastErr error
	for range 3 {
		_, lastErr = client.Pull(ctx, &api.PullRequest{SessionID: "missing"})
	}
	require.Error(t, lastErr)
	assert.ErrorIs(t, lastErr, syncerr.ErrNetwork)
	assert.Contains(t, lastErr.Error(), "429")
}

func TestServer_ProbeIsPublic(t *testing.T) {
	f := newFixture(t, Config{})

	resp, err := http.Get(f.srv.URL + api.PathProbe + "?bytes=1024")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1024), resp.ContentLength)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	cloud := replicatest.New(t, "cloud", storage.BackendBolt)
	resp := responder.New(cloud, lease.NewLocal(), responder.DefaultConfig(), replicatest.Logger())
	s := New(Config{Auth: testAuth, ShutdownTimeout: time.Second}, cloud.ID(), resp, replicatest.Logger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	var health api.HealthResponse
	require.Eventually(t, func() bool {
		r, err := http.Get(url + api.PathHealth)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		return json.NewDecoder(r.Body).Decode(&health) == nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "cloud", health.ReplicaID)

	stream, err := ws.Dial(context.Background(), url, auth.NewTokenSource(testAuth, "edge"), replicatest.Logger())
	require.NoError(t, err)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream was not closed on shutdown")
	}
}
