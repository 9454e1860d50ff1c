package responder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/lease"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/replica/replicatest"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/transport"
	"github.com/iudanet/edgesync/pkg/api"
)

type fixture struct {
	edge   *replica.Replica
	cloud  *replica.Replica
	resp   *Responder
	leases *lease.Local
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		edge:   replicatest.New(t, "edge", storage.BackendBolt),
		cloud:  replicatest.New(t, "cloud", storage.BackendSQLite),
		leases: lease.NewLocal(),
		now:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.resp = New(f.cloud, f.leases, DefaultConfig(), replicatest.Logger())
	f.resp.now = func() time.Time { return f.now }
	return f
}

func edgeCtx() context.Context {
	return auth.WithPeer(context.Background(), "edge")
}

func (f *fixture) negotiate(t *testing.T, sessionID string) *api.NegotiateResponse {
	t.Helper()
	vv, err := f.edge.Store().VersionVector(context.Background())
	require.NoError(t, err)

	resp, err := f.resp.Negotiate(edgeCtx(), &api.NegotiateRequest{
		SessionID: sessionID,
		ReplicaID: "edge",
		Vector:    transport.FromVector(vv),
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) edgeOps(t *testing.T) []api.Operation {
	t.Helper()
	ops, err := f.edge.Store().Pending(context.Background())
	require.NoError(t, err)
	return transport.ToWireOps(ops)
}

func TestNegotiate_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.resp.Negotiate(context.Background(), &api.NegotiateRequest{SessionID: "s1", ReplicaID: "edge"})
	assert.ErrorIs(t, err, transport.ErrUnauthorized)

	_, err = f.resp.Negotiate(edgeCtx(), &api.NegotiateRequest{SessionID: "s1", ReplicaID: "someone"})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)

	_, err = f.resp.Negotiate(edgeCtx(), &api.NegotiateRequest{ReplicaID: "edge"})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)

	// пир утверждает, что видел операции cloud, которых не существует
	_, err = f.resp.Negotiate(edgeCtx(), &api.NegotiateRequest{
		SessionID: "s1", ReplicaID: "edge", Vector: map[string]uint64{"cloud": 5},
	})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)
}

func TestNegotiate_OneSessionPerPeer(t *testing.T) {
	f := newFixture(t)

	f.negotiate(t, "s1")

	_, err := f.resp.Negotiate(edgeCtx(), &api.NegotiateRequest{SessionID: "s2", ReplicaID: "edge"})
	assert.ErrorIs(t, err, syncerr.ErrSessionBusy)

	// повтор той же сессии допустим
	f.negotiate(t, "s1")
	assert.Equal(t, 1, f.resp.Active())

	// простаивающая сессия вытесняется
	f.now = f.now.Add(DefaultConfig().SessionTTL + time.Second)
	f.negotiate(t, "s2")
	assert.Equal(t, 1, f.resp.Active())
}

func TestPush_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cloud.Put(ctx, replicatest.Notes, "a", []byte("x"))
	require.NoError(t, err)
	foreign, err := f.cloud.Store().Pending(ctx)
	require.NoError(t, err)

	f.negotiate(t, "s1")
	_, err = f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: "s1", Operations: transport.ToWireOps(foreign)})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)

	_, err = f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: "other"})
	assert.ErrorIs(t, err, transport.ErrNoSession)
}

func TestPull_Batches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := f.cloud.Put(ctx, replicatest.Notes, id, []byte("value-"+id))
		require.NoError(t, err)
	}

	resp := f.negotiate(t, "s1")
	assert.Equal(t, 5, resp.Pending)

	var (
		got    []string
		cursor int
	)
	for i := 0; i < 10; i++ {
		batch, err := f.resp.Pull(edgeCtx(), &api.PullRequest{SessionID: "s1", After: cursor, Limit: 2})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(batch.Operations), 2)
		for _, op := range batch.Operations {
			got = append(got, op.ItemID)
		}
		cursor = batch.Next
		if batch.Done {
			break
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	// ограничение объема все равно отдает хотя бы одну операцию
	batch, err := f.resp.Pull(edgeCtx(), &api.PullRequest{SessionID: "s1", After: 0, MaxBytes: 1})
	require.NoError(t, err)
	assert.Len(t, batch.Operations, 1)
	assert.False(t, batch.Done)

	_, err = f.resp.Pull(edgeCtx(), &api.PullRequest{SessionID: "s1", After: 6})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)
}

func TestCommit_AppliesStagedAndCompacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.edge.Put(ctx, replicatest.Counters, "visits", []byte("2"))
	require.NoError(t, err)
	_, err = f.cloud.Put(ctx, replicatest.Counters, "visits", []byte("3"))
	require.NoError(t, err)

	f.negotiate(t, "s1")
	pushed, err := f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: "s1", Operations: f.edgeOps(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, pushed.Accepted)

	pulled, err := f.resp.Pull(edgeCtx(), &api.PullRequest{SessionID: "s1"})
	require.NoError(t, err)
	inbound, err := transport.FromWireOps(pulled.Operations, "cloud")
	require.NoError(t, err)

	// инициатор фиксирует у себя
	snap, err := f.edge.Store().Snapshot(ctx)
	require.NoError(t, err)
	_, err = f.edge.Apply(ctx, snap.Unapplied(), inbound)
	require.NoError(t, err)
	edgeVV, err := f.edge.Store().VersionVector(ctx)
	require.NoError(t, err)

	commit, err := f.resp.Commit(edgeCtx(), &api.CommitRequest{
		SessionID: "s1",
		Vector:    transport.FromVector(edgeVV),
		Received:  len(inbound),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, commit.Applied)
	assert.Equal(t, 1, commit.Conflicts)
	assert.Equal(t, 1, commit.Compacted)
	assert.Equal(t, uint64(1), commit.Vector["edge"])
	assert.Equal(t, 0, f.resp.Active())

	replicatest.RequireConverged(t, f.edge, f.cloud)
	value, _, err := f.cloud.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, "5", string(value))

	pending, err := f.cloud.Store().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	recorded, err := f.cloud.Store().PeerVector(ctx, "edge")
	require.NoError(t, err)
	assert.Equal(t, edgeVV, recorded)
}

func TestCommit_StrongRequiresLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.edge.Put(ctx, replicatest.Orders, "order-1", []byte("qty=1"))
	require.NoError(t, err)

	f.negotiate(t, "s1")
	_, err = f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: "s1", Operations: f.edgeOps(t)})
	require.NoError(t, err)

	_, err = f.resp.Commit(edgeCtx(), &api.CommitRequest{SessionID: "s1"})
	require.ErrorIs(t, err, lease.ErrNotHeld)

	// staging сохранился, сессия продолжается после получения аренды
	l, err := f.resp.AcquireLease(edgeCtx(), &api.LeaseRequest{Key: replicatest.Orders, Holder: "edge", TTLSeconds: 30})
	require.NoError(t, err)

	commit, err := f.resp.Commit(edgeCtx(), &api.CommitRequest{
		SessionID:   "s1",
		LeaseTokens: map[string]string{replicatest.Orders: l.Token},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, commit.Applied)

	require.NoError(t, f.resp.ReleaseLease(edgeCtx(), &api.LeaseRequest{Key: replicatest.Orders, Holder: "edge", Token: l.Token}))

	_, err = f.resp.AcquireLease(edgeCtx(), &api.LeaseRequest{Key: replicatest.Orders, Holder: "cloud"})
	assert.ErrorIs(t, err, syncerr.ErrProtocol)
}

// exchange проводит сессию инициатора целиком: push, pull, фиксация у себя, commit.
func (f *fixture) exchange(t *testing.T, sessionID string) *api.CommitResponse {
	t.Helper()
	ctx := context.Background()

	f.negotiate(t, sessionID)
	_, err := f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: sessionID, Operations: f.edgeOps(t)})
	require.NoError(t, err)

	pulled, err := f.resp.Pull(edgeCtx(), &api.PullRequest{SessionID: sessionID})
	require.NoError(t, err)
	require.True(t, pulled.Done)
	inbound, err := transport.FromWireOps(pulled.Operations, "cloud")
	require.NoError(t, err)

	snap, err := f.edge.Store().Snapshot(ctx)
	require.NoError(t, err)
	_, err = f.edge.Apply(ctx, snap.Unapplied(), inbound)
	require.NoError(t, err)
	edgeVV, err := f.edge.Store().VersionVector(ctx)
	require.NoError(t, err)

	commit, err := f.resp.Commit(edgeCtx(), &api.CommitRequest{
		SessionID: sessionID,
		Vector:    transport.FromVector(edgeVV),
		Received:  len(inbound),
	})
	require.NoError(t, err)
	return commit
}

func TestCommit_WritesAfterNegotiateWaitForNextSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.edge.Put(ctx, replicatest.Counters, "visits", []byte("2"))
	require.NoError(t, err)
	_, err = f.cloud.Put(ctx, replicatest.Counters, "visits", []byte("1"))
	require.NoError(t, err)

	f.negotiate(t, "s1")
	_, err = f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: "s1", Operations: f.edgeOps(t)})
	require.NoError(t, err)
	pulled, err := f.resp.Pull(edgeCtx(), &api.PullRequest{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, pulled.Operations, 1)

	// запись облака между Pull и Commit инициатор не видел
	_, err = f.cloud.Delete(ctx, "visits")
	require.NoError(t, err)

	inbound, err := transport.FromWireOps(pulled.Operations, "cloud")
	require.NoError(t, err)
	snap, err := f.edge.Store().Snapshot(ctx)
	require.NoError(t, err)
	_, err = f.edge.Apply(ctx, snap.Unapplied(), inbound)
	require.NoError(t, err)
	edgeVV, err := f.edge.Store().VersionVector(ctx)
	require.NoError(t, err)

	commit, err := f.resp.Commit(edgeCtx(), &api.CommitRequest{SessionID: "s1", Vector: transport.FromVector(edgeVV)})
	require.NoError(t, err)
	assert.Equal(t, 2, commit.Applied)

	// фиксация совпадает с тем, что применил инициатор
	replicatest.RequireConverged(t, f.edge, f.cloud)
	item, err := f.cloud.Store().Item(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, "3", string(item.Value))

	unapplied, err := f.cloud.Store().Unapplied(ctx, "visits")
	require.NoError(t, err)
	require.Len(t, unapplied, 1)
	assert.Equal(t, models.OpDelete, unapplied[0].Kind)

	// удаление доходит следующей сессией, реплики сходятся
	commit = f.exchange(t, "s2")
	assert.Equal(t, 1, commit.Applied)
	replicatest.RequireConverged(t, f.edge, f.cloud)

	item, err = f.edge.Store().Item(ctx, "visits")
	require.NoError(t, err)
	assert.True(t, item.Tombstone)
}

func TestCommit_StrongWriteAfterNegotiateIsNotApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.negotiate(t, "s1")
	_, err := f.cloud.Put(ctx, replicatest.Orders, "order-9", []byte("qty=9"))
	require.NoError(t, err)

	commit, err := f.resp.Commit(edgeCtx(), &api.CommitRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, commit.Applied)

	_, err = f.cloud.Store().Item(ctx, "order-9")
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
	unapplied, err := f.cloud.Store().Unapplied(ctx, "order-9")
	require.NoError(t, err)
	assert.Len(t, unapplied, 1)
}

func TestAbort_DiscardsStaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.edge.Put(ctx, replicatest.Notes, "a", []byte("x"))
	require.NoError(t, err)

	before, err := f.cloud.Store().Dump(ctx)
	require.NoError(t, err)

	f.negotiate(t, "s1")
	_, err = f.resp.Push(edgeCtx(), &api.PushRequest{SessionID: "s1", Operations: f.edgeOps(t)})
	require.NoError(t, err)

	require.NoError(t, f.resp.Abort(edgeCtx(), &api.AbortRequest{SessionID: "s1", Reason: "test"}))
	require.NoError(t, f.resp.Abort(edgeCtx(), &api.AbortRequest{SessionID: "s1"}), "abort is idempotent")

	_, err = f.resp.Commit(edgeCtx(), &api.CommitRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, transport.ErrNoSession)

	after, err := f.cloud.Store().Dump(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)

	f.negotiate(t, "s1")
	assert.Equal(t, 0, f.resp.Sweep())

	f.now = f.now.Add(time.Hour)
	assert.Equal(t, 1, f.resp.Sweep())
	assert.Equal(t, 0, f.resp.Active())
}
