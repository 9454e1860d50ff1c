package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/predict"
	"github.com/iudanet/edgesync/internal/session"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/syncerr"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type sourceFunc func(ctx context.Context) (*storage.PendingStats, error)

func (fn sourceFunc) PendingStats(ctx context.Context) (*storage.PendingStats, error) {
	return fn(ctx)
}

type fakeRunner struct {
	outcomes chan<- session.Outcome
	result   session.Outcome
	requests []session.Request
	mu       sync.Mutex
	busy     bool
}

func (f *fakeRunner) Sync(_ context.Context, req session.Request) (*session.Outcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	out, busy := f.result, f.busy
	f.mu.Unlock()

	if busy {
		return nil, syncerr.ErrSessionBusy
	}
	out.Reason = req.Reason
	f.outcomes <- out
	return &out, out.Err
}

func (f *fakeRunner) Requests() []session.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Request(nil), f.requests...)
}

func testRegistry(t *testing.T) *adapter.Registry {
	t.Helper()
	reg, err := adapter.NewRegistry(nil)
	require.NoError(t, err)
	require.NoError(t, reg.Register(&adapter.Category{
		Name:               "telemetry",
		Consistency:        models.ConsistencyEventual,
		Priority:           3,
		StalenessTolerance: 5 * time.Second,
	}))
	return reg
}

// staleJournal журнал с одной операцией, просроченной по дедлайну.
func staleJournal(now func() time.Time) sourceFunc {
	return func(context.Context) (*storage.PendingStats, error) {
		return pending(map[string]*storage.CategoryStats{
			"telemetry": {Depth: 1, Bytes: 10, Oldest: now().Add(-6 * time.Second)},
		}), nil
	}
}

// fakeNetwork отдает заданные последний и средний снимки.
type fakeNetwork struct {
	latest  models.NetworkSample
	average models.NetworkSample
	windows []time.Duration
	known   bool
}

func (n *fakeNetwork) Latest() (models.NetworkSample, bool) {
	return n.latest, n.known
}

func (n *fakeNetwork) Average(window time.Duration) (models.NetworkSample, bool) {
	n.windows = append(n.windows, window)
	return n.average, n.known
}

type fixture struct {
	sched   *Scheduler
	runner  *fakeRunner
	network *fakeNetwork
	now     time.Time
	mu      sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{now: testNow, runner: &fakeRunner{}, network: &fakeNetwork{}}

	f.sched = New(cfg, staleJournal(f.clock), testRegistry(t), f.runner,
		f.network, predict.Constant(0), setupTestLogger())
	f.sched.now = f.clock
	f.runner.outcomes = f.sched.Outcomes()
	return f
}

func TestScheduler_StalenessTriggersWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	require.NoError(t, f.sched.evaluate(ctx, false))
	out := <-f.sched.outcomes
	require.NoError(t, f.sched.consume(ctx, out))

	reqs := f.runner.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, string(models.ReasonStaleness), reqs[0].Reason)
	assert.Equal(t, DefaultConfig().MinBatchBytes, reqs[0].Budget.MaxBytes)

	decisions := f.sched.Decisions()
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].ScoreAvailable)
	assert.Equal(t, "telemetry", decisions[0].Category)
}

func TestScheduler_DebounceAndExplicitBypass(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MinInterval = time.Second
	f := newFixture(t, cfg)

	require.NoError(t, f.sched.evaluate(ctx, false))
	require.NoError(t, f.sched.consume(ctx, <-f.sched.outcomes))

	// пустая сессия удваивает интервал
	assert.Equal(t, 2*time.Second, f.sched.Interval())

	f.advance(500 * time.Millisecond)
	require.NoError(t, f.sched.evaluate(ctx, false))
	decisions := f.sched.Decisions()
	last := decisions[len(decisions)-1]
	assert.Equal(t, models.ReasonDebounce, last.Reason)
	assert.False(t, last.Trigger)
	assert.Len(t, f.runner.Requests(), 1)

	require.NoError(t, f.sched.evaluate(ctx, true))
	require.NoError(t, f.sched.consume(ctx, <-f.sched.outcomes))
	require.Len(t, f.runner.Requests(), 2)
	assert.Equal(t, string(models.ReasonExplicit), f.runner.Requests()[1].Reason)

	f.advance(4 * time.Second)
	require.NoError(t, f.sched.evaluate(ctx, false))
	require.NoError(t, f.sched.consume(ctx, <-f.sched.outcomes))
	assert.Len(t, f.runner.Requests(), 3)
}

func TestScheduler_BackoffIsMonotonicUpToCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = time.Second
	cfg.MaxInterval = 10 * time.Second
	f := newFixture(t, cfg)

	var prev time.Duration
	for i := 0; i < 8; i++ {
		f.sched.record(session.Outcome{Err: syncerr.Network("push", errors.New("unreachable"))})
		cur := f.sched.Interval()
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur, cfg.MaxInterval)
		prev = cur
	}
	assert.Equal(t, cfg.MaxInterval, prev)

	f.sched.record(session.Outcome{Pushed: 3, Committed: true})
	assert.Equal(t, cfg.MinInterval, f.sched.Interval())
}

func TestScheduler_BudgetWindow(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.BandwidthBudget = 100
	cfg.BudgetWindow = time.Minute
	f := newFixture(t, cfg)

	assert.Equal(t, int64(100), f.sched.remainingBudget(f.clock()))
	f.sched.record(session.Outcome{BytesOut: 70, BytesIn: 50, Pushed: 1, Committed: true})
	assert.Zero(t, f.sched.remainingBudget(f.clock()))

	f.advance(time.Minute)
	assert.Equal(t, int64(100), f.sched.remainingBudget(f.clock()))

	// жесткие правила бюджет не учитывают
	f.sched.record(session.Outcome{BytesOut: 1000})
	require.NoError(t, f.sched.evaluate(ctx, false))
	require.NoError(t, f.sched.consume(ctx, <-f.sched.outcomes))
}

func TestScheduler_Stats(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	f.sched.record(session.Outcome{StartedAt: testNow, FinishedAt: testNow.Add(2 * time.Second), Pushed: 1, Committed: true})
	f.sched.record(session.Outcome{StartedAt: testNow, FinishedAt: testNow.Add(4 * time.Second), Err: syncerr.ErrTimeout})

	st := f.sched.Stats()
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 1, st.Successes)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-9)
	assert.Equal(t, 3*time.Second, st.AvgDuration)
	assert.Equal(t, testNow.Add(2*time.Second), st.LastSuccess)
	assert.Equal(t, 1, st.Backoff)
	assert.False(t, st.Running)
}

func TestScheduler_RunStopsOnStorageFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tick = time.Hour
	f := newFixture(t, cfg)
	f.runner.result = session.Outcome{Err: syncerr.Storage("commit", errors.New("disk full"))}

	done := make(chan error, 1)
	go func() { done <- f.sched.Run(context.Background()) }()

	f.sched.Request()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, syncerr.ErrStorage)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunPublishesBusyOutcome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tick = time.Hour
	f := newFixture(t, cfg)
	f.runner.busy = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()

	f.sched.Notify()

	require.Eventually(t, func() bool {
		return f.sched.Stats().Sessions == 1
	}, 5*time.Second, 10*time.Millisecond)

	st := f.sched.Stats()
	assert.Zero(t, st.Successes)
	assert.False(t, st.Running)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_StalenessWaitsOnlyMinInterval(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MinInterval = time.Second
	cfg.MaxInterval = time.Minute
	f := newFixture(t, cfg)

	require.NoError(t, f.sched.evaluate(ctx, false))
	require.NoError(t, f.sched.consume(ctx, <-f.sched.outcomes))
	for i := 0; i < 10; i++ {
		f.sched.record(session.Outcome{Err: syncerr.Network("push", errors.New("unreachable"))})
	}
	require.Equal(t, cfg.MaxInterval, f.sched.Interval())

	f.advance(2 * time.Second)
	require.NoError(t, f.sched.evaluate(ctx, false))
	require.NoError(t, f.sched.consume(ctx, <-f.sched.outcomes))

	reqs := f.runner.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, string(models.ReasonStaleness), reqs[1].Reason)
}

func TestScheduler_RefreshPullsIntoIdleReplica(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	f := &fixture{now: testNow, runner: &fakeRunner{}, network: &fakeNetwork{}}
	empty := sourceFunc(func(context.Context) (*storage.PendingStats, error) {
		return pending(nil), nil
	})
	f.sched = New(cfg, empty, testRegistry(t), f.runner, f.network, predict.Constant(0), setupTestLogger())
	f.sched.now = f.clock
	f.runner.outcomes = f.sched.Outcomes()
	f.runner.result = session.Outcome{Pulled: 2, Committed: true}

	f.sched.started = f.clock()
	require.NoError(t, f.sched.evaluate(ctx, false))
	assert.Empty(t, f.runner.Requests(), "tolerance not exceeded yet")

	// наименьший допуск устаревания категорий 5s
	f.advance(6 * time.Second)
	require.NoError(t, f.sched.evaluate(ctx, false))
	out := <-f.sched.outcomes
	require.NoError(t, f.sched.consume(ctx, out))

	reqs := f.runner.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, string(models.ReasonRefresh), reqs[0].Reason)

	// после успешной сессии отсчет идет от нее
	f.sched.mu.Lock()
	f.sched.lastSuccess = f.clock()
	f.sched.mu.Unlock()
	f.advance(time.Second)
	require.NoError(t, f.sched.evaluate(ctx, false))
	assert.Len(t, f.runner.Requests(), 1)
}

func TestScheduler_InputUsesSmoothedSample(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.SmoothingWindow = 30 * time.Second

	tests := []struct {
		name       string
		window     time.Duration
		latestAge  time.Duration
		wantRTT    time.Duration
		wantFresh  bool
		wantWindow bool
	}{
		{name: "average over window", window: 30 * time.Second, wantRTT: 40 * time.Millisecond, wantFresh: true, wantWindow: true},
		{name: "smoothing disabled", window: 0, wantRTT: 900 * time.Millisecond, wantFresh: true},
		{name: "stale latest sample", window: 30 * time.Second, latestAge: 2 * time.Minute, wantRTT: 900 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.SmoothingWindow = tt.window
			f := newFixture(t, c)
			f.network.known = true
			f.network.latest = models.NetworkSample{At: testNow.Add(-tt.latestAge), RTT: 900 * time.Millisecond, Stability: 0.1}
			f.network.average = models.NetworkSample{At: testNow, RTT: 40 * time.Millisecond, Stability: 0.9}

			in, err := f.sched.input(ctx, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFresh, in.SampleFresh)
			assert.Equal(t, tt.wantRTT, in.Sample.RTT)
			if tt.wantWindow {
				assert.Equal(t, []time.Duration{tt.window}, f.network.windows)
			} else {
				assert.Empty(t, f.network.windows)
			}
		})
	}
}
