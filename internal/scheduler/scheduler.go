// Package scheduler decides when the edge replica opens a sync session.
// It runs an event loop woken by journal appends, network samples, a timer
// and explicit requests, and learns from session outcomes delivered on a
// channel.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/netmon"
	"github.com/iudanet/edgesync/internal/predict"
	"github.com/iudanet/edgesync/internal/session"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/syncerr"
)

// Config параметры планировщика
type Config struct {
	MinInterval       time.Duration // MinInterval минимальный интервал между сессиями
	MaxInterval       time.Duration // MaxInterval потолок интервала с учетом backoff
	Tick              time.Duration // Tick период пробуждения по таймеру
	ScoreMaxAge       time.Duration // ScoreMaxAge возраст снимка сети, после которого оценка не используется
	SmoothingWindow   time.Duration // SmoothingWindow окно усреднения измерений сети, 0 только последний снимок
	CostHorizon       time.Duration // CostHorizon время передачи, соответствующее максимальной стоимости
	BudgetWindow      time.Duration // BudgetWindow окно бюджета трафика
	BatchWindow       time.Duration // BatchWindow целевая длительность передачи одного пакета
	BandwidthBudget   int64         // BandwidthBudget байт на окно, 0 без ограничения
	MinBatchBytes     int64         // MinBatchBytes нижняя граница объема пакета
	Threshold         float64       // Threshold порог benefit - cost
	BackoffFactor     float64       // BackoffFactor множитель интервала после неудачной или пустой сессии
	BackpressureLimit int           // BackpressureLimit глубина журнала для принудительной сессии
	ResetThreshold    int           // ResetThreshold операций в сессии для сброса backoff
	PriorityFastPath  int           // PriorityFastPath приоритет категории, синхронизируемой сразу
	BatchSize         int           // BatchSize операций в пакете
	StatsWindow       int           // StatsWindow число сессий для статистики
	DecisionHistory   int           // DecisionHistory число хранимых решений
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		MinInterval:       time.Second,
		MaxInterval:       5 * time.Minute,
		Tick:              5 * time.Second,
		ScoreMaxAge:       time.Minute,
		SmoothingWindow:   30 * time.Second,
		CostHorizon:       30 * time.Second,
		BudgetWindow:      time.Hour,
		BatchWindow:       2 * time.Second,
		MinBatchBytes:     64 << 10,
		Threshold:         0.1,
		BackoffFactor:     2,
		BackpressureLimit: 1000,
		ResetThreshold:    1,
		PriorityFastPath:  9,
		BatchSize:         500,
		StatsWindow:       50,
		DecisionHistory:   100,
	}
}

// Runner запускает сессию. Итог сессии, если она началась, Runner
// публикует в канал Scheduler.Outcomes (см. session.WithOutcomes).
type Runner interface {
	Sync(ctx context.Context, req session.Request) (*session.Outcome, error)
}

// Network оценка канала к пиру.
type Network interface {
	// Latest возвращает последний снимок; false, если измерений не было.
	Latest() (models.NetworkSample, bool)
	// Average возвращает средний снимок за окно.
	Average(window time.Duration) (models.NetworkSample, bool)
}

// Source статистика журнала.
type Source interface {
	PendingStats(ctx context.Context) (*storage.PendingStats, error)
}

// Stats статистика работы планировщика.
type Stats struct {
	LastSuccess time.Time     `json:"last_success"`
	AvgDuration time.Duration `json:"avg_duration"`
	Interval    time.Duration `json:"interval"`
	BudgetUsed  int64         `json:"budget_used"`
	SuccessRate float64       `json:"success_rate"`
	Sessions    int           `json:"sessions"`
	Successes   int           `json:"successes"`
	QueueDepth  int           `json:"queue_depth"`
	Backoff     int           `json:"backoff"`
	Running     bool          `json:"running"`
}

// Scheduler адаптивный планировщик сессий.
type Scheduler struct {
	lastStart       time.Time
	lastSuccess     time.Time
	started         time.Time
	budgetStart     time.Time
	source          Source
	predictor       predict.Predictor
	runner          Runner
	registry        *adapter.Registry
	network         Network
	logger          *slog.Logger
	now             func() time.Time
	outcomes        chan session.Outcome
	wake            chan struct{}
	explicit        chan struct{}
	decisions       *ring[models.SchedulerDecision]
	history         *ring[session.Outcome]
	cfg             Config
	budgetUsed      int64
	streak          int
	lastDepth       int
	mu              sync.Mutex
	running         bool
	pendingExplicit bool
}

// New создает Scheduler. network может быть nil: тогда работают только
// жесткие правила.
func New(cfg Config, source Source, registry *adapter.Registry, runner Runner,
	network Network, predictor predict.Predictor, logger *slog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BudgetWindow <= 0 {
		cfg.BudgetWindow = def.BudgetWindow
	}
	if predictor == nil {
		predictor = predict.NewHeuristic()
	}

	return &Scheduler{
		source:    source,
		registry:  registry,
		runner:    runner,
		network:   network,
		predictor: predictor,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
		outcomes:  make(chan session.Outcome, 1),
		wake:      make(chan struct{}, 1),
		explicit:  make(chan struct{}, 1),
		decisions: newRing[models.SchedulerDecision](cfg.DecisionHistory),
		history:   newRing[session.Outcome](cfg.StatsWindow),
	}
}

// Outcomes канал, в который Runner публикует итоги сессий.
func (s *Scheduler) Outcomes() chan<- session.Outcome {
	return s.outcomes
}

// Notify будит цикл (новая запись журнала, новое измерение сети).
// Не блокируется.
func (s *Scheduler) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Request запрашивает сессию в обход оценки и интервала.
func (s *Scheduler) Request() {
	select {
	case s.explicit <- struct{}{}:
	default:
	}
}

// Run выполняет цикл планировщика до отмены ctx. Возвращает ошибку,
// только если сессия завершилась сбоем хранилища.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.mu.Lock()
	s.started = s.now()
	s.mu.Unlock()

	s.logger.Info("Scheduler started", "tick", s.cfg.Tick, "min_interval", s.cfg.MinInterval)

	for {
		var err error
		select {
		case <-ctx.Done():
			s.drain(cancel)
			s.logger.Info("Scheduler stopped")
			return nil
		case <-s.wake:
			err = s.evaluate(ctx, false)
		case <-ticker.C:
			err = s.evaluate(ctx, false)
		case <-s.explicit:
			err = s.evaluate(ctx, true)
		case out := <-s.outcomes:
			err = s.consume(ctx, out)
		}
		if err != nil {
			s.drain(cancel)
			return err
		}
	}
}

// drain отменяет активную сессию и ждет ее итога; фиксация завершается.
func (s *Scheduler) drain(cancel context.CancelFunc) {
	cancel()

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running {
		out := <-s.outcomes
		s.record(out)
	}
}

// Evaluate выполняет одно решение вне цикла (для статуса и тестов).
func (s *Scheduler) Evaluate(ctx context.Context, explicit bool) (models.SchedulerDecision, error) {
	in, err := s.input(ctx, explicit)
	if err != nil {
		return models.SchedulerDecision{}, err
	}
	return Evaluate(s.cfg, in), nil
}

func (s *Scheduler) evaluate(ctx context.Context, explicit bool) error {
	s.mu.Lock()
	if s.running {
		if explicit {
			s.pendingExplicit = true
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	in, err := s.input(ctx, explicit)
	if err != nil {
		if syncerr.IsFatal(err) {
			return err
		}
		s.logger.Warn("Failed to evaluate sync trigger", "error", err)
		return nil
	}
	d := Evaluate(s.cfg, in)

	s.mu.Lock()
	s.lastDepth = d.QueueDepth
	if d.Trigger && !explicit && !s.lastStart.IsZero() {
		if wait := s.waitLocked(d.Reason) - in.Now.Sub(s.lastStart); wait > 0 {
			d.Trigger = false
			d.Reason = models.ReasonDebounce
			time.AfterFunc(wait, s.Notify)
		}
	}
	if d.Reason == models.ReasonBudgetExceeded {
		s.backoffLocked()
	}
	if d.QueueDepth > 0 || explicit || d.Trigger {
		s.decisions.push(d)
	}
	if d.Trigger {
		s.running = true
		s.lastStart = in.Now
	}
	s.mu.Unlock()

	if d.Trigger {
		s.start(ctx, d, in)
	}
	return nil
}

func (s *Scheduler) input(ctx context.Context, explicit bool) (Input, error) {
	now := s.now()
	stats, err := s.source.PendingStats(ctx)
	if err != nil {
		return Input{}, err
	}

	var (
		sample models.NetworkSample
		ok     bool
	)
	if s.network != nil {
		sample, ok = s.network.Latest()
	}
	fresh := ok && sample.Age(now) <= s.cfg.ScoreMaxAge
	if fresh && s.cfg.SmoothingWindow > 0 {
		// одиночный выброс измерения не меняет решение
		if avg, ok := s.network.Average(s.cfg.SmoothingWindow); ok {
			sample = avg
		}
	}

	s.mu.Lock()
	last := s.lastSuccess
	if last.IsZero() {
		last = s.started
	}
	s.mu.Unlock()

	in := Input{
		Now:             now,
		LastSync:        last,
		Pending:         stats,
		Categories:      s.registry.All(),
		Sample:          sample,
		SampleFresh:     fresh,
		Explicit:        explicit,
		BudgetRemaining: s.remainingBudget(now),
	}
	if fresh {
		score, err := s.predictor.Predict(s.features(in))
		if err == nil {
			in.Score, in.ScoreOK = score, true
		}
	}
	return in, nil
}

func (s *Scheduler) features(in Input) predict.Features {
	f := predict.Features{
		QueueDepth:   in.Pending.Depth,
		PendingBytes: in.Pending.Bytes,
		RTT:          in.Sample.RTT,
		Bandwidth:    in.Sample.Bandwidth,
		LossRate:     in.Sample.LossRate,
		Stability:    in.Sample.Stability,
		Quality:      netmon.QualityScore(in.Sample),
		NetworkKnown: in.SampleFresh,
	}
	if !in.Pending.Oldest.IsZero() {
		f.OldestAge = in.Now.Sub(in.Pending.Oldest)
	}
	for _, c := range in.Categories {
		if cs, ok := in.Pending.Categories[c.Name]; ok && cs.Depth > 0 && c.Priority > f.MaxPriority {
			f.MaxPriority = c.Priority
		}
	}

	s.mu.Lock()
	if !s.lastSuccess.IsZero() {
		f.SinceLastSync = in.Now.Sub(s.lastSuccess)
	}
	s.mu.Unlock()
	return f
}

func (s *Scheduler) start(ctx context.Context, d models.SchedulerDecision, in Input) {
	req := session.Request{
		Reason: string(d.Reason),
		Budget: session.Budget{
			BatchSize: s.cfg.BatchSize,
			MaxBytes:  s.batchBytes(in),
		},
	}

	s.logger.Debug("Sync triggered",
		"reason", d.Reason,
		"category", d.Category,
		"queue_depth", d.QueueDepth,
		"utility", d.Utility)

	go func() {
		started := s.now()
		out, err := s.runner.Sync(ctx, req)
		if out == nil {
			// сессия не началась; итог публикуем сами
			s.outcomes <- session.Outcome{
				StartedAt:  started,
				FinishedAt: s.now(),
				Err:        err,
				Reason:     req.Reason,
			}
		}
	}()
}

// batchBytes объем пакета по оценке полосы.
func (s *Scheduler) batchBytes(in Input) int64 {
	if !in.SampleFresh || in.Sample.Bandwidth <= 0 {
		return s.cfg.MinBatchBytes
	}
	n := int64(in.Sample.Bandwidth * s.cfg.BatchWindow.Seconds())
	if n < s.cfg.MinBatchBytes {
		return s.cfg.MinBatchBytes
	}
	return n
}

func (s *Scheduler) consume(ctx context.Context, out session.Outcome) error {
	s.record(out)

	s.mu.Lock()
	explicit := s.pendingExplicit
	s.pendingExplicit = false
	s.mu.Unlock()

	if out.Err != nil && syncerr.IsFatal(out.Err) {
		return fmt.Errorf("sync session failed: %w", out.Err)
	}
	if explicit {
		return s.evaluate(ctx, true)
	}
	return nil
}

// record учитывает итог сессии в статистике, бюджете и backoff.
func (s *Scheduler) record(out session.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.history.push(out)
	s.budgetUsed += out.BytesIn + out.BytesOut

	switch {
	case out.Err != nil:
		s.backoffLocked()
	case out.Pushed+out.Pulled >= s.cfg.ResetThreshold:
		s.streak = 0
	default:
		s.backoffLocked()
	}
	if out.Err == nil && out.Committed {
		s.lastSuccess = out.FinishedAt
	}

	s.logger.Debug("Session outcome recorded",
		"session_id", out.SessionID,
		"error", out.Err,
		"backoff", s.streak,
		"interval", s.intervalLocked())
}

// waitLocked минимальный интервал от прошлого запуска для решения с
// причиной reason. Дедлайн устаревания и переполнение журнала не ждут
// backoff, только MinInterval.
func (s *Scheduler) waitLocked(reason models.TriggerReason) time.Duration {
	switch reason {
	case models.ReasonStaleness, models.ReasonBackpressure:
		return s.cfg.MinInterval
	default:
		return s.intervalLocked()
	}
}

// backoffLocked увеличивает множитель, пока интервал не достиг потолка.
func (s *Scheduler) backoffLocked() {
	if s.intervalLocked() < s.cfg.MaxInterval {
		s.streak++
	}
}

// Interval возвращает текущий минимальный интервал между сессиями.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.intervalLocked()
}

func (s *Scheduler) intervalLocked() time.Duration {
	d := float64(s.cfg.MinInterval) * math.Pow(s.cfg.BackoffFactor, float64(s.streak))
	if d > float64(s.cfg.MaxInterval) {
		return s.cfg.MaxInterval
	}
	return time.Duration(d)
}

func (s *Scheduler) remainingBudget(now time.Time) int64 {
	if s.cfg.BandwidthBudget <= 0 {
		return -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budgetStart.IsZero() || now.Sub(s.budgetStart) >= s.cfg.BudgetWindow {
		s.budgetStart = now
		s.budgetUsed = 0
	}
	return max(0, s.cfg.BandwidthBudget-s.budgetUsed)
}

// Decisions возвращает последние решения от старых к новым.
func (s *Scheduler) Decisions() []models.SchedulerDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.decisions.list()
}

// Stats возвращает статистику за окно последних сессий.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		LastSuccess: s.lastSuccess,
		Interval:    s.intervalLocked(),
		BudgetUsed:  s.budgetUsed,
		QueueDepth:  s.lastDepth,
		Backoff:     s.streak,
		Running:     s.running,
	}

	var total time.Duration
	for _, out := range s.history.list() {
		st.Sessions++
		if out.Err == nil {
			st.Successes++
		}
		total += out.Duration()
	}
	if st.Sessions > 0 {
		st.SuccessRate = float64(st.Successes) / float64(st.Sessions)
		st.AvgDuration = total / time.Duration(st.Sessions)
	}
	return st
}
