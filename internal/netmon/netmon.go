// Package netmon keeps the current estimate of the link to the cloud
// replica. Samples are published as immutable snapshots so that readers
// never block the sampling goroutine.
package netmon

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/edgesync/internal/models"
)

// Sampler измеряет состояние канала.
//
//go:generate moq -out sampler_mock.go . Sampler
type Sampler interface {
	Sample(ctx context.Context) (models.NetworkSample, error)
}

// Estimate текущая оценка канала. Значение заменяется целиком.
type Estimate struct {
	p atomic.Pointer[models.NetworkSample]
}

// Load возвращает последний снимок; false, если измерений не было.
func (e *Estimate) Load() (models.NetworkSample, bool) {
	s := e.p.Load()
	if s == nil {
		return models.NetworkSample{}, false
	}
	return *s, true
}

// Store публикует новый снимок.
func (e *Estimate) Store(s models.NetworkSample) {
	e.p.Store(&s)
}

// UnknownQuality оценка качества при отсутствии измерений.
const UnknownQuality = 50.0

// QualityScore оценивает канал от 0 до 100 (больше лучше).
// Веса: задержка 0.4, полоса 0.3, потери 0.2, джиттер 0.1.
func QualityScore(s models.NetworkSample) float64 {
	latencyMS := float64(s.RTT) / float64(time.Millisecond)
	jitterMS := float64(s.Jitter) / float64(time.Millisecond)
	mbps := s.Bandwidth * 8 / (1024 * 1024)
	lossPct := s.LossRate * 100

	latency := math.Max(0, 100-latencyMS/5)
	bandwidth := math.Min(100, mbps*10)
	loss := math.Max(0, 100-lossPct*10)
	jitter := math.Max(0, 100-jitterMS*2)

	score := latency*0.4 + bandwidth*0.3 + loss*0.2 + jitter*0.1
	return math.Min(100, math.Max(0, score))
}

// Config настройки мониторинга
type Config struct {
	Interval time.Duration // Interval период измерений
	History  int           // History число хранимых снимков
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		History:  100,
	}
}

// Monitor периодически опрашивает Sampler и публикует оценку.
type Monitor struct {
	sampler  Sampler
	logger   *slog.Logger
	now      func() time.Time
	estimate Estimate
	history  []models.NetworkSample
	hooks    []func(models.NetworkSample)
	cfg      Config
	mu       sync.Mutex
}

// NewMonitor создает Monitor.
func NewMonitor(sampler Sampler, cfg Config, logger *slog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.History <= 0 {
		cfg.History = def.History
	}
	return &Monitor{
		sampler: sampler,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Latest возвращает последний опубликованный снимок.
func (m *Monitor) Latest() (models.NetworkSample, bool) {
	return m.estimate.Load()
}

// OnSample регистрирует функцию, вызываемую после каждого измерения.
// Функция не должна блокироваться.
func (m *Monitor) OnSample(fn func(models.NetworkSample)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, fn)
}

// Run измеряет канал до отмены ctx.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.SampleOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("Network sample failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SampleOnce выполняет одно измерение и публикует его.
func (m *Monitor) SampleOnce(ctx context.Context) (models.NetworkSample, error) {
	s, err := m.sampler.Sample(ctx)
	if err != nil {
		return models.NetworkSample{}, err
	}
	if s.At.IsZero() {
		s.At = m.now()
	}
	m.Record(s)
	return s, nil
}

// Record добавляет снимок в историю и публикует его.
func (m *Monitor) Record(s models.NetworkSample) {
	m.mu.Lock()
	m.history = append(m.history, s)
	if len(m.history) > m.cfg.History {
		m.history = m.history[len(m.history)-m.cfg.History:]
	}
	hooks := append(([]func(models.NetworkSample))(nil), m.hooks...)
	m.mu.Unlock()

	m.estimate.Store(s)

	m.logger.Debug("Network sample",
		"rtt", s.RTT,
		"bandwidth", s.Bandwidth,
		"loss_rate", s.LossRate,
		"stability", s.Stability)

	for _, fn := range hooks {
		fn(s)
	}
}

// Average возвращает средний снимок за окно window. Если в окне нет
// измерений, возвращается последнее.
func (m *Monitor) Average(window time.Duration) (models.NetworkSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return models.NetworkSample{}, false
	}

	cutoff := m.now().Add(-window)
	var (
		sum models.NetworkSample
		n   int
	)
	for _, s := range m.history {
		if s.At.Before(cutoff) {
			continue
		}
		sum.RTT += s.RTT
		sum.Jitter += s.Jitter
		sum.Bandwidth += s.Bandwidth
		sum.LossRate += s.LossRate
		sum.Stability += s.Stability
		n++
	}
	if n == 0 {
		return m.history[len(m.history)-1], true
	}

	return models.NetworkSample{
		At:        m.now(),
		RTT:       sum.RTT / time.Duration(n),
		Jitter:    sum.Jitter / time.Duration(n),
		Bandwidth: sum.Bandwidth / float64(n),
		LossRate:  sum.LossRate / float64(n),
		Stability: sum.Stability / float64(n),
	}, true
}

// Quality возвращает оценку качества по последнему снимку.
func (m *Monitor) Quality() float64 {
	s, ok := m.estimate.Load()
	if !ok {
		return UnknownQuality
	}
	return QualityScore(s)
}
