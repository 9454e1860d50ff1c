// Package predict scores how useful a sync session would be right now.
// Scores are in [0,1]; the scheduler treats an error as a missing score.
package predict

import (
	"errors"
	"math"
	"time"
)

// ErrNoScore оценка недоступна (нет данных о канале)
var ErrNoScore = errors.New("utility score unavailable")

// Features входные данные оценки.
type Features struct {
	OldestAge     time.Duration // OldestAge возраст самой старой неотправленной операции
	SinceLastSync time.Duration // SinceLastSync время с последней успешной сессии
	RTT           time.Duration
	PendingBytes  int64
	Bandwidth     float64 // Bandwidth байт/с
	LossRate      float64
	Stability     float64
	Quality       float64 // Quality оценка канала 0..100
	QueueDepth    int
	MaxPriority   int  // MaxPriority наибольший приоритет среди ожидающих категорий
	NetworkKnown  bool // NetworkKnown есть свежее измерение канала
}

// Predictor оценивает полезность сессии.
//
//go:generate moq -out predictor_mock.go . Predictor
type Predictor interface {
	Predict(f Features) (float64, error)
}

// Constant возвращает одно и то же значение.
type Constant float64

func (c Constant) Predict(Features) (float64, error) {
	return Clamp(float64(c)), nil
}

// Func адаптирует функцию к Predictor.
type Func func(Features) (float64, error)

func (fn Func) Predict(f Features) (float64, error) {
	v, err := fn(f)
	if err != nil {
		return 0, err
	}
	return Clamp(v), nil
}

// Weights веса эвристики; сумма нормируется.
type Weights struct {
	Latency   float64
	Bandwidth float64
	Priority  float64
	Size      float64
}

// DefaultWeights latency 0.4, bandwidth 0.3, priority 0.2, size 0.1.
func DefaultWeights() Weights {
	return Weights{Latency: 0.4, Bandwidth: 0.3, Priority: 0.2, Size: 0.1}
}

// Heuristic оценка по качеству канала, приоритету и объему данных.
type Heuristic struct {
	Weights Weights
	// LargeBatch объем, при котором вклад размера обнуляется
	LargeBatch int64
}

// NewHeuristic создает эвристику с весами по умолчанию.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		Weights:    DefaultWeights(),
		LargeBatch: 1 << 20,
	}
}

// Predict возвращает ErrNoScore без свежего измерения канала.
func (h *Heuristic) Predict(f Features) (float64, error) {
	if !f.NetworkKnown {
		return 0, ErrNoScore
	}

	w := h.Weights
	total := w.Latency + w.Bandwidth + w.Priority + w.Size
	if total <= 0 {
		w, total = DefaultWeights(), 1
	}

	latencyMS := float64(f.RTT) / float64(time.Millisecond)
	latency := math.Max(0, 1-latencyMS/500) * (1 - f.LossRate)
	mbps := f.Bandwidth * 8 / (1024 * 1024)
	bandwidth := math.Min(1, mbps/10)
	priority := float64(f.MaxPriority) / 10

	size := 1.0
	if h.LargeBatch > 0 {
		size = 1 - math.Min(1, float64(f.PendingBytes)/float64(h.LargeBatch))
	}

	score := (latency*w.Latency + bandwidth*w.Bandwidth + priority*w.Priority + size*w.Size) / total
	return Clamp(score), nil
}

// Clamp ограничивает v диапазоном [0,1].
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
