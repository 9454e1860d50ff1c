package scheduler

import (
	"math"
	"time"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/storage"
)

// Input данные одного решения.
type Input struct {
	Now        time.Time
	Pending    *storage.PendingStats
	Categories []*adapter.Category
	Sample     models.NetworkSample
	LastSync   time.Time // LastSync последняя успешная сессия (или старт цикла)
	// BudgetRemaining остаток бюджета окна в байтах; отрицательное значение
	// означает отсутствие ограничения
	BudgetRemaining int64
	Score           float64
	SampleFresh     bool
	ScoreOK         bool
	Explicit        bool
}

// Evaluate принимает решение о запуске сессии. Функция чистая.
//
// Порядок правил: явный запрос, приоритетные и строгие категории,
// дедлайн устаревания, переполнение журнала, затем полезность.
// Жесткие правила не зависят от оценки и бюджета. При пустом журнале
// сессия запускается только для получения данных пира, когда с последней
// синхронизации прошло больше наименьшего допуска устаревания.
func Evaluate(cfg Config, in Input) models.SchedulerDecision {
	d := models.SchedulerDecision{
		At:             in.Now,
		Reason:         models.ReasonNone,
		ScoreAvailable: in.ScoreOK && in.SampleFresh,
	}
	if in.Pending != nil {
		d.QueueDepth = in.Pending.Depth
		d.EstimatedBytes = in.Pending.Bytes
	}

	if in.Explicit {
		return hard(d, models.ReasonExplicit, "")
	}
	if d.QueueDepth == 0 {
		if due(in) {
			return hard(d, models.ReasonRefresh, "")
		}
		return d
	}

	for _, c := range in.Categories {
		cs, ok := in.Pending.Categories[c.Name]
		if !ok || cs.Depth == 0 {
			continue
		}
		if c.Strong() || (cfg.PriorityFastPath > 0 && c.Priority >= cfg.PriorityFastPath) {
			return hard(d, models.ReasonPriority, c.Name)
		}
	}

	for _, c := range in.Categories {
		cs, ok := in.Pending.Categories[c.Name]
		if !ok || cs.Depth == 0 || c.StalenessTolerance <= 0 {
			continue
		}
		if in.Now.Sub(cs.Oldest) > c.StalenessTolerance {
			return hard(d, models.ReasonStaleness, c.Name)
		}
	}

	if cfg.BackpressureLimit > 0 && d.QueueDepth > cfg.BackpressureLimit {
		return hard(d, models.ReasonBackpressure, "")
	}

	// без оценки остаются только жесткие правила
	if !d.ScoreAvailable {
		return d
	}

	d.Utility = in.Score
	d.Benefit = benefit(in)
	d.Cost = cost(in.Sample, d.EstimatedBytes, cfg.CostHorizon)

	if d.Benefit-d.Cost <= cfg.Threshold {
		return d
	}
	if in.BudgetRemaining >= 0 && d.EstimatedBytes > in.BudgetRemaining {
		d.Reason = models.ReasonBudgetExceeded
		return d
	}
	d.Reason = models.ReasonUtility
	d.Trigger = true
	return d
}

func hard(d models.SchedulerDecision, reason models.TriggerReason, category string) models.SchedulerDecision {
	d.Reason = reason
	d.Category = category
	d.Trigger = true
	return d
}

// due сообщает, что пора забрать изменения пира.
func due(in Input) bool {
	if in.LastSync.IsZero() {
		return false
	}
	var tolerance time.Duration
	for _, c := range in.Categories {
		if c.StalenessTolerance > 0 && (tolerance == 0 || c.StalenessTolerance < tolerance) {
			tolerance = c.StalenessTolerance
		}
	}
	return tolerance > 0 && in.Now.Sub(in.LastSync) > tolerance
}

// benefit растет с оценкой полезности, приоритетом и накопленным устареванием.
func benefit(in Input) float64 {
	var (
		maxPriority int
		staleness   float64
	)
	for _, c := range in.Categories {
		cs, ok := in.Pending.Categories[c.Name]
		if !ok || cs.Depth == 0 {
			continue
		}
		if c.Priority > maxPriority {
			maxPriority = c.Priority
		}
		if c.StalenessTolerance > 0 {
			frac := float64(in.Now.Sub(cs.Oldest)) / float64(c.StalenessTolerance)
			staleness = math.Max(staleness, math.Min(1, math.Max(0, frac)))
		}
	}

	priority := float64(maxPriority) / float64(adapter.MaxPriority)
	return in.Score*(0.5+0.5*priority) + 0.5*staleness
}

// cost растет со временем передачи ожидаемого объема и неустойчивостью канала.
func cost(s models.NetworkSample, bytes int64, horizon time.Duration) float64 {
	transfer := 1.0
	if s.Bandwidth > 0 && horizon > 0 {
		seconds := float64(bytes)/s.Bandwidth + s.RTT.Seconds()
		transfer = math.Min(1, seconds/horizon.Seconds())
	}
	instability := 1 - math.Min(1, math.Max(0, s.Stability))
	return 0.5*transfer + 0.3*instability + 0.2*math.Min(1, s.LossRate)
}
