package models

import "time"

// NetworkSample снимок качества канала до облака.
type NetworkSample struct {
	At        time.Time     `json:"at"`        // At момент измерения
	RTT       time.Duration `json:"rtt"`       // RTT среднее время отклика
	Jitter    time.Duration `json:"jitter"`    // Jitter разброс RTT
	Bandwidth float64       `json:"bandwidth"` // Bandwidth оценка пропускной способности, байт/с
	LossRate  float64       `json:"loss_rate"` // LossRate доля неудачных проб, 0..1
	Stability float64       `json:"stability"` // Stability устойчивость канала, 0..1
}

// Age возвращает возраст снимка относительно now.
func (s NetworkSample) Age(now time.Time) time.Duration {
	if s.At.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(s.At)
}

// TriggerReason причина решения планировщика.
type TriggerReason string

const (
	ReasonNone           TriggerReason = "none"
	ReasonUtility        TriggerReason = "utility"
	ReasonStaleness      TriggerReason = "staleness"
	ReasonBackpressure   TriggerReason = "backpressure"
	ReasonPriority       TriggerReason = "priority"
	ReasonExplicit       TriggerReason = "explicit"
	ReasonBudgetExceeded TriggerReason = "budget_exceeded"
	ReasonDebounce       TriggerReason = "debounce"
	ReasonSessionActive  TriggerReason = "session_active"
	ReasonRefresh        TriggerReason = "refresh" // журнал пуст, данные пира могли устареть
)

// SchedulerDecision запись об одном решении планировщика.
type SchedulerDecision struct {
	At             time.Time     `json:"at"`
	Reason         TriggerReason `json:"reason"`
	Category       string        `json:"category,omitempty"` // Category категория, вызвавшая жесткое срабатывание
	Utility        float64       `json:"utility"`
	Benefit        float64       `json:"benefit"`
	Cost           float64       `json:"cost"`
	EstimatedBytes int64         `json:"estimated_bytes"`
	QueueDepth     int           `json:"queue_depth"`
	Trigger        bool          `json:"trigger"`
	ScoreAvailable bool          `json:"score_available"`
}
