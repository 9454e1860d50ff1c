package models

import (
	"bytes"
	"time"
)

// ConsistencyKind определяет модель согласованности категории данных.
type ConsistencyKind string

const (
	ConsistencyEventual ConsistencyKind = "eventual"
	ConsistencyCausal   ConsistencyKind = "causal"
	ConsistencyStrong   ConsistencyKind = "strong"
)

// Valid сообщает, является ли значение одной из поддерживаемых моделей.
func (k ConsistencyKind) Valid() bool {
	switch k {
	case ConsistencyEventual, ConsistencyCausal, ConsistencyStrong:
		return true
	}
	return false
}

// Stamp идентифицирует запись, определившую текущее значение элемента.
// Используется для детерминированного LWW сравнения между репликами.
type Stamp struct {
	Origin    string `json:"origin"`    // Origin реплика-автор записи
	Timestamp int64  `json:"timestamp"` // Timestamp гибридная метка времени
	Seq       uint64 `json:"seq"`       // Seq порядковый номер операции у автора
}

// IsZero сообщает, что метка не установлена.
func (s Stamp) IsZero() bool {
	return s.Timestamp == 0 && s.Origin == "" && s.Seq == 0
}

// After сообщает, что s новее other.
// Сравнение: Timestamp, затем Origin (лексикографически), затем Seq.
func (s Stamp) After(other Stamp) bool {
	if s.Timestamp != other.Timestamp {
		return s.Timestamp > other.Timestamp
	}
	if s.Origin != other.Origin {
		return s.Origin > other.Origin
	}
	return s.Seq > other.Seq
}

// Contribution запись merge-категории, вошедшая в значение элемента.
type Contribution struct {
	Stamp   Stamp  `json:"stamp"`
	Payload []byte `json:"payload"`
}

// DataItem представляет элемент данных в State Store.
// Value содержит закодированный адаптером категории payload.
//
// Для merge-категорий Value есть свертка Contributions: записей новее
// последнего удаления Floor.
type DataItem struct {
	UpdatedAt     time.Time      `json:"updated_at"`              // UpdatedAt физическое время выигравшей записи
	Version       VersionVector  `json:"version"`                 // Version операции, учтенные в текущем значении
	Stamp         Stamp          `json:"stamp"`                   // Stamp метка выигравшей записи
	Floor         Stamp          `json:"floor"`                   // Floor метка последнего удаления (merge-категории)
	ID            string         `json:"id"`                      // ID ключ элемента
	Category      string         `json:"category"`                // Category категория, задающая модель и merge
	Value         []byte         `json:"value"`                   // Value текущее значение (payload)
	Contributions []Contribution `json:"contributions,omitempty"` // Contributions записи, свернутые в Value
	Tombstone     bool           `json:"tombstone"`               // Tombstone элемент удален
}

// NewDataItem создает пустой элемент, еще не получавший операций.
func NewDataItem(id, category string) *DataItem {
	return &DataItem{
		ID:       id,
		Category: category,
		Version:  VersionVector{},
	}
}

// Exists сообщает, что элемент имеет живое значение.
func (i *DataItem) Exists() bool {
	return i != nil && !i.Stamp.IsZero() && !i.Tombstone
}

// Clone создает глубокую копию элемента
func (i *DataItem) Clone() *DataItem {
	if i == nil {
		return nil
	}
	var value []byte
	if i.Value != nil {
		value = make([]byte, len(i.Value))
		copy(value, i.Value)
	}

	var contributions []Contribution
	if i.Contributions != nil {
		contributions = make([]Contribution, len(i.Contributions))
		for n, c := range i.Contributions {
			contributions[n] = Contribution{Stamp: c.Stamp, Payload: append([]byte(nil), c.Payload...)}
		}
	}

	return &DataItem{
		UpdatedAt:     i.UpdatedAt,
		Version:       i.Version.Clone(),
		Stamp:         i.Stamp,
		Floor:         i.Floor,
		ID:            i.ID,
		Category:      i.Category,
		Value:         value,
		Contributions: contributions,
		Tombstone:     i.Tombstone,
	}
}

// Equal сравнивает элементы по содержимому.
func (i *DataItem) Equal(other *DataItem) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.ID == other.ID &&
		i.Category == other.Category &&
		i.Stamp == other.Stamp &&
		i.Floor == other.Floor &&
		i.Tombstone == other.Tombstone &&
		equalContributions(i.Contributions, other.Contributions) &&
		bytes.Equal(i.Value, other.Value) &&
		i.Version.Equal(other.Version) &&
		i.UpdatedAt.Equal(other.UpdatedAt)
}

func equalContributions(a, b []Contribution) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n].Stamp != b[n].Stamp || !bytes.Equal(a[n].Payload, b[n].Payload) {
			return false
		}
	}
	return true
}

// ManualConflict элемент, для которого merge-функция категории не смогла
// объединить конкурентные записи. Значение выбрано по LWW, элемент ждет
// ручного решения.
type ManualConflict struct {
	DetectedAt time.Time `json:"detected_at"` // DetectedAt момент обнаружения
	ItemID     string    `json:"item_id"`     // ItemID ключ элемента
	Category   string    `json:"category"`    // Category категория элемента
	Reason     string    `json:"reason"`      // Reason текст ошибки merge
	OpIDs      []string  `json:"op_ids"`      // OpIDs операции конкурентной группы
}
