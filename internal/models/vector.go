package models

import (
	"sort"
	"strconv"
	"strings"
)

// Ordering результат сравнения двух версий или операций.
type Ordering int

const (
	OrderEqual Ordering = iota
	OrderBefore
	OrderAfter
	OrderConcurrent
)

func (o Ordering) String() string {
	switch o {
	case OrderEqual:
		return "equal"
	case OrderBefore:
		return "before"
	case OrderAfter:
		return "after"
	default:
		return "concurrent"
	}
}

// VersionVector отображение replicaID -> наибольший учтенный seq этой реплики.
type VersionVector map[string]uint64

// Get возвращает значение для реплики (0, если реплика неизвестна).
func (v VersionVector) Get(replicaID string) uint64 {
	if v == nil {
		return 0
	}
	return v[replicaID]
}

// Observe поднимает значение реплики до seq.
// Возвращает true, если вектор изменился. Значения никогда не уменьшаются.
func (v VersionVector) Observe(replicaID string, seq uint64) bool {
	if seq <= v[replicaID] {
		return false
	}
	v[replicaID] = seq
	return true
}

// Merge поэлементный максимум с other.
func (v VersionVector) Merge(other VersionVector) {
	for id, seq := range other {
		v.Observe(id, seq)
	}
}

// Descends сообщает, что v покрывает other (v >= other поэлементно).
func (v VersionVector) Descends(other VersionVector) bool {
	for id, seq := range other {
		if v.Get(id) < seq {
			return false
		}
	}
	return true
}

// Compare определяет отношение v к other.
func (v VersionVector) Compare(other VersionVector) Ordering {
	geq := v.Descends(other)
	leq := other.Descends(v)
	switch {
	case geq && leq:
		return OrderEqual
	case leq:
		return OrderBefore
	case geq:
		return OrderAfter
	default:
		return OrderConcurrent
	}
}

// Equal сравнивает векторы, считая отсутствующие записи нулями.
func (v VersionVector) Equal(other VersionVector) bool {
	return v.Compare(other) == OrderEqual
}

// Clone создает копию вектора (пустой вектор для nil).
func (v VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(v))
	for id, seq := range v {
		out[id] = seq
	}
	return out
}

func (v VersionVector) String() string {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(v[id], 10))
	}
	b.WriteByte('}')
	return b.String()
}
