// Package consistency implements the ordering and visibility rules of the
// three consistency models. A Model turns an unordered set of operations
// on one item into an application plan for the resolver.
package consistency

import (
	"fmt"
	"sort"

	"github.com/iudanet/edgesync/internal/models"
)

// Plan упорядоченное применение операций к одному элементу.
type Plan struct {
	// Groups применяются последовательно; операции внутри группы
	// взаимно конкурентны и разрешаются вместе.
	Groups [][]*models.Operation
	// Deferred операции, чьи зависимости еще не получены.
	Deferred []*models.Operation
}

// Model правила упорядочивания и видимости операций категории.
type Model interface {
	Kind() models.ConsistencyKind
	// Order сравнивает две операции над одним элементом.
	Order(a, b *models.Operation) models.Ordering
	// Plan строит порядок применения ops к элементу с версией base.
	Plan(base models.VersionVector, ops []*models.Operation) Plan
	// Exclusive сообщает, что фиксация требует эксклюзивной аренды.
	Exclusive() bool
}

// ForKind возвращает модель для kind.
func ForKind(kind models.ConsistencyKind) (Model, error) {
	switch kind {
	case models.ConsistencyEventual:
		return Eventual{}, nil
	case models.ConsistencyCausal:
		return Causal{}, nil
	case models.ConsistencyStrong:
		return Strong{}, nil
	default:
		return nil, fmt.Errorf("unknown consistency model %q", kind)
	}
}

// less задает детерминированный порядок операций: метка, автор, seq, ID.
func less(a, b *models.Operation) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Origin != b.Origin {
		return a.Origin < b.Origin
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}

func sortOps(ops []*models.Operation) {
	sort.Slice(ops, func(i, j int) bool { return less(ops[i], ops[j]) })
}

// dedup убирает повторы по ID и операции, уже учтенные в base.
func dedup(base models.VersionVector, ops []*models.Operation) []*models.Operation {
	seen := make(map[string]struct{}, len(ops))
	out := make([]*models.Operation, 0, len(ops))
	for _, op := range ops {
		if _, ok := seen[op.ID]; ok {
			continue
		}
		seen[op.ID] = struct{}{}
		if base.Get(op.Origin) >= op.Seq {
			continue
		}
		out = append(out, op)
	}
	return out
}

// causalOrder сравнивает операции по зависимостям.
func causalOrder(a, b *models.Operation) models.Ordering {
	switch {
	case a.ID == b.ID:
		return models.OrderEqual
	case a.Origin == b.Origin:
		if a.Seq < b.Seq {
			return models.OrderBefore
		}
		return models.OrderAfter
	case b.Deps.Get(a.Origin) >= a.Seq:
		return models.OrderBefore
	case a.Deps.Get(b.Origin) >= b.Seq:
		return models.OrderAfter
	default:
		return models.OrderConcurrent
	}
}

// layers раскладывает операции по слоям причинного порядка.
// Слой: готовые операции (зависимости покрыты текущей версией), не
// предшествуемые другими готовыми операциями. Операции, которые не
// удалось сделать готовыми, возвращаются как отложенные.
func layers(base models.VersionVector, ops []*models.Operation) ([][]*models.Operation, []*models.Operation) {
	vv := base.Clone()
	rest := dedup(base, ops)
	sortOps(rest)

	var groups [][]*models.Operation
	for len(rest) > 0 {
		var ready, waiting []*models.Operation
		for _, op := range rest {
			if vv.Descends(op.Deps) {
				ready = append(ready, op)
			} else {
				waiting = append(waiting, op)
			}
		}
		if len(ready) == 0 {
			return groups, waiting
		}

		var layer []*models.Operation
		for _, op := range ready {
			minimal := true
			for _, other := range ready {
				if causalOrder(other, op) == models.OrderBefore {
					minimal = false
					break
				}
			}
			if minimal {
				layer = append(layer, op)
			} else {
				waiting = append(waiting, op)
			}
		}

		for _, op := range layer {
			vv.Observe(op.Origin, op.Seq)
		}
		groups = append(groups, layer)

		sortOps(waiting)
		rest = waiting
	}
	return groups, nil
}
