package consistency

import (
	"github.com/iudanet/edgesync/internal/models"
)

// Eventual упорядочивает операции только по гибридной метке.
// Зависимости не проверяются: все операции применяются сразу,
// равные метки образуют конкурентную группу.
type Eventual struct{}

func (Eventual) Kind() models.ConsistencyKind { return models.ConsistencyEventual }

func (Eventual) Exclusive() bool { return false }

func (Eventual) Order(a, b *models.Operation) models.Ordering {
	switch {
	case a.ID == b.ID:
		return models.OrderEqual
	case a.Timestamp < b.Timestamp:
		return models.OrderBefore
	case a.Timestamp > b.Timestamp:
		return models.OrderAfter
	default:
		return models.OrderConcurrent
	}
}

func (Eventual) Plan(base models.VersionVector, ops []*models.Operation) Plan {
	rest := dedup(base, ops)
	sortOps(rest)

	var plan Plan
	for i := 0; i < len(rest); {
		j := i + 1
		for j < len(rest) && rest[j].Timestamp == rest[i].Timestamp {
			j++
		}
		plan.Groups = append(plan.Groups, rest[i:j])
		i = j
	}
	return plan
}

// Causal применяет операцию только после всех операций, которые видел ее автор.
// Операции без причинной связи образуют конкурентные группы.
type Causal struct{}

func (Causal) Kind() models.ConsistencyKind { return models.ConsistencyCausal }

func (Causal) Exclusive() bool { return false }

func (Causal) Order(a, b *models.Operation) models.Ordering {
	return causalOrder(a, b)
}

func (Causal) Plan(base models.VersionVector, ops []*models.Operation) Plan {
	groups, deferred := layers(base, ops)
	return Plan{Groups: groups, Deferred: deferred}
}

// Strong сериализует операции: причинный порядок, внутри слоя по метке.
// Фиксация допускается только под эксклюзивной арендой, поэтому все
// реплики применяют одну и ту же последовательность.
type Strong struct{}

func (Strong) Kind() models.ConsistencyKind { return models.ConsistencyStrong }

func (Strong) Exclusive() bool { return true }

func (Strong) Order(a, b *models.Operation) models.Ordering {
	if o := causalOrder(a, b); o != models.OrderConcurrent {
		return o
	}
	// конкурентные операции упорядочиваются детерминированно
	if less(a, b) {
		return models.OrderBefore
	}
	return models.OrderAfter
}

func (Strong) Plan(base models.VersionVector, ops []*models.Operation) Plan {
	groups, deferred := layers(base, ops)

	plan := Plan{Deferred: deferred}
	for _, layer := range groups {
		for _, op := range layer {
			plan.Groups = append(plan.Groups, []*models.Operation{op})
		}
	}
	return plan
}
