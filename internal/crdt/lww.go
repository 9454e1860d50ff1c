package crdt

import (
	"github.com/iudanet/edgesync/internal/models"
)

// Winner возвращает операцию с наибольшей LWW меткой.
// Сравнение детерминировано: Timestamp, затем Origin, затем Seq,
// поэтому результат не зависит от порядка ops. Для пустого среза возвращает nil.
func Winner(ops []*models.Operation) *models.Operation {
	var winner *models.Operation
	for _, op := range ops {
		if winner == nil || op.Stamp().After(winner.Stamp()) {
			winner = op
		}
	}
	return winner
}

// ApplyLWW применяет операцию к элементу по правилу Last-Write-Wins.
// Значение и метка меняются только если операция новее текущей записи;
// Version элемента учитывает операцию в любом случае.
// Возвращает true, если операция определила новое значение.
func ApplyLWW(item *models.DataItem, op *models.Operation) bool {
	item.Version.Observe(op.Origin, op.Seq)

	stamp := op.Stamp()
	if !item.Stamp.IsZero() && !stamp.After(item.Stamp) {
		// существующая версия новее
		return false
	}

	item.Stamp = stamp
	item.UpdatedAt = Physical(op.Timestamp)
	if op.Kind == models.OpDelete {
		item.Tombstone = true
		item.Value = nil
		return true
	}

	item.Tombstone = false
	item.Value = append([]byte(nil), op.Payload...)
	return true
}
