// Package resolver turns a set of operations on one item into its new value
// according to the category's consistency model and merge function.
package resolver

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/consistency"
	"github.com/iudanet/edgesync/internal/crdt"
	"github.com/iudanet/edgesync/internal/models"
)

// Result итог разрешения одного элемента.
type Result struct {
	Item      *models.DataItem       // Item новое значение (nil, если ничего не применено)
	Manual    *models.ManualConflict // Manual отметка для ручного решения
	Applied   []*models.Operation    // Applied учтенные операции
	Deferred  []*models.Operation    // Deferred операции с неполученными зависимостями
	Conflicts int                    // Conflicts число конкурентных групп
}

// Resolver разрешает конфликты по правилам категорий.
type Resolver struct {
	registry *adapter.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// New создает Resolver.
func New(registry *adapter.Registry, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve применяет ops к item (nil для нового элемента).
// Операции, уже учтенные в версии элемента, и повторы по ID пропускаются,
// поэтому повторное разрешение того же набора ничего не меняет.
// Исходный item не изменяется.
func (r *Resolver) Resolve(item *models.DataItem, ops []*models.Operation) (*Result, error) {
	if len(ops) == 0 {
		return &Result{}, nil
	}

	itemID := ops[0].ItemID
	categoryName := ops[0].Category
	if item != nil {
		itemID = item.ID
		categoryName = item.Category
	}
	for _, op := range ops {
		if op.ItemID != itemID {
			return nil, fmt.Errorf("operation %s targets %s, expected %s", op.ID, op.ItemID, itemID)
		}
	}

	category, err := r.registry.Lookup(categoryName)
	if err != nil {
		return nil, err
	}
	model, err := consistency.ForKind(category.Consistency)
	if err != nil {
		return nil, err
	}

	cur := item.Clone()
	if cur == nil {
		cur = models.NewDataItem(itemID, categoryName)
	}
	if cur.Version == nil {
		cur.Version = models.VersionVector{}
	}

	plan := model.Plan(cur.Version, ops)
	result := &Result{Deferred: plan.Deferred}

	for _, group := range plan.Groups {
		if len(group) > 1 {
			result.Conflicts++
		}

		if category.Merge == nil {
			applyLWW(cur, group)
		} else if err := applyMerge(cur, category.Merge, group); err != nil {
			// merge не справился: значение выбирается по LWW, элемент помечается
			r.logger.Warn("Merge failed, item flagged for manual resolution",
				"item", itemID,
				"category", categoryName,
				"error", err)

			applyLWW(cur, group)
			resetContributions(cur)
			result.Manual = &models.ManualConflict{
				DetectedAt: r.now().UTC(),
				ItemID:     itemID,
				Category:   categoryName,
				Reason:     err.Error(),
				OpIDs:      opIDs(group),
			}
		}
		result.Applied = append(result.Applied, group...)
	}

	if len(result.Applied) > 0 {
		result.Item = cur
	}
	return result, nil
}

// applyLWW применяет группу по правилу Last-Writer-Wins.
// Внутри группы побеждает наибольшая метка; порядок ops не важен.
func applyLWW(cur *models.DataItem, group []*models.Operation) {
	winner := crdt.Winner(group)
	for _, op := range group {
		if op != winner {
			cur.Version.Observe(op.Origin, op.Seq)
		}
	}
	crdt.ApplyLWW(cur, winner)
}

// applyMerge добавляет записи группы к вкладам элемента и сворачивает их заново.
// Значение зависит только от набора операций: учитываются записи новее
// последнего удаления, свертка идет в порядке меток. Запоздавшее удаление
// отбрасывает вклады старше себя.
func applyMerge(cur *models.DataItem, merge adapter.MergeFunc, group []*models.Operation) error {
	next := cur.Clone()
	if len(next.Contributions) == 0 && next.Exists() {
		// значение, записанное вне свертки (ручное решение, LWW)
		next.Contributions = []models.Contribution{{Stamp: next.Stamp, Payload: next.Value}}
	}

	for _, op := range group {
		next.Version.Observe(op.Origin, op.Seq)

		stamp := op.Stamp()
		if op.Kind == models.OpDelete {
			if stamp.After(next.Floor) {
				next.Floor = stamp
			}
			continue
		}
		if !next.Floor.IsZero() && !stamp.After(next.Floor) {
			continue
		}
		next.Contributions = append(next.Contributions, models.Contribution{
			Stamp:   stamp,
			Payload: append([]byte(nil), op.Payload...),
		})
	}

	if err := fold(next, merge); err != nil {
		return err
	}
	*cur = *next
	return nil
}

// fold пересчитывает Value, Stamp и Tombstone элемента по его вкладам.
func fold(item *models.DataItem, merge adapter.MergeFunc) error {
	live := item.Contributions[:0:0]
	for _, c := range item.Contributions {
		if item.Floor.IsZero() || c.Stamp.After(item.Floor) {
			live = append(live, c)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[j].Stamp.After(live[i].Stamp) })

	// повтор той же записи (одна метка) учитывается один раз
	uniq := live[:0]
	for _, c := range live {
		if len(uniq) > 0 && uniq[len(uniq)-1].Stamp == c.Stamp {
			continue
		}
		uniq = append(uniq, c)
	}

	if len(uniq) == 0 {
		item.Contributions = nil
		item.Value = nil
		if !item.Floor.IsZero() {
			item.Tombstone = true
			item.Stamp = item.Floor
			item.UpdatedAt = crdt.Physical(item.Floor.Timestamp)
		}
		return nil
	}

	value := append([]byte(nil), uniq[0].Payload...)
	for _, c := range uniq[1:] {
		merged, err := merge(value, c.Payload)
		if err != nil {
			return err
		}
		value = merged
	}

	last := uniq[len(uniq)-1].Stamp
	item.Contributions = uniq
	item.Value = value
	item.Tombstone = false
	item.Stamp = last
	item.UpdatedAt = crdt.Physical(last.Timestamp)
	return nil
}

// resetContributions заменяет вклады значением, выбранным по LWW.
func resetContributions(item *models.DataItem) {
	item.Contributions = nil
	if item.Tombstone {
		if item.Stamp.After(item.Floor) {
			item.Floor = item.Stamp
		}
		return
	}
	if item.Exists() {
		item.Contributions = []models.Contribution{{Stamp: item.Stamp, Payload: append([]byte(nil), item.Value...)}}
	}
}

func opIDs(ops []*models.Operation) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.ID)
	}
	sort.Strings(out)
	return out
}
