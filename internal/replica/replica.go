// Package replica binds the State Store, the category registry and the
// conflict resolver into the write and merge paths of a single replica.
package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/resolver"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/internal/validation"
)

// Replica локальная реплика: журнал, состояние и правила категорий.
type Replica struct {
	store    *storage.Store
	registry *adapter.Registry
	resolver *resolver.Resolver
	logger   *slog.Logger
	commitMu sync.Mutex // сериализует фиксации сессий
}

// New создает Replica поверх открытого хранилища.
func New(store *storage.Store, registry *adapter.Registry, logger *slog.Logger) *Replica {
	return &Replica{
		store:    store,
		registry: registry,
		resolver: resolver.New(registry, logger),
		logger:   logger,
	}
}

// ID возвращает идентификатор реплики.
func (r *Replica) ID() string {
	return r.store.ReplicaID()
}

// Store возвращает хранилище реплики.
func (r *Replica) Store() *storage.Store {
	return r.store
}

// Registry возвращает реестр категорий.
func (r *Replica) Registry() *adapter.Registry {
	return r.registry
}

// Put записывает новое значение элемента в журнал.
// Значение кодируется кодеком категории.
func (r *Replica) Put(ctx context.Context, category, itemID string, value []byte) (*models.Operation, error) {
	if err := validation.ValidateItemID(itemID); err != nil {
		return nil, err
	}
	cat, err := r.registry.Lookup(category)
	if err != nil {
		return nil, err
	}

	cur, err := r.CurrentValue(ctx, itemID)
	switch {
	case errors.Is(err, storage.ErrItemNotFound):
	case err != nil:
		return nil, err
	case cur.Category != category:
		return nil, fmt.Errorf("item %s belongs to category %s", itemID, cur.Category)
	}

	payload, err := cat.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}

	op, err := r.store.Append(ctx, &models.Operation{
		ItemID:   itemID,
		Category: category,
		Kind:     models.OpPut,
		Payload:  payload,
	})
	if err != nil {
		return nil, syncerr.Storage("append", err)
	}
	return op, nil
}

// Delete записывает удаление элемента.
// Returns storage.ErrItemNotFound if the item does not exist or is already deleted.
func (r *Replica) Delete(ctx context.Context, itemID string) (*models.Operation, error) {
	cur, err := r.CurrentValue(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !cur.Exists() {
		return nil, storage.ErrItemNotFound
	}

	op, err := r.store.Append(ctx, &models.Operation{
		ItemID:   itemID,
		Category: cur.Category,
		Kind:     models.OpDelete,
	})
	if err != nil {
		return nil, syncerr.Storage("append", err)
	}
	return op, nil
}

// CurrentValue возвращает зафиксированный элемент с учетом собственных
// еще не примененных операций (read-your-writes). Ничего не сохраняет.
func (r *Replica) CurrentValue(ctx context.Context, itemID string) (*models.DataItem, error) {
	item, err := r.store.Item(ctx, itemID)
	if err != nil && !errors.Is(err, storage.ErrItemNotFound) {
		return nil, err
	}

	ops, err := r.store.Unapplied(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		res, err := r.resolver.Resolve(item, ops)
		if err != nil {
			return nil, err
		}
		if res.Item != nil {
			item = res.Item
		}
	}

	if item == nil {
		return nil, storage.ErrItemNotFound
	}
	return item, nil
}

// Get возвращает декодированное значение элемента.
func (r *Replica) Get(ctx context.Context, itemID string) ([]byte, *models.DataItem, error) {
	item, err := r.CurrentValue(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if !item.Exists() {
		return nil, item, storage.ErrItemNotFound
	}

	cat, err := r.registry.Lookup(item.Category)
	if err != nil {
		return nil, nil, err
	}
	value, err := cat.Decode(item.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return value, item, nil
}

// List возвращает текущие значения всех существующих элементов в порядке ID.
func (r *Replica) List(ctx context.Context) ([]*models.DataItem, error) {
	committed, err := r.store.Items(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := r.store.Pending(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(committed)+len(pending))
	var ids []string
	for _, item := range committed {
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}
	for _, op := range pending {
		if _, ok := seen[op.ItemID]; !ok {
			seen[op.ItemID] = struct{}{}
			ids = append(ids, op.ItemID)
		}
	}
	sort.Strings(ids)

	out := make([]*models.DataItem, 0, len(ids))
	for _, id := range ids {
		item, err := r.CurrentValue(ctx, id)
		if err != nil {
			return nil, err
		}
		if item.Exists() {
			out = append(out, item)
		}
	}
	return out, nil
}

// Changes результат разрешения, готовый к фиксации.
type Changes struct {
	Update    *storage.UpdateSet
	Deferred  []*models.Operation
	Applied   int // Applied число учтенных операций
	Conflicts int // Conflicts число конкурентных групп
	Manual    int // Manual число элементов для ручного решения
}

// Prepare разрешает собственные непримененные операции local вместе с
// полученными inbound. Состояние не изменяется; результат фиксируется Commit.
//
// Вектор реплики продвигается по каждому автору только до первой
// отложенной операции, поэтому пир повторно пришлет все, что не применено.
func (r *Replica) Prepare(ctx context.Context, local, inbound []*models.Operation) (*Changes, error) {
	all := make([]*models.Operation, 0, len(local)+len(inbound))
	all = append(all, local...)
	all = append(all, inbound...)

	ids := make([]string, 0, len(all))
	for _, op := range all {
		ids = append(ids, op.ID)
	}
	applied, err := r.store.AppliedSet(ctx, ids)
	if err != nil {
		return nil, syncerr.Storage("prepare", err)
	}

	byItem := make(map[string][]*models.Operation)
	seen := make(map[string]struct{}, len(all))
	for _, op := range all {
		if _, ok := seen[op.ID]; ok || applied[op.ID] {
			continue
		}
		seen[op.ID] = struct{}{}
		byItem[op.ItemID] = append(byItem[op.ItemID], op)
	}

	itemIDs := make([]string, 0, len(byItem))
	for id := range byItem {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	items, err := r.store.ItemsByID(ctx, itemIDs)
	if err != nil {
		return nil, syncerr.Storage("prepare", err)
	}

	changes := &Changes{Update: &storage.UpdateSet{}}
	for _, id := range itemIDs {
		res, err := r.resolver.Resolve(items[id], byItem[id])
		if err != nil {
			return nil, syncerr.Protocol("resolve", fmt.Errorf("item %s: %w", id, err))
		}

		if res.Item != nil {
			changes.Update.Items = append(changes.Update.Items, res.Item)
		}
		changes.Update.Applied = append(changes.Update.Applied, res.Applied...)
		changes.Deferred = append(changes.Deferred, res.Deferred...)
		changes.Applied += len(res.Applied)
		changes.Conflicts += res.Conflicts
		if res.Manual != nil {
			changes.Update.Conflicts = append(changes.Update.Conflicts, res.Manual)
			changes.Manual++
		}
	}

	changes.Update.Vector = contiguousVector(all, changes.Deferred)
	for _, op := range all {
		if op.Timestamp > changes.Update.Timestamp {
			changes.Update.Timestamp = op.Timestamp
		}
	}

	if len(changes.Deferred) > 0 {
		r.logger.Debug("Operations deferred until dependencies arrive",
			"deferred", len(changes.Deferred))
	}
	return changes, nil
}

// contiguousVector вычисляет продвижение вектора реплики: по каждому автору
// наибольший полученный seq, но не дальше первой отложенной операции.
func contiguousVector(ops, deferred []*models.Operation) models.VersionVector {
	firstDeferred := make(map[string]uint64)
	for _, op := range deferred {
		if cur, ok := firstDeferred[op.Origin]; !ok || op.Seq < cur {
			firstDeferred[op.Origin] = op.Seq
		}
	}

	vv := models.VersionVector{}
	for _, op := range ops {
		seq := op.Seq
		if limit, ok := firstDeferred[op.Origin]; ok && seq >= limit {
			seq = limit - 1
		}
		if seq > 0 {
			vv.Observe(op.Origin, seq)
		}
	}
	return vv
}

// Commit атомарно фиксирует подготовленные изменения.
func (r *Replica) Commit(ctx context.Context, changes *Changes) error {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if err := r.store.Commit(ctx, changes.Update); err != nil {
		return syncerr.Storage("commit", err)
	}

	r.logger.Debug("Changes committed",
		"items", len(changes.Update.Items),
		"applied", changes.Applied,
		"conflicts", changes.Conflicts,
		"manual", changes.Manual)
	return nil
}

// Apply выполняет Prepare и Commit.
func (r *Replica) Apply(ctx context.Context, local, inbound []*models.Operation) (*Changes, error) {
	changes, err := r.Prepare(ctx, local, inbound)
	if err != nil {
		return nil, err
	}
	if err := r.Commit(ctx, changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// Compact удаляет из журнала операции, подтвержденные пиром вектором upto.
func (r *Replica) Compact(ctx context.Context, upto models.VersionVector) (int, error) {
	n, err := r.store.Compact(ctx, upto)
	if err != nil {
		return 0, syncerr.Storage("compact", err)
	}
	return n, nil
}

// ManualConflicts возвращает элементы, ожидающие ручного решения.
func (r *Replica) ManualConflicts(ctx context.Context) ([]*models.ManualConflict, error) {
	return r.store.Conflicts(ctx)
}

// ResolveManual снимает отметку конфликта. Если value не nil, выбранное
// значение записывается новыми операциями и уходит пиру со следующей сессией.
func (r *Replica) ResolveManual(ctx context.Context, itemID string, value []byte) error {
	conflicts, err := r.store.Conflicts(ctx)
	if err != nil {
		return err
	}

	var found *models.ManualConflict
	for _, c := range conflicts {
		if c.ItemID == itemID {
			found = c
			break
		}
	}
	if found == nil {
		return storage.ErrConflictNotFound
	}

	if value != nil {
		cat, err := r.registry.Lookup(found.Category)
		if err != nil {
			return err
		}
		// для merge-категорий значение заменяется, а не сливается:
		// удаление сбрасывает элемент, запись после него задает значение
		if cat.Merge != nil {
			if _, err := r.Delete(ctx, itemID); err != nil && !errors.Is(err, storage.ErrItemNotFound) {
				return err
			}
		}
		if _, err := r.Put(ctx, found.Category, itemID, value); err != nil {
			return err
		}
	}
	return r.store.ClearConflict(ctx, itemID)
}

// PendingStats возвращает статистику журнала для планировщика.
func (r *Replica) PendingStats(ctx context.Context) (*storage.PendingStats, error) {
	stats, err := r.store.PendingStats(ctx)
	if err != nil {
		return nil, syncerr.Storage("pending stats", err)
	}
	return stats, nil
}
