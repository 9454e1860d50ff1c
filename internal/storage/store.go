// Package storage persists the State Store and the Operation Journal of a
// replica on top of a kv.Store. Every mutation is a single kv transaction.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/edgesync/internal/crdt"
	"github.com/iudanet/edgesync/internal/kv"
	"github.com/iudanet/edgesync/internal/models"
)

// Store хранит элементы, журнал локальных операций и метаданные реплики.
type Store struct {
	db        kv.Store
	clock     *crdt.HybridClock
	logger    *slog.Logger
	now       func() time.Time
	hooks     []func(op *models.Operation)
	replicaID string
	appendMu  sync.Mutex   // сериализует выделение seq
	hookMu    sync.RWMutex // защищает hooks
}

// Option настраивает Store.
type Option func(*Store)

// WithNow подменяет источник времени (для тестов).
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithClock подменяет гибридные часы реплики.
func WithClock(clock *crdt.HybridClock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New открывает хранилище реплики replicaID поверх db.
// При первом запуске идентификатор реплики записывается в метаданные,
// при последующих проверяется совпадение.
func New(ctx context.Context, db kv.Store, replicaID string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if replicaID == "" {
		return nil, errors.New("replica id is required")
	}

	s := &Store{
		db:        db,
		logger:    logger,
		now:       time.Now,
		replicaID: replicaID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = crdt.NewHybridClockWithTime(replicaID, s.now)
	}

	err := db.Update(ctx, func(tx kv.Tx) error {
		stored, err := tx.Get(bucketMeta, metaReplicaID)
		switch {
		case errors.Is(err, kv.ErrNotFound):
			if err := tx.Put(bucketMeta, metaReplicaID, []byte(replicaID)); err != nil {
				return fmt.Errorf("failed to save replica id: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to read replica id: %w", err)
		case string(stored) != replicaID:
			return fmt.Errorf("%w: %s", ErrReplicaMismatch, stored)
		}

		// восстанавливаем часы после перезапуска
		data, err := tx.Get(bucketMeta, metaClock)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read clock: %w", err)
		}
		ts, err := decodeInt(data)
		if err != nil {
			return fmt.Errorf("failed to decode clock: %w", err)
		}
		s.clock.SetTimestamp(ts)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return s, nil
}

// ReplicaID возвращает идентификатор реплики.
func (s *Store) ReplicaID() string {
	return s.replicaID
}

// Clock возвращает часы реплики.
func (s *Store) Clock() *crdt.HybridClock {
	return s.clock
}

// OnAppend регистрирует функцию, вызываемую после каждой записи в журнал.
// Функция не должна блокироваться.
func (s *Store) OnAppend(fn func(op *models.Operation)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(op *models.Operation) {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()

	for _, fn := range s.hooks {
		fn(op)
	}
}

// Append записывает локальную операцию в журнал.
// Seq, Timestamp, Origin и Deps назначаются внутри той же транзакции,
// поэтому после возврата операция переживает перезапуск процесса.
// Deps включает версию элемента и последнюю собственную операцию по нему,
// так что операции одного автора над элементом всегда упорядочены.
func (s *Store) Append(ctx context.Context, draft *models.Operation) (*models.Operation, error) {
	if draft == nil || draft.ItemID == "" || draft.Category == "" {
		return nil, ErrInvalidDraft
	}
	if draft.Kind != models.OpPut && draft.Kind != models.OpDelete {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDraft, draft.Kind)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	op := draft.Clone()
	op.Origin = s.replicaID
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	op.WallTime = s.now().UTC()
	if op.Kind == models.OpDelete {
		op.Payload = nil
	}

	err := s.db.Update(ctx, func(tx kv.Tx) error {
		last, err := getUint(tx, metaSeq)
		if err != nil {
			return err
		}
		op.Seq = last + 1
		op.Timestamp = s.clock.Tick()

		deps, err := s.itemDeps(tx, op.ItemID)
		if err != nil {
			return err
		}
		op.Deps = deps

		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}

		if err := tx.Put(bucketJournal, seqKey(op.Seq), data); err != nil {
			return fmt.Errorf("failed to save journal entry: %w", err)
		}
		if err := tx.Put(bucketJournalItem, journalItemKey(op.ItemID, op.Seq), seqKey(op.Seq)); err != nil {
			return fmt.Errorf("failed to save journal index: %w", err)
		}
		if err := tx.Put(bucketMeta, metaSeq, encodeUint(op.Seq)); err != nil {
			return fmt.Errorf("failed to save seq: %w", err)
		}
		return putClock(tx, op.Timestamp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append operation: %w", err)
	}

	s.logger.Debug("Operation appended",
		"id", op.ID,
		"item", op.ItemID,
		"seq", op.Seq,
		"kind", op.Kind)

	s.notify(op)
	return op.Clone(), nil
}

// itemDeps возвращает зависимости новой операции над элементом.
func (s *Store) itemDeps(r kv.Reader, itemID string) (models.VersionVector, error) {
	deps := models.VersionVector{}

	item, err := getItem(r, itemID)
	switch {
	case err == nil:
		deps = item.Version.Clone()
	case !errors.Is(err, ErrItemNotFound):
		return nil, err
	}

	// собственные операции из журнала, еще не вошедшие в Version элемента
	prefix := itemPrefix(itemID)
	err = r.Scan(bucketJournalItem, prefix, func(key, _ []byte) error {
		seq, err := parseSeqKey(key[len(prefix):])
		if err != nil {
			return err
		}
		deps.Observe(s.replicaID, seq)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan journal index: %w", err)
	}

	return deps, nil
}

// Item возвращает элемент по ID.
// Returns ErrItemNotFound if the item has never been committed.
func (s *Store) Item(ctx context.Context, id string) (*models.DataItem, error) {
	var item *models.DataItem
	err := s.db.View(ctx, func(r kv.Reader) error {
		var err error
		item, err = getItem(r, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ItemsByID возвращает найденные элементы; отсутствующие ID пропускаются.
func (s *Store) ItemsByID(ctx context.Context, ids []string) (map[string]*models.DataItem, error) {
	items := make(map[string]*models.DataItem, len(ids))
	err := s.db.View(ctx, func(r kv.Reader) error {
		for _, id := range ids {
			item, err := getItem(r, id)
			if errors.Is(err, ErrItemNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			items[id] = item
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Items возвращает все элементы, включая удаленные, в порядке ID.
func (s *Store) Items(ctx context.Context) ([]*models.DataItem, error) {
	var items []*models.DataItem
	err := s.db.View(ctx, func(r kv.Reader) error {
		return r.Scan(bucketItems, nil, func(_, value []byte) error {
			item, err := decodeItem(value)
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Unapplied возвращает операции журнала по элементу, еще не примененные к State Store.
func (s *Store) Unapplied(ctx context.Context, itemID string) ([]*models.Operation, error) {
	var ops []*models.Operation
	err := s.db.View(ctx, func(r kv.Reader) error {
		var seqs [][]byte
		err := r.Scan(bucketJournalItem, itemPrefix(itemID), func(_, value []byte) error {
			seqs = append(seqs, append([]byte(nil), value...))
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan journal index: %w", err)
		}

		for _, key := range seqs {
			data, err := r.Get(bucketJournal, key)
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read journal entry: %w", err)
			}
			op, err := decodeOp(data)
			if err != nil {
				return err
			}
			applied, err := isApplied(r, op.ID)
			if err != nil {
				return err
			}
			if !applied {
				ops = append(ops, op)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// Snapshot снимок журнала и вектора реплики, согласованный в одной транзакции.
type Snapshot struct {
	Vector  models.VersionVector // Vector вектор реплики
	Applied map[string]bool      // Applied отметки применения для операций журнала
	Journal []*models.Operation  // Journal неподтвержденные пиром операции в порядке seq
	LastSeq uint64               // LastSeq последний выданный seq
}

// Unapplied возвращает операции снимка, еще не примененные локально.
func (s *Snapshot) Unapplied() []*models.Operation {
	out := make([]*models.Operation, 0, len(s.Journal))
	for _, op := range s.Journal {
		if !s.Applied[op.ID] {
			out = append(out, op)
		}
	}
	return out
}

// Outbound возвращает операции снимка с seq больше after.
func (s *Snapshot) Outbound(after uint64) []*models.Operation {
	out := make([]*models.Operation, 0, len(s.Journal))
	for _, op := range s.Journal {
		if op.Seq > after {
			out = append(out, op)
		}
	}
	return out
}

// Snapshot читает журнал и вектор реплики в одной транзакции.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Applied: make(map[string]bool)}
	err := s.db.View(ctx, func(r kv.Reader) error {
		var err error
		if snap.Vector, err = getVector(r); err != nil {
			return err
		}
		if snap.LastSeq, err = getUint(r, metaSeq); err != nil {
			return err
		}

		err = r.Scan(bucketJournal, nil, func(_, value []byte) error {
			op, err := decodeOp(value)
			if err != nil {
				return err
			}
			snap.Journal = append(snap.Journal, op)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan journal: %w", err)
		}

		for _, op := range snap.Journal {
			applied, err := isApplied(r, op.ID)
			if err != nil {
				return err
			}
			snap.Applied[op.ID] = applied
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, nil
}

// Pending возвращает операции журнала, еще не подтвержденные пиром, в порядке seq.
func (s *Store) Pending(ctx context.Context) ([]*models.Operation, error) {
	return s.PendingSince(ctx, 0)
}

// PendingSince возвращает операции журнала с seq больше after.
func (s *Store) PendingSince(ctx context.Context, after uint64) ([]*models.Operation, error) {
	var ops []*models.Operation
	err := s.db.View(ctx, func(r kv.Reader) error {
		return r.Scan(bucketJournal, nil, func(key, value []byte) error {
			seq, err := parseSeqKey(key)
			if err != nil {
				return err
			}
			if seq <= after {
				return nil
			}
			op, err := decodeOp(value)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return ops, nil
}

// AppliedSet возвращает подмножество ids, уже примененных к State Store.
func (s *Store) AppliedSet(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := s.db.View(ctx, func(r kv.Reader) error {
		for _, id := range ids {
			applied, err := isApplied(r, id)
			if err != nil {
				return err
			}
			if applied {
				out[id] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VersionVector возвращает вектор реплики.
func (s *Store) VersionVector(ctx context.Context) (models.VersionVector, error) {
	var vv models.VersionVector
	err := s.db.View(ctx, func(r kv.Reader) error {
		var err error
		vv, err = getVector(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vv, nil
}

// UpdateSet результат разрешения, фиксируемый одной транзакцией.
type UpdateSet struct {
	Vector    models.VersionVector     // Vector вливается в вектор реплики
	Items     []*models.DataItem       // Items новые значения элементов
	Applied   []*models.Operation      // Applied операции, учтенные в Items
	Conflicts []*models.ManualConflict // Conflicts элементы для ручного решения
	Timestamp int64                    // Timestamp максимальная наблюдаемая метка
}

// Empty сообщает, что фиксировать нечего.
func (u *UpdateSet) Empty() bool {
	return len(u.Items) == 0 && len(u.Applied) == 0 && len(u.Conflicts) == 0
}

// Commit атомарно фиксирует UpdateSet: либо все изменения, либо ничего.
// Вектор реплики только растет.
func (s *Store) Commit(ctx context.Context, u *UpdateSet) error {
	err := s.db.Update(ctx, func(tx kv.Tx) error {
		for _, item := range u.Items {
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to marshal item %s: %w", item.ID, err)
			}
			if err := tx.Put(bucketItems, []byte(item.ID), data); err != nil {
				return fmt.Errorf("failed to save item %s: %w", item.ID, err)
			}
		}

		for _, op := range u.Applied {
			if err := tx.Put(bucketApplied, []byte(op.ID), appliedValue(op.Origin, op.Seq)); err != nil {
				return fmt.Errorf("failed to mark operation applied: %w", err)
			}
		}

		for _, c := range u.Conflicts {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("failed to marshal conflict: %w", err)
			}
			if err := tx.Put(bucketConflicts, []byte(c.ItemID), data); err != nil {
				return fmt.Errorf("failed to save conflict: %w", err)
			}
		}

		vv, err := getVector(tx)
		if err != nil {
			return err
		}
		vv.Merge(u.Vector)
		if err := putJSON(tx, bucketMeta, metaVector, vv); err != nil {
			return err
		}

		s.clock.Observe(u.Timestamp)
		return putClock(tx, s.clock.GetTimestamp())
	})
	if err != nil {
		return fmt.Errorf("failed to commit update set: %w", err)
	}
	return nil
}

// Compact удаляет из журнала собственные операции с seq <= upto[self],
// уже примененные локально. Возвращает число удаленных записей.
func (s *Store) Compact(ctx context.Context, upto models.VersionVector) (int, error) {
	limit := upto.Get(s.replicaID)
	if limit == 0 {
		return 0, nil
	}

	removed := 0
	err := s.db.Update(ctx, func(tx kv.Tx) error {
		removed = 0

		var victims []*models.Operation
		err := tx.Scan(bucketJournal, nil, func(key, value []byte) error {
			seq, err := parseSeqKey(key)
			if err != nil {
				return err
			}
			if seq > limit {
				return kv.ErrStop
			}
			op, err := decodeOp(value)
			if err != nil {
				return err
			}
			victims = append(victims, op)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan journal: %w", err)
		}

		for _, op := range victims {
			applied, err := isApplied(tx, op.ID)
			if err != nil {
				return err
			}
			if !applied {
				continue
			}
			if err := tx.Delete(bucketJournal, seqKey(op.Seq)); err != nil {
				return err
			}
			if err := tx.Delete(bucketJournalItem, journalItemKey(op.ItemID, op.Seq)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to compact journal: %w", err)
	}

	if removed > 0 {
		s.logger.Debug("Journal compacted", "removed", removed, "upto", limit)
	}
	return removed, nil
}

// RecordPeer сохраняет последний подтвержденный пиром вектор.
func (s *Store) RecordPeer(ctx context.Context, peerID string, vv models.VersionVector) error {
	return s.db.Update(ctx, func(tx kv.Tx) error {
		return putJSON(tx, bucketPeers, []byte(peerID), vv)
	})
}

// PeerVector возвращает последний подтвержденный пиром вектор (пустой, если сессий не было).
func (s *Store) PeerVector(ctx context.Context, peerID string) (models.VersionVector, error) {
	vv := models.VersionVector{}
	err := s.db.View(ctx, func(r kv.Reader) error {
		data, err := r.Get(bucketPeers, []byte(peerID))
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &vv)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read peer vector: %w", err)
	}
	return vv, nil
}

// CategoryStats статистика журнала по одной категории.
type CategoryStats struct {
	Oldest time.Time // Oldest время самой старой неподтвержденной операции
	Bytes  int64     // Bytes суммарный размер операций
	Depth  int       // Depth число операций
}

// PendingStats статистика неподтвержденных операций журнала.
type PendingStats struct {
	Categories map[string]*CategoryStats
	Oldest     time.Time
	Bytes      int64
	Depth      int
}

// PendingStats возвращает глубину журнала, объем и возраст операций по категориям.
func (s *Store) PendingStats(ctx context.Context) (*PendingStats, error) {
	stats := &PendingStats{Categories: make(map[string]*CategoryStats)}
	err := s.db.View(ctx, func(r kv.Reader) error {
		return r.Scan(bucketJournal, nil, func(_, value []byte) error {
			op, err := decodeOp(value)
			if err != nil {
				return err
			}
			size := int64(op.Size())

			stats.Depth++
			stats.Bytes += size
			if stats.Oldest.IsZero() || op.WallTime.Before(stats.Oldest) {
				stats.Oldest = op.WallTime
			}

			cs, ok := stats.Categories[op.Category]
			if !ok {
				cs = &CategoryStats{}
				stats.Categories[op.Category] = cs
			}
			cs.Depth++
			cs.Bytes += size
			if cs.Oldest.IsZero() || op.WallTime.Before(cs.Oldest) {
				cs.Oldest = op.WallTime
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect journal stats: %w", err)
	}
	return stats, nil
}

// Conflicts возвращает элементы, ожидающие ручного решения.
func (s *Store) Conflicts(ctx context.Context) ([]*models.ManualConflict, error) {
	var out []*models.ManualConflict
	err := s.db.View(ctx, func(r kv.Reader) error {
		return r.Scan(bucketConflicts, nil, func(_, value []byte) error {
			var c models.ManualConflict
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			out = append(out, &c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return out, nil
}

// ClearConflict снимает отметку ручного решения с элемента.
func (s *Store) ClearConflict(ctx context.Context, itemID string) error {
	return s.db.Update(ctx, func(tx kv.Tx) error {
		if _, err := tx.Get(bucketConflicts, []byte(itemID)); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return ErrConflictNotFound
			}
			return err
		}
		return tx.Delete(bucketConflicts, []byte(itemID))
	})
}

// Dump возвращает содержимое всех бакетов. Используется в тестах
// для побайтного сравнения состояний.
func (s *Store) Dump(ctx context.Context) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	err := s.db.View(ctx, func(r kv.Reader) error {
		for _, bucket := range Buckets() {
			entries := make(map[string]string)
			err := r.Scan(bucket, nil, func(key, value []byte) error {
				entries[string(key)] = string(value)
				return nil
			})
			if err != nil {
				return err
			}
			out[bucket] = entries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getItem(r kv.Reader, id string) (*models.DataItem, error) {
	data, err := r.Get(bucketItems, []byte(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item: %w", err)
	}
	return decodeItem(data)
}

func decodeItem(data []byte) (*models.DataItem, error) {
	item := &models.DataItem{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	if item.Version == nil {
		item.Version = models.VersionVector{}
	}
	return item, nil
}

func decodeOp(data []byte) (*models.Operation, error) {
	op := &models.Operation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	if op.Deps == nil {
		op.Deps = models.VersionVector{}
	}
	return op, nil
}

func isApplied(r kv.Reader, opID string) (bool, error) {
	_, err := r.Get(bucketApplied, []byte(opID))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read applied index: %w", err)
	}
	return true, nil
}

func getUint(r kv.Reader, key []byte) (uint64, error) {
	data, err := r.Get(bucketMeta, key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	v, err := decodeUint(data)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, nil
}

func getVector(r kv.Reader) (models.VersionVector, error) {
	vv := models.VersionVector{}
	data, err := r.Get(bucketMeta, metaVector)
	if errors.Is(err, kv.ErrNotFound) {
		return vv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vector: %w", err)
	}
	if err := json.Unmarshal(data, &vv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
	}
	return vv, nil
}

func putJSON(tx kv.Tx, bucket string, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := tx.Put(bucket, key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func putClock(tx kv.Tx, ts int64) error {
	if err := tx.Put(bucketMeta, metaClock, []byte(fmt.Sprint(ts))); err != nil {
		return fmt.Errorf("failed to save clock: %w", err)
	}
	return nil
}
