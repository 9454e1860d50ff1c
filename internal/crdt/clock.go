package crdt

import (
	"sync"
	"time"
)

// logicalBits младшие биты метки, отведенные под логический счетчик.
const logicalBits = 16

const logicalMask = 1<<logicalBits - 1

// HybridClock гибридные логические часы: физическое время в миллисекундах
// в старших битах и логический счетчик в младших 16 битах.
// Метки монотонны в пределах реплики и не меньше любой наблюдаемой удаленной метки,
// что сохраняет свойство часов Лампорта при близости к реальному времени.
type HybridClock struct {
	now    func() time.Time // источник физического времени
	nodeID string           // идентификатор реплики
	latest int64            // последняя выданная или наблюдаемая метка
	mu     sync.Mutex       // мьютекс для потокобезопасности
}

// NewHybridClock создает часы для реплики nodeID.
func NewHybridClock(nodeID string) *HybridClock {
	return NewHybridClockWithTime(nodeID, time.Now)
}

// NewHybridClockWithTime создает часы с заданным источником времени.
// Используется в тестах.
func NewHybridClockWithTime(nodeID string, now func() time.Time) *HybridClock {
	return &HybridClock{
		now:    now,
		nodeID: nodeID,
	}
}

// Pack собирает метку из физического времени и логического счетчика.
func Pack(physical time.Time, logical int64) int64 {
	return physical.UnixMilli()<<logicalBits | (logical & logicalMask)
}

// Physical извлекает физическую часть метки.
func Physical(ts int64) time.Time {
	return time.UnixMilli(ts >> logicalBits).UTC()
}

// Logical извлекает логическую часть метки.
func Logical(ts int64) int64 {
	return ts & logicalMask
}

// Tick выдает новую метку для локального события.
func (c *HybridClock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = c.next(c.latest)
	return c.latest
}

// Update учитывает удаленную метку и возвращает новую локальную,
// строго большую и локальной, и удаленной.
func (c *HybridClock) Update(remote int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.latest {
		c.latest = remote
	}
	c.latest = c.next(c.latest)
	return c.latest
}

// Observe поднимает часы до remote без выдачи новой метки.
func (c *HybridClock) Observe(remote int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.latest {
		c.latest = remote
	}
}

// next возвращает метку больше prev, опираясь на физическое время, если оно ушло вперед.
func (c *HybridClock) next(prev int64) int64 {
	wall := Pack(c.now(), 0)
	if wall > prev {
		return wall
	}
	// физическое время отстает или совпадает: растим логическую часть,
	// переполнение счетчика переносится в миллисекунды
	return prev + 1
}

// GetTimestamp возвращает последнюю метку без изменения часов.
func (c *HybridClock) GetTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.latest
}

// GetNodeID возвращает идентификатор реплики.
func (c *HybridClock) GetNodeID() string {
	return c.nodeID
}

// SetTimestamp восстанавливает состояние часов после перезапуска.
// Часы никогда не откатываются назад.
func (c *HybridClock) SetTimestamp(ts int64) {
	c.Observe(ts)
}
