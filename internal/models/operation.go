package models

import (
	"errors"
	"fmt"
	"time"
)

// OpKind тип операции над элементом.
type OpKind string

const (
	OpPut    OpKind = "put"
	OpDelete OpKind = "delete"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
)

// Operation запись журнала: одна мутация элемента, созданная репликой Origin.
// Seq монотонно растет в пределах реплики и вместе с Origin однозначно
// идентифицирует операцию так же, как ID.
type Operation struct {
	WallTime  time.Time     `json:"wall_time"` // WallTime физическое время создания (для статистики)
	Deps      VersionVector `json:"deps"`      // Deps версия элемента, которую видел автор
	ID        string        `json:"id"`        // ID уникальный идентификатор (UUID)
	ItemID    string        `json:"item_id"`   // ItemID ключ изменяемого элемента
	Category  string        `json:"category"`  // Category категория элемента
	Origin    string        `json:"origin"`    // Origin реплика-автор
	Kind      OpKind        `json:"kind"`      // Kind put или delete
	Payload   []byte        `json:"payload"`   // Payload закодированное значение для put
	Seq       uint64        `json:"seq"`       // Seq порядковый номер у автора
	Timestamp int64         `json:"timestamp"` // Timestamp гибридная метка времени
}

// Stamp возвращает LWW метку операции.
func (o *Operation) Stamp() Stamp {
	return Stamp{Origin: o.Origin, Timestamp: o.Timestamp, Seq: o.Seq}
}

// Validate проверяет структурную корректность операции, полученной от пира.
func (o *Operation) Validate() error {
	switch {
	case o == nil:
		return fmt.Errorf("%w: nil", ErrInvalidOperation)
	case o.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidOperation)
	case o.ItemID == "":
		return fmt.Errorf("%w: %s: empty item id", ErrInvalidOperation, o.ID)
	case o.Category == "":
		return fmt.Errorf("%w: %s: empty category", ErrInvalidOperation, o.ID)
	case o.Origin == "":
		return fmt.Errorf("%w: %s: empty origin", ErrInvalidOperation, o.ID)
	case o.Seq == 0:
		return fmt.Errorf("%w: %s: zero seq", ErrInvalidOperation, o.ID)
	case o.Timestamp <= 0:
		return fmt.Errorf("%w: %s: non-positive timestamp", ErrInvalidOperation, o.ID)
	case o.Kind != OpPut && o.Kind != OpDelete:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidOperation, o.ID, o.Kind)
	}
	// автор не может зависеть от собственных операций, которых еще не создал
	if o.Deps.Get(o.Origin) >= o.Seq {
		return fmt.Errorf("%w: %s: depends on own future seq", ErrInvalidOperation, o.ID)
	}
	return nil
}

// Size приблизительный размер операции на проводе в байтах.
func (o *Operation) Size() int {
	n := len(o.ID) + len(o.ItemID) + len(o.Category) + len(o.Origin) + len(o.Payload) + 48
	for id := range o.Deps {
		n += len(id) + 8
	}
	return n
}

// Clone создает глубокую копию операции
func (o *Operation) Clone() *Operation {
	var payload []byte
	if o.Payload != nil {
		payload = make([]byte, len(o.Payload))
		copy(payload, o.Payload)
	}

	return &Operation{
		WallTime:  o.WallTime,
		Deps:      o.Deps.Clone(),
		ID:        o.ID,
		ItemID:    o.ItemID,
		Category:  o.Category,
		Origin:    o.Origin,
		Kind:      o.Kind,
		Payload:   payload,
		Seq:       o.Seq,
		Timestamp: o.Timestamp,
	}
}
