package api

import "time"

// Operation представляет одну операцию журнала на проводе
type Operation struct {
	WallTime  time.Time         `json:"wall_time"`         // физическое время создания
	Deps      map[string]uint64 `json:"deps"`              // вектор элемента, видимый автору
	ID        string            `json:"id"`                // UUID операции
	ItemID    string            `json:"item_id"`           // ключ элемента
	Category  string            `json:"category"`          // категория элемента
	Origin    string            `json:"origin"`            // реплика-автор
	Kind      string            `json:"kind"`              // put | delete
	Payload   []byte            `json:"payload,omitempty"` // закодированное значение
	Seq       uint64            `json:"seq"`               // номер в журнале автора
	Timestamp int64             `json:"timestamp"`         // гибридная метка
}

// NegotiateRequest открывает сессию синхронизации
type NegotiateRequest struct {
	Vector    map[string]uint64 `json:"vector"`     // вектор инициатора
	SessionID string            `json:"session_id"` // UUID сессии
	ReplicaID string            `json:"replica_id"` // инициатор
}

// NegotiateResponse ответ пира на открытие сессии
type NegotiateResponse struct {
	Vector    map[string]uint64 `json:"vector"`     // вектор пира
	SessionID string            `json:"session_id"` // UUID сессии
	ReplicaID string            `json:"replica_id"` // идентификатор пира
	Pending   int               `json:"pending"`    // число операций пира для инициатора
}

// PushRequest передает пакет операций инициатора
type PushRequest struct {
	SessionID  string      `json:"session_id"`
	Operations []Operation `json:"operations"`
	Batch      int         `json:"batch"` // номер пакета
}

// PushResponse подтверждение приема пакета
type PushResponse struct {
	Accepted int `json:"accepted"` // число принятых операций
}

// PullRequest запрашивает следующий пакет операций пира
type PullRequest struct {
	SessionID string `json:"session_id"`
	After     int    `json:"after"`     // курсор: число уже полученных операций
	Limit     int    `json:"limit"`     // максимум операций в пакете
	MaxBytes  int64  `json:"max_bytes"` // ограничение объема пакета (0 - без ограничения)
}

// PullResponse пакет операций пира
type PullResponse struct {
	Operations []Operation `json:"operations"`
	Next       int         `json:"next"` // курсор для следующего запроса
	Done       bool        `json:"done"` // операций больше нет
}

// CommitRequest завершает сессию на стороне пира
type CommitRequest struct {
	Vector      map[string]uint64 `json:"vector"`                 // вектор инициатора после фиксации
	LeaseTokens map[string]string `json:"lease_tokens,omitempty"` // категория -> токен аренды
	SessionID   string            `json:"session_id"`
	Received    int               `json:"received"` // число операций пира, полученных инициатором
}

// CommitResponse результат фиксации на стороне пира
type CommitResponse struct {
	Vector    map[string]uint64 `json:"vector"`    // вектор пира после фиксации
	Applied   int               `json:"applied"`   // число примененных операций
	Deferred  int               `json:"deferred"`  // число отложенных операций
	Conflicts int               `json:"conflicts"` // число конкурентных групп
	Compacted int               `json:"compacted"` // число удаленных записей журнала пира
}

// AbortRequest прерывает сессию
type AbortRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// LeaseRequest запрос или освобождение аренды
type LeaseRequest struct {
	Key        string `json:"key"`
	Holder     string `json:"holder"`
	Token      string `json:"token,omitempty"` // только для освобождения
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// LeaseResponse выданная аренда
type LeaseResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Key       string    `json:"key"`
	Holder    string    `json:"holder"`
	Token     string    `json:"token"`
}
