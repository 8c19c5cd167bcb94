package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракты хранилища. Реализации живут в infrastructure/progressstore
// поверх key-value бэкендов (memory, redis, postgres).
// ══════════════════════════════════════════════════════════════════════════════

// SessionPointer - отдельная запись-указатель, связывающая выданный при
// регистрации токен восстановления с записью прогресса. Удаляется при
// logout; сама запись прогресса при этом переживает.
type SessionPointer struct {
	VisitorID string    `json:"visitor_id"`
	Email     string    `json:"email,omitempty"`
	TokenHash string    `json:"token_hash"`
	LoginTime time.Time `json:"login_time"`
}

// LoadHints - всё, что клиент может предъявить для восстановления записи.
type LoadHints struct {
	// VisitorID - локально закешированный лендингом идентификатор.
	VisitorID string

	// SessionToken - сырой токен восстановления, выданный при регистрации.
	SessionToken string
}

// Store определяет контракт адаптера хранилища прогресса. Все операции
// деградируют мягко: ни один сбой хранилища не долетает до пользователя.
type Store interface {
	// VisitorID выдаёт новый стабильный идентификатор посетителя и заводит
	// под него дефолтную запись. Не возвращает ошибку: при недоступном
	// хранилище идентификатор всё равно выдаётся, запись появится при
	// первом успешном Save.
	VisitorID(ctx context.Context) string

	// Load восстанавливает запись по ступеням: сессия -> запись по
	// visitor id -> свежий дефолт. Всегда возвращает пригодную запись.
	Load(ctx context.Context, hints LoadHints) *Record

	// Save валидирует и сохраняет запись целиком (всё или ничего).
	// Ошибка записи логируется вызывающим; откатов нет.
	Save(ctx context.Context, record *Record) error

	// SaveSession записывает указатель сессии для идентифицированной
	// записи. rawToken хешируется, в открытом виде не хранится.
	SaveSession(ctx context.Context, record *Record, rawToken string) error

	// ClearSession удаляет только указатель сессии. История анонимного
	// идентификатора переживает logout.
	ClearSession(ctx context.Context, visitorID string) error
}
