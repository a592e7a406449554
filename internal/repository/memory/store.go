// Package memory - потокобезопасная реализация репозиториев в памяти процесса.
// Повторяет ограничения схемы Postgres: уникальность идентификаторов
// активных контактов и запрет удалять беседу, у которой остались сообщения.
package memory

import (
	"sync"

	"contact_hub/internal/domain"
	"contact_hub/internal/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu            sync.RWMutex
	contacts      map[uuid.UUID]*domain.Contact
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID]*domain.Message
	audit         []*domain.AuditLog
	auditSeq      int64
}

func NewStore() *Store {
	return &Store{
		contacts:      make(map[uuid.UUID]*domain.Contact),
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID]*domain.Message),
	}
}

// NewRepositories собирает набор репозиториев поверх одного Store
func NewRepositories(store *Store) *repository.Repositories {
	return &repository.Repositories{
		Contact:      &contactRepository{s: store},
		Conversation: &conversationRepository{s: store},
		Message:      &messageRepository{s: store},
		Audit:        &auditRepository{s: store},
		Lock:         NewLockRepository(),
		RateLimit:    NewRateLimitRepository(),
	}
}

// AuditLogs возвращает копию журнала аудита
func (s *Store) AuditLogs() []*domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}
