package repository

import (
	"contact_hub/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	Contact      ContactRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Audit        AuditRepository
	Lock         LockRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Contact:      NewContactRepository(db, log),
		Conversation: NewConversationRepository(db, log),
		Message:      NewMessageRepository(db, log),
		Audit:        NewAuditRepository(db, log),
		Lock:         NewLockRepository(redis, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}

	log.Info("Postgres repositories initialized")

	return repos
}
