package repository

import (
	"context"
	"time"

	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LockKeyPrefix - префикс ключей advisory-блокировок в Redis
const LockKeyPrefix = "lock:"

type LockRepository interface {
	// Acquire пытается занять ключ на ttl. ok=false, если ключ уже занят.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release освобождает ключ, только если он все еще принадлежит token
	Release(ctx context.Context, key, token string) error
}

// Удаляем ключ только если значение совпадает с токеном владельца
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type lockRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewLockRepository(rdb *redis.Client, log logger.Logger) LockRepository {
	return &lockRepository{rdb: rdb, log: log}
}

func (r *lockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := r.rdb.SetNX(ctx, LockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		r.log.Error("Failed to acquire lock", "error", err, "key", key)
		return "", false, apperrors.Internal("acquire lock", err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (r *lockRepository) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{LockKeyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		r.log.Error("Failed to release lock", "error", err, "key", key)
		return apperrors.Internal("release lock", err)
	}
	return nil
}
