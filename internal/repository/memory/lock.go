package memory

import (
	"context"
	"sync"
	"time"

	"contact_hub/internal/repository"

	"github.com/google/uuid"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

type lockRepository struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

func NewLockRepository() repository.LockRepository {
	return &lockRepository{locks: make(map[string]lockEntry), now: time.Now}
}

func (r *lockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.locks[key]; ok && now.Before(entry.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	r.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (r *lockRepository) Release(ctx context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.locks[key]; ok && entry.token == token {
		delete(r.locks, key)
	}
	return nil
}
