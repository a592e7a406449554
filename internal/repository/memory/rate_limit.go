package memory

import (
	"context"
	"sync"
	"time"

	"contact_hub/internal/repository"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

type rateLimitRepository struct {
	mu       sync.Mutex
	counters map[string]*counter
}

func NewRateLimitRepository() repository.RateLimitRepository {
	return &rateLimitRepository{counters: make(map[string]*counter)}
}

func (r *rateLimitRepository) current(key string, now time.Time) *counter {
	c, ok := r.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		return nil
	}
	return c
}

func (r *rateLimitRepository) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.current(key, time.Now())
	if c == nil {
		return true, nil
	}
	return c.count < int64(limit), nil
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	c := r.current(key, now)
	if c == nil {
		c = &counter{expiresAt: now.Add(window)}
		r.counters[key] = c
	}
	c.count++
	return c.count, nil
}
