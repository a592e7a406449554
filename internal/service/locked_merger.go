package service

import (
	"context"
	"sort"
	"time"

	"contact_hub/internal/metrics"
	"contact_hub/internal/repository"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
)

const DefaultMergeLockTTL = 2 * time.Minute

// LockedMerger не дает двум слияниям одновременно трогать один контакт.
// Блокировки берутся на оба id в отсортированном порядке; занятая блокировка
// означает ErrConflict без ожидания.
type LockedMerger struct {
	inner Merger
	locks repository.LockRepository
	ttl   time.Duration
	log   logger.Logger
}

func NewLockedMerger(inner Merger, locks repository.LockRepository, ttl time.Duration, log logger.Logger) *LockedMerger {
	if ttl <= 0 {
		ttl = DefaultMergeLockTTL
	}
	return &LockedMerger{inner: inner, locks: locks, ttl: ttl, log: log}
}

func mergeLockKey(id uuid.UUID) string {
	return "merge:contact:" + id.String()
}

func (m *LockedMerger) Merge(ctx context.Context, fromID, toID uuid.UUID) (*MergeResult, error) {
	// Слияние не должно обрываться на середине из-за отмены запроса клиента
	ctx = context.WithoutCancel(ctx)

	if fromID == toID {
		return m.inner.Merge(ctx, fromID, toID)
	}

	keys := []string{mergeLockKey(fromID), mergeLockKey(toID)}
	sort.Strings(keys)

	for _, key := range keys {
		token, ok, err := m.locks.Acquire(ctx, key, m.ttl)
		if err != nil {
			return &MergeResult{}, err
		}
		if !ok {
			metrics.Merges.WithLabelValues("busy").Inc()
			return &MergeResult{}, apperrors.Conflict("merge already in progress for %s", key)
		}
		defer m.release(ctx, key, token)
	}

	return m.inner.Merge(ctx, fromID, toID)
}

func (m *LockedMerger) release(ctx context.Context, key, token string) {
	if err := m.locks.Release(ctx, key, token); err != nil {
		m.log.Warn("Failed to release merge lock", "error", err, "key", key)
	}
}
