package service

import (
	"context"
	"time"

	"contact_hub/internal/repository"
	"contact_hub/pkg/logger"
)

type RateLimitService interface {
	// Allow учитывает запрос и сообщает, укладывается ли ключ в limit за window
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	allowed, err := s.rateLimitRepo.CheckLimit(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	if !allowed {
		s.log.Debug("Rate limit exceeded", "key", key)
		return false, nil
	}

	if _, err := s.rateLimitRepo.Increment(ctx, key, window); err != nil {
		return false, err
	}
	return true, nil
}
