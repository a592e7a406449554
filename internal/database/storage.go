package database

import (
	"context"
	"fmt"

	"contact_hub/internal/config"
	"contact_hub/internal/repository"
	"contact_hub/internal/repository/memory"
	"contact_hub/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Storage - выбранный драйвером набор репозиториев и его соединения
type Storage struct {
	Repos *repository.Repositories
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// Open подключает хранилище согласно STORAGE_DRIVER
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Storage, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		return &Storage{Repos: memory.NewRepositories(memory.NewStore())}, nil
	}

	pool, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection established")

	rdb, err := ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("Redis connection established")

	return &Storage{
		Repos: repository.NewRepositories(pool, rdb, log),
		Pool:  pool,
		Redis: rdb,
	}, nil
}

// Migrate применяет схему; для memory - ничего не делает
func (s *Storage) Migrate(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	if err := repository.Migrate(ctx, s.Pool); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// Checks - проверки доступности для /health
func (s *Storage) Checks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if s.Pool != nil {
		checks["postgres"] = s.Pool.Ping
	}
	if s.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return s.Redis.Ping(ctx).Err() }
	}
	return checks
}

func (s *Storage) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
