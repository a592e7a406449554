package service

import (
	"contact_hub/internal/config"
	"contact_hub/internal/repository"
	"contact_hub/pkg/logger"
)

type Services struct {
	Identity     IdentityService
	Conversation ConversationService
	// Merge - слияние под блокировками Redis
	Merge     Merger
	RateLimit RateLimitService
	Audit     AuditService
}

// Deps - необязательные внешние участники
type Deps struct {
	Notifier    Notifier
	NameFetcher NameFetcher
}

func NewServices(repos *repository.Repositories, cfg *config.Config, deps Deps, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	identity := NewIdentityService(repos.Contact, audit, deps.NameFetcher, deps.Notifier, log)
	merger := NewMergeService(repos, audit, deps.Notifier, log)

	services := &Services{
		Identity:     identity,
		Conversation: NewConversationService(repos, identity, deps.Notifier, log),
		Merge:        NewLockedMerger(merger, repos.Lock, cfg.Merge.LockTTL, log),
		RateLimit:    NewRateLimitService(repos.RateLimit, log),
		Audit:        audit,
	}

	log.Info("Services initialized", "storage", cfg.Storage.Driver)

	return services
}
