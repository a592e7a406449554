package service

import (
	"context"
	"time"

	"contact_hub/internal/domain"
	"contact_hub/internal/repository"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
)

type AuditService interface {
	LogEvent(ctx context.Context, tenantID string, subjectID *uuid.UUID, eventType string, payload map[string]any) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

// LogEvent пишет событие от имени сотрудника из контекста, иначе от имени системы
func (s *auditService) LogEvent(ctx context.Context, tenantID string, subjectID *uuid.UUID, eventType string, payload map[string]any) error {
	if payload == nil {
		payload = make(map[string]any)
	}

	auditLog := &domain.AuditLog{
		EventTime: time.Now(),
		TenantID:  tenantID,
		ActorKind: domain.ActorKindSystem,
		SubjectID: subjectID,
		EventType: eventType,
		Payload:   payload,
	}
	if actor, ok := ActorFromContext(ctx); ok {
		id := actor.ID
		auditLog.ActorID = &id
		auditLog.ActorKind = domain.ActorKindStaff
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}

type actorKey struct{}

// ContextWithActor помечает контекст сотрудником, выполняющим операцию
func ContextWithActor(ctx context.Context, actor *domain.StaffMember) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (*domain.StaffMember, bool) {
	actor, ok := ctx.Value(actorKey{}).(*domain.StaffMember)
	return actor, ok && actor != nil
}
