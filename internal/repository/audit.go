package repository

import (
	"context"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, tenant_id, actor_id, actor_kind, subject_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	payload := auditLog.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	err := r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.TenantID, auditLog.ActorID, auditLog.ActorKind,
		auditLog.SubjectID, auditLog.EventType, payload,
	).Scan(&auditLog.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", auditLog.EventType)
		return apperrors.Internal("create audit log", err)
	}

	return nil
}
