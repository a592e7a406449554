package memory

import (
	"context"

	"contact_hub/internal/domain"
)

type auditRepository struct {
	s *Store
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.auditSeq++
	auditLog.ID = r.s.auditSeq

	entry := *auditLog
	r.s.audit = append(r.s.audit, &entry)
	return nil
}
