package memory

import (
	"context"
	"time"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"

	"github.com/google/uuid"
)

type contactRepository struct {
	s *Store
}

// conflictLocked проверяет уникальность идентификаторов среди активных контактов тенанта.
// Вызывается под s.mu.
func (s *Store) conflictLocked(candidate *domain.Contact) bool {
	if !candidate.IsActive() {
		return false
	}
	for _, existing := range s.contacts {
		if existing.ID == candidate.ID || !existing.IsActive() || existing.TenantID != candidate.TenantID {
			continue
		}
		for _, ch := range domain.SupportedChannels() {
			a, b := existing.Identifier(ch), candidate.Identifier(ch)
			if a != nil && b != nil && *a == *b {
				return true
			}
		}
	}
	return false
}

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Internal("create contact", err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.contacts[contact.ID]; exists {
		return apperrors.Conflict("contact %s already exists", contact.ID)
	}
	if r.s.conflictLocked(contact) {
		return apperrors.Conflict("contact identifier already exists in tenant %s", contact.TenantID)
	}

	r.s.contacts[contact.ID] = contact.Clone()
	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	contact, ok := r.s.contacts[id]
	if !ok {
		return nil, apperrors.NotFound("contact %s", id)
	}
	return contact.Clone(), nil
}

func (r *contactRepository) FindActiveByIdentifier(ctx context.Context, tenantID string, channel domain.Channel, identifier string) (*domain.Contact, error) {
	if !channel.Valid() {
		return nil, apperrors.InvalidArgument("unsupported channel %q", channel)
	}
	identifier = domain.NormalizeIdentifier(identifier)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, contact := range r.s.contacts {
		if contact.TenantID != tenantID || !contact.IsActive() {
			continue
		}
		if v := contact.Identifier(channel); v != nil && *v == identifier {
			return contact.Clone(), nil
		}
	}
	return nil, apperrors.NotFound("contact with %s identifier", channel)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.updateLocked(contact, time.Now())
}

func (s *Store) updateLocked(contact *domain.Contact, now time.Time) error {
	if _, ok := s.contacts[contact.ID]; !ok {
		return apperrors.NotFound("contact %s", contact.ID)
	}
	if s.conflictLocked(contact) {
		return apperrors.Conflict("identifier already used by another active contact")
	}
	contact.UpdatedAt = now
	s.contacts[contact.ID] = contact.Clone()
	return nil
}

func (r *contactRepository) TouchInteraction(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	contact, ok := r.s.contacts[id]
	if !ok {
		return nil
	}
	if contact.LastInteractionAt == nil || contact.LastInteractionAt.Before(at) {
		t := at
		contact.LastInteractionAt = &t
	}
	return nil
}

func (r *contactRepository) ApplyMerge(ctx context.Context, merged, retired *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Транзакция: при ошибке возвращаем прежнее состояние retired
	previous, ok := r.s.contacts[retired.ID]
	if !ok {
		return apperrors.NotFound("contact %s", retired.ID)
	}
	previous = previous.Clone()

	now := time.Now()
	if err := r.s.updateLocked(retired, now); err != nil {
		return err
	}
	if err := r.s.updateLocked(merged, now); err != nil {
		r.s.contacts[retired.ID] = previous
		return err
	}
	return nil
}
