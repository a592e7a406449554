package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRepository interface {
	// Create возвращает ErrConflict, если активный контакт с таким идентификатором уже есть
	Create(ctx context.Context, contact *domain.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	FindActiveByIdentifier(ctx context.Context, tenantID string, channel domain.Channel, identifier string) (*domain.Contact, error)
	Update(ctx context.Context, contact *domain.Contact) error
	TouchInteraction(ctx context.Context, id uuid.UUID, at time.Time) error
	// ApplyMerge атомарно выводит retired из оборота и сохраняет merged.
	// retired пишется первым, чтобы освободить идентификаторы для merged.
	ApplyMerge(ctx context.Context, merged, retired *domain.Contact) error
}

type contactRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewContactRepository(db *pgxpool.Pool, log logger.Logger) ContactRepository {
	return &contactRepository{db: db, log: log}
}

const contactColumns = `
	id, tenant_id, whatsapp_phone, instagram_id, messenger_id, display_name, email, status,
	crm_stage, crm_partner_id, crm_lead_id, notes, attributes, last_interaction_at,
	created_at, updated_at`

func scanContact(row pgx.Row) (*domain.Contact, error) {
	contact := &domain.Contact{}
	var attributes map[string]any
	err := row.Scan(
		&contact.ID, &contact.TenantID, &contact.WhatsAppPhone, &contact.InstagramID, &contact.MessengerID,
		&contact.DisplayName, &contact.Email, &contact.Status,
		&contact.CRMStage, &contact.CRMPartnerID, &contact.CRMLeadID, &contact.Notes,
		&attributes, &contact.LastInteractionAt, &contact.CreatedAt, &contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attributes) > 0 {
		contact.Attributes = attributes
	}
	return contact, nil
}

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (` + contactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		contact.ID, contact.TenantID, contact.WhatsAppPhone, contact.InstagramID, contact.MessengerID,
		contact.DisplayName, contact.Email, contact.Status,
		contact.CRMStage, contact.CRMPartnerID, contact.CRMLeadID, contact.Notes,
		attributesParam(contact.Attributes), contact.LastInteractionAt, contact.CreatedAt, contact.UpdatedAt,
	).Scan(&contact.CreatedAt, &contact.UpdatedAt)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			r.log.Warn("Contact identifier already taken", "tenant_id", contact.TenantID, "constraint", constraint)
			return apperrors.Conflict("contact identifier already exists in tenant %s", contact.TenantID)
		}
		r.log.Error("Failed to create contact", "error", err, "tenant_id", contact.TenantID)
		return apperrors.Internal("create contact", err)
	}

	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	contact, err := scanContact(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("contact %s", id)
		}
		r.log.Error("Failed to get contact by ID", "error", err, "contact_id", id)
		return nil, apperrors.Internal("get contact", err)
	}

	return contact, nil
}

func (r *contactRepository) FindActiveByIdentifier(ctx context.Context, tenantID string, channel domain.Channel, identifier string) (*domain.Contact, error) {
	column := channel.IdentifierColumn()
	if column == "" {
		return nil, apperrors.InvalidArgument("unsupported channel %q", channel)
	}

	// column берется из фиксированного списка, подстановка безопасна
	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE tenant_id = $1 AND %s = $2 AND status = $3
		LIMIT 1
	`, contactColumns, column)

	contact, err := scanContact(r.db.QueryRow(ctx, query, tenantID, domain.NormalizeIdentifier(identifier), domain.ContactStatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("contact with %s identifier", channel)
		}
		r.log.Error("Failed to find contact by identifier", "error", err, "tenant_id", tenantID, "channel", channel)
		return nil, apperrors.Internal("find contact", err)
	}

	return contact, nil
}

const updateContactQuery = `
	UPDATE contacts
	SET whatsapp_phone = $2, instagram_id = $3, messenger_id = $4, display_name = $5, email = $6,
	    status = $7, crm_stage = $8, crm_partner_id = $9, crm_lead_id = $10, notes = $11,
	    attributes = $12, last_interaction_at = $13, updated_at = $14
	WHERE id = $1
	RETURNING updated_at
`

func updateContact(ctx context.Context, q querier, contact *domain.Contact) error {
	return q.QueryRow(ctx, updateContactQuery,
		contact.ID, contact.WhatsAppPhone, contact.InstagramID, contact.MessengerID, contact.DisplayName,
		contact.Email, contact.Status, contact.CRMStage, contact.CRMPartnerID, contact.CRMLeadID, contact.Notes,
		attributesParam(contact.Attributes), contact.LastInteractionAt, time.Now(),
	).Scan(&contact.UpdatedAt)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	if err := updateContact(ctx, r.db, contact); err != nil {
		return r.mapWriteError("update contact", contact, err)
	}
	return nil
}

func (r *contactRepository) TouchInteraction(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE contacts
		SET last_interaction_at = GREATEST(COALESCE(last_interaction_at, $2), $2)
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id, at); err != nil {
		r.log.Error("Failed to touch contact interaction", "error", err, "contact_id", id)
		return apperrors.Internal("touch contact", err)
	}

	return nil
}

func (r *contactRepository) ApplyMerge(ctx context.Context, merged, retired *domain.Contact) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin merge transaction", "error", err)
		return apperrors.Internal("begin merge", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updateContact(ctx, tx, retired); err != nil {
		return r.mapWriteError("retire contact", retired, err)
	}
	if err := updateContact(ctx, tx, merged); err != nil {
		return r.mapWriteError("update merged contact", merged, err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit merge transaction", "error", err)
		return apperrors.Internal("commit merge", err)
	}

	return nil
}

func (r *contactRepository) mapWriteError(op string, contact *domain.Contact, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("contact %s", contact.ID)
	}
	if constraint, ok := uniqueViolation(err); ok {
		r.log.Warn("Contact identifier conflict", "contact_id", contact.ID, "constraint", constraint)
		return apperrors.Conflict("%s: identifier already used by another active contact", op)
	}
	r.log.Error("Failed to write contact", "error", err, "op", op, "contact_id", contact.ID)
	return apperrors.Internal(op, err)
}

func attributesParam(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return attrs
}
