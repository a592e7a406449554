package repository

import (
	"context"
	"errors"
	"time"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxParticipantCASAttempts - сколько раз повторяется read-map-write при гонке версий
const MaxParticipantCASAttempts = 5

type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// FindActiveByParticipant возвращает самую старую активную беседу канала с участником
	FindActiveByParticipant(ctx context.Context, tenantID string, channel domain.Channel, contactID uuid.UUID) (*domain.Conversation, error)
	// ListByParticipants - все беседы тенанта (любой канал и статус), где есть хотя бы один из contactIDs
	ListByParticipants(ctx context.Context, tenantID string, contactIDs ...uuid.UUID) ([]*domain.Conversation, error)
	ListByTenant(ctx context.Context, tenantID string, channel domain.Channel, limit, offset int) ([]*domain.Conversation, error)
	// ReplaceParticipant читает массив целиком, заменяет from на to и записывает обратно под CAS по version
	ReplaceParticipant(ctx context.Context, id, from, to uuid.UUID) (bool, error)
	// RecordMessage выставляет last_message_id и увеличивает version
	RecordMessage(ctx context.Context, id, messageID uuid.UUID) (*domain.Conversation, error)
	// RefreshLastMessage пересчитывает last_message_id по самому свежему сообщению и увеличивает version
	RefreshLastMessage(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, ids ...uuid.UUID) (int64, error)
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

const conversationColumns = `
	id, tenant_id, channel, type, participants::text[], status, last_message_id, version, created_at, updated_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	conversation := &domain.Conversation{}
	var participants []string
	err := row.Scan(
		&conversation.ID, &conversation.TenantID, &conversation.Channel, &conversation.Type,
		&participants, &conversation.Status, &conversation.LastMessageID, &conversation.Version,
		&conversation.CreatedAt, &conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ids, err := parseUUIDs(participants)
	if err != nil {
		return nil, err
	}
	conversation.Participants = ids
	return conversation, nil
}

func (r *conversationRepository) collect(rows pgx.Rows) ([]*domain.Conversation, error) {
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, apperrors.Internal("scan conversation", err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("iterate conversations", err)
	}

	return conversations, nil
}

func (r *conversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	conversation.Participants = domain.NormalizeParticipants(conversation.Participants)

	query := `
		INSERT INTO conversations (id, tenant_id, channel, type, participants, status, last_message_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::uuid[], $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		conversation.ID, conversation.TenantID, conversation.Channel, conversation.Type,
		uuidStrings(conversation.Participants), conversation.Status, conversation.LastMessageID,
		conversation.Version, conversation.CreatedAt, conversation.UpdatedAt,
	).Scan(&conversation.CreatedAt, &conversation.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create conversation", "error", err, "tenant_id", conversation.TenantID)
		return apperrors.Internal("create conversation", err)
	}

	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conversation, err := scanConversation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("conversation %s", id)
		}
		r.log.Error("Failed to get conversation by ID", "error", err, "conversation_id", id)
		return nil, apperrors.Internal("get conversation", err)
	}

	return conversation, nil
}

func (r *conversationRepository) FindActiveByParticipant(ctx context.Context, tenantID string, channel domain.Channel, contactID uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND channel = $2 AND status = $3 AND participants @> ARRAY[$4::uuid]
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	conversation, err := scanConversation(r.db.QueryRow(ctx, query, tenantID, channel, domain.ConversationStatusActive, contactID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("active %s conversation for contact %s", channel, contactID)
		}
		r.log.Error("Failed to find conversation by participant", "error", err, "contact_id", contactID)
		return nil, apperrors.Internal("find conversation", err)
	}

	return conversation, nil
}

func (r *conversationRepository) ListByParticipants(ctx context.Context, tenantID string, contactIDs ...uuid.UUID) ([]*domain.Conversation, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND participants && $2::uuid[]
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, tenantID, uuidStrings(contactIDs))
	if err != nil {
		r.log.Error("Failed to list conversations by participants", "error", err, "tenant_id", tenantID)
		return nil, apperrors.Internal("list conversations", err)
	}

	return r.collect(rows)
}

func (r *conversationRepository) ListByTenant(ctx context.Context, tenantID string, channel domain.Channel, limit, offset int) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE tenant_id = $1 AND status = $2 AND ($3 = '' OR channel = $3)
		ORDER BY updated_at DESC, id ASC
		LIMIT $4 OFFSET $5
	`

	rows, err := r.db.Query(ctx, query, tenantID, domain.ConversationStatusActive, string(channel), limit, offset)
	if err != nil {
		r.log.Error("Failed to list tenant conversations", "error", err, "tenant_id", tenantID)
		return nil, apperrors.Internal("list conversations", err)
	}

	return r.collect(rows)
}

func (r *conversationRepository) ReplaceParticipant(ctx context.Context, id, from, to uuid.UUID) (bool, error) {
	for attempt := 0; attempt < MaxParticipantCASAttempts; attempt++ {
		var raw []string
		var version int64
		err := r.db.QueryRow(ctx, `SELECT participants::text[], version FROM conversations WHERE id = $1`, id).Scan(&raw, &version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, apperrors.NotFound("conversation %s", id)
			}
			r.log.Error("Failed to read participants", "error", err, "conversation_id", id)
			return false, apperrors.Internal("read participants", err)
		}

		current, err := parseUUIDs(raw)
		if err != nil {
			return false, apperrors.Internal("parse participants", err)
		}
		next, changed := domain.ReplaceParticipant(current, from, to)
		if !changed {
			return false, nil
		}

		tag, err := r.db.Exec(ctx, `
			UPDATE conversations
			SET participants = $2::uuid[], version = version + 1, updated_at = $4
			WHERE id = $1 AND version = $3
		`, id, uuidStrings(next), version, time.Now())
		if err != nil {
			r.log.Error("Failed to write participants", "error", err, "conversation_id", id)
			return false, apperrors.Internal("write participants", err)
		}
		if tag.RowsAffected() == 1 {
			return true, nil
		}

		r.log.Debug("Participants version moved, retrying", "conversation_id", id, "attempt", attempt+1)
	}

	return false, apperrors.Conflict("conversation %s participants changed concurrently", id)
}

func (r *conversationRepository) RecordMessage(ctx context.Context, id, messageID uuid.UUID) (*domain.Conversation, error) {
	query := `
		UPDATE conversations
		SET last_message_id = $2, version = version + 1, updated_at = $3
		WHERE id = $1
		RETURNING ` + conversationColumns

	conversation, err := scanConversation(r.db.QueryRow(ctx, query, id, messageID, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("conversation %s", id)
		}
		r.log.Error("Failed to record last message", "error", err, "conversation_id", id)
		return nil, apperrors.Internal("record message", err)
	}

	return conversation, nil
}

func (r *conversationRepository) RefreshLastMessage(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE conversations c
		SET last_message_id = (
		        SELECT m.id FROM messages m
		        WHERE m.conversation_id = c.id
		        ORDER BY m.timestamp DESC, m.created_at DESC, m.id DESC
		        LIMIT 1
		    ),
		    version = c.version + 1,
		    updated_at = $2
		WHERE c.id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		r.log.Error("Failed to refresh last message", "error", err, "conversation_id", id)
		return apperrors.Internal("refresh last message", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("conversation %s", id)
	}

	return nil
}

func (r *conversationRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		r.log.Error("Failed to delete conversations", "error", err, "count", len(ids))
		return 0, apperrors.Internal("delete conversations", err)
	}

	return tag.RowsAffected(), nil
}
