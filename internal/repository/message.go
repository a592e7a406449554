package repository

import (
	"context"
	"errors"
	"strings"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByConversation возвращает последние limit сообщений в хронологическом порядке
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error)
	CountByConversations(ctx context.Context, conversationIDs ...uuid.UUID) (int64, error)
	// Search - сообщения тенанта, содержащие query без учета регистра, сначала новые
	Search(ctx context.Context, tenantID, query string, limit int) ([]*domain.Message, error)
	// ReassignConversation переносит все сообщения fromID в toID; содержимое не меняется
	ReassignConversation(ctx context.Context, fromID, toID uuid.UUID) (int64, error)
	// ReassignSender меняет отправителя-контакт from на to во всем тенанте
	ReassignSender(ctx context.Context, tenantID string, from, to uuid.UUID) (int64, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `
	id, conversation_id, tenant_id, sender_id, sender_kind, content, type, direction, status,
	external_id, timestamp, created_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	message := &domain.Message{}
	err := row.Scan(
		&message.ID, &message.ConversationID, &message.TenantID, &message.SenderID, &message.SenderKind,
		&message.Content, &message.Type, &message.Direction, &message.Status,
		&message.ExternalID, &message.Timestamp, &message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		message.ID, message.ConversationID, message.TenantID, message.SenderID, message.SenderKind,
		message.Content, message.Type, message.Direction, message.Status,
		message.ExternalID, message.Timestamp, message.CreatedAt,
	).Scan(&message.CreatedAt)

	if err != nil {
		r.log.Error("Failed to create message", "error", err, "conversation_id", message.ConversationID)
		return apperrors.Internal("create message", err)
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	message, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("message %s", id)
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, apperrors.Internal("get message", err)
	}

	return message, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp DESC, created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		r.log.Error("Failed to get messages", "error", err, "conversation_id", conversationID)
		return nil, apperrors.Internal("list messages", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, apperrors.Internal("scan message", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("iterate messages", err)
	}

	// Разворачиваем, чтобы получить порядок от старых к новым
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// likeEscaper экранирует метасимволы LIKE в пользовательском запросе
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *messageRepository) Search(ctx context.Context, tenantID, query string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE tenant_id = $1 AND content ILIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY timestamp DESC, created_at DESC, id DESC
		LIMIT $3
	`, tenantID, likeEscaper.Replace(query), limit)
	if err != nil {
		r.log.Error("Failed to search messages", "error", err, "tenant_id", tenantID)
		return nil, apperrors.Internal("search messages", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, apperrors.Internal("scan message", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("iterate messages", err)
	}

	return messages, nil
}

func (r *messageRepository) CountByConversations(ctx context.Context, conversationIDs ...uuid.UUID) (int64, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}

	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ANY($1::uuid[])`,
		uuidStrings(conversationIDs),
	).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count messages", "error", err)
		return 0, apperrors.Internal("count messages", err)
	}

	return count, nil
}

func (r *messageRepository) ReassignConversation(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET conversation_id = $2 WHERE conversation_id = $1`,
		fromID, toID,
	)
	if err != nil {
		r.log.Error("Failed to reassign messages", "error", err, "from_conversation", fromID, "to_conversation", toID)
		return 0, apperrors.Internal("reassign messages", err)
	}

	return tag.RowsAffected(), nil
}

func (r *messageRepository) ReassignSender(ctx context.Context, tenantID string, from, to uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET sender_id = $3
		WHERE tenant_id = $1 AND sender_id = $2 AND sender_kind = $4
	`, tenantID, from, to, domain.PartyKindContact)
	if err != nil {
		r.log.Error("Failed to reassign message senders", "error", err, "from_contact", from, "to_contact", to)
		return 0, apperrors.Internal("reassign senders", err)
	}

	return tag.RowsAffected(), nil
}
