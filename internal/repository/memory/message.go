package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"

	"github.com/google/uuid"
)

type messageRepository struct {
	s *Store
}

// messageAfter - порядок "новее" по timestamp, created_at, id
func messageAfter(a, b *domain.Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[message.ConversationID]; !ok {
		return apperrors.Internal("create message", errors.New("conversation does not exist"))
	}
	if _, exists := r.s.messages[message.ID]; exists {
		return apperrors.Conflict("message %s already exists", message.ID)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	r.s.messages[message.ID] = message.Clone()
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	message, ok := r.s.messages[id]
	if !ok {
		return nil, apperrors.NotFound("message %s", id)
	}
	return message.Clone(), nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m.Clone())
		}
	}
	// Сначала новые, обрезаем до limit, затем возвращаем хронологический порядок
	sort.Slice(out, func(i, j int) bool { return messageAfter(out[i], out[j]) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepository) Search(ctx context.Context, tenantID, query string, limit int) ([]*domain.Message, error) {
	needle := strings.ToLower(query)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Message
	for _, m := range r.s.messages {
		if m.TenantID == tenantID && strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return messageAfter(out[i], out[j]) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *messageRepository) CountByConversations(ctx context.Context, conversationIDs ...uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(conversationIDs))
	for _, id := range conversationIDs {
		wanted[id] = struct{}{}
	}

	var count int64
	for _, m := range r.s.messages {
		if _, ok := wanted[m.ConversationID]; ok {
			count++
		}
	}
	return count, nil
}

func (r *messageRepository) ReassignConversation(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var moved int64
	for _, m := range r.s.messages {
		if m.ConversationID == fromID {
			m.ConversationID = toID
			moved++
		}
	}
	return moved, nil
}

func (r *messageRepository) ReassignSender(ctx context.Context, tenantID string, from, to uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var updated int64
	for _, m := range r.s.messages {
		if m.TenantID == tenantID && m.SenderID == from && m.SenderKind == domain.PartyKindContact {
			m.SenderID = to
			updated++
		}
	}
	return updated, nil
}
