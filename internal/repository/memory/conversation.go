package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"

	"github.com/google/uuid"
)

type conversationRepository struct {
	s *Store
}

func sortConversations(list []*domain.Conversation) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}

func (r *conversationRepository) Create(ctx context.Context, conversation *domain.Conversation) error {
	conversation.Participants = domain.NormalizeParticipants(conversation.Participants)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.conversations[conversation.ID]; exists {
		return apperrors.Conflict("conversation %s already exists", conversation.ID)
	}
	now := time.Now()
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = conversation.CreatedAt
	}

	r.s.conversations[conversation.ID] = conversation.Clone()
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	conversation, ok := r.s.conversations[id]
	if !ok {
		return nil, apperrors.NotFound("conversation %s", id)
	}
	return conversation.Clone(), nil
}

func (r *conversationRepository) FindActiveByParticipant(ctx context.Context, tenantID string, channel domain.Channel, contactID uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found []*domain.Conversation
	for _, c := range r.s.conversations {
		if c.TenantID == tenantID && c.Channel == channel && c.Status == domain.ConversationStatusActive && c.HasParticipant(contactID) {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return nil, apperrors.NotFound("active %s conversation for contact %s", channel, contactID)
	}
	sortConversations(found)
	return found[0].Clone(), nil
}

func (r *conversationRepository) ListByParticipants(ctx context.Context, tenantID string, contactIDs ...uuid.UUID) ([]*domain.Conversation, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Conversation
	for _, c := range r.s.conversations {
		if c.TenantID != tenantID {
			continue
		}
		for _, id := range contactIDs {
			if c.HasParticipant(id) {
				out = append(out, c.Clone())
				break
			}
		}
	}
	sortConversations(out)
	return out, nil
}

func (r *conversationRepository) ListByTenant(ctx context.Context, tenantID string, channel domain.Channel, limit, offset int) ([]*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Conversation
	for _, c := range r.s.conversations {
		if c.TenantID != tenantID || c.Status != domain.ConversationStatusActive {
			continue
		}
		if channel != "" && c.Channel != channel {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *conversationRepository) ReplaceParticipant(ctx context.Context, id, from, to uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conversation, ok := r.s.conversations[id]
	if !ok {
		return false, apperrors.NotFound("conversation %s", id)
	}
	next, changed := domain.ReplaceParticipant(conversation.Participants, from, to)
	if !changed {
		return false, nil
	}
	conversation.Participants = next
	conversation.Version++
	conversation.UpdatedAt = time.Now()
	return true, nil
}

func (r *conversationRepository) RecordMessage(ctx context.Context, id, messageID uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conversation, ok := r.s.conversations[id]
	if !ok {
		return nil, apperrors.NotFound("conversation %s", id)
	}
	last := messageID
	conversation.LastMessageID = &last
	conversation.Version++
	conversation.UpdatedAt = time.Now()
	return conversation.Clone(), nil
}

func (r *conversationRepository) RefreshLastMessage(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conversation, ok := r.s.conversations[id]
	if !ok {
		return apperrors.NotFound("conversation %s", id)
	}

	var latest *domain.Message
	for _, m := range r.s.messages {
		if m.ConversationID != id {
			continue
		}
		if latest == nil || messageAfter(m, latest) {
			latest = m
		}
	}
	if latest != nil {
		last := latest.ID
		conversation.LastMessageID = &last
	} else {
		conversation.LastMessageID = nil
	}
	conversation.Version++
	conversation.UpdatedAt = time.Now()
	return nil
}

func (r *conversationRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Как и ON DELETE RESTRICT в Postgres: беседу с сообщениями удалить нельзя
	doomed := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.s.conversations[id]; ok {
			doomed[id] = struct{}{}
		}
	}
	for _, m := range r.s.messages {
		if _, ok := doomed[m.ConversationID]; ok {
			return 0, apperrors.Internal("delete conversations", errors.New("conversation still has messages"))
		}
	}

	for id := range doomed {
		delete(r.s.conversations, id)
	}
	return int64(len(doomed)), nil
}
