package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	TenantID      string      `json:"tenant_id"`
	Channel       Channel     `json:"channel"`
	Type          string      `json:"type"`
	Participants  []uuid.UUID `json:"participants"`
	Status        string      `json:"status"`
	LastMessageID *uuid.UUID  `json:"last_message_id,omitempty"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
)

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ETag для кэширования истории сообщений на клиенте
func (c *Conversation) ETag() string {
	last := ""
	if c.LastMessageID != nil {
		last = c.LastMessageID.String()
	}
	return formatETag(c.Version, last)
}

func formatETag(version int64, lastMessageID string) string {
	return strconv.FormatInt(version, 10) + "-" + lastMessageID
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Participants = append([]uuid.UUID(nil), c.Participants...)
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		out.LastMessageID = &id
	}
	return &out
}

// NormalizeParticipants удаляет дубликаты и нулевые id, сохраняя порядок.
// participants хранится как упорядоченное множество, поэтому
// каждая запись в хранилище проходит через эту функцию.
func NormalizeParticipants(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ReplaceParticipant заменяет from на to и нормализует результат.
// Второе значение сообщает, изменился ли список.
func ReplaceParticipant(ids []uuid.UUID, from, to uuid.UUID) ([]uuid.UUID, bool) {
	mapped := make([]uuid.UUID, len(ids))
	changed := false
	for i, id := range ids {
		if id == from {
			mapped[i] = to
			changed = true
			continue
		}
		mapped[i] = id
	}
	out := NormalizeParticipants(mapped)
	if len(out) != len(ids) {
		changed = true
	}
	return out, changed
}
