package domain

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	TenantID       string    `json:"tenant_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderKind     PartyKind `json:"sender_kind"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	Direction      string    `json:"direction"`
	Status         string    `json:"status"`
	ExternalID     *string   `json:"external_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeFile     = "file"
	MessageTypeTemplate = "template"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	MessageStatusPending = "pending"
	MessageStatusSending = "sending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
)

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if m.ExternalID != nil {
		v := *m.ExternalID
		out.ExternalID = &v
	}
	return &out
}
