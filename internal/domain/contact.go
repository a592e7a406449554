package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Contact struct {
	ID                uuid.UUID      `json:"id"`
	TenantID          string         `json:"tenant_id"`
	WhatsAppPhone     *string        `json:"whatsapp_phone,omitempty"`
	InstagramID       *string        `json:"instagram_id,omitempty"`
	MessengerID       *string        `json:"messenger_id,omitempty"`
	DisplayName       string         `json:"display_name"`
	Email             *string        `json:"email,omitempty"`
	Status            string         `json:"status"`
	CRMStage          *string        `json:"crm_stage,omitempty"`
	CRMPartnerID      *string        `json:"crm_partner_id,omitempty"`
	CRMLeadID         *string        `json:"crm_lead_id,omitempty"`
	Notes             *string        `json:"notes,omitempty"`
	Attributes        map[string]any `json:"attributes,omitempty"`
	LastInteractionAt *time.Time     `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

const (
	ContactStatusActive   = "active"
	ContactStatusInactive = "inactive"
)

// MergedNamePrefix добавляется к имени контакта, поглощенного при слиянии
const MergedNamePrefix = "[MERGED] "

func (c *Contact) IsActive() bool {
	return c.Status == ContactStatusActive
}

// Identifier возвращает идентификатор контакта в канале, nil если не задан
func (c *Contact) Identifier(ch Channel) *string {
	switch ch {
	case ChannelWhatsApp:
		return c.WhatsAppPhone
	case ChannelInstagram:
		return c.InstagramID
	case ChannelMessenger:
		return c.MessengerID
	}
	return nil
}

func (c *Contact) SetIdentifier(ch Channel, value *string) {
	switch ch {
	case ChannelWhatsApp:
		c.WhatsAppPhone = value
	case ChannelInstagram:
		c.InstagramID = value
	case ChannelMessenger:
		c.MessengerID = value
	}
}

// Identifiers - все заполненные идентификаторы контакта по каналам
func (c *Contact) Identifiers() map[Channel]string {
	out := make(map[Channel]string, len(supportedChannels))
	for _, ch := range supportedChannels {
		if v := c.Identifier(ch); v != nil && *v != "" {
			out[ch] = *v
		}
	}
	return out
}

// Retire переводит контакт в неактивное состояние после слияния.
// Идентификаторы очищаются, чтобы они могли быть выданы повторно.
func (c *Contact) Retire(now time.Time) {
	c.Status = ContactStatusInactive
	if !strings.HasPrefix(c.DisplayName, MergedNamePrefix) {
		c.DisplayName = MergedNamePrefix + c.DisplayName
	}
	c.WhatsAppPhone = nil
	c.InstagramID = nil
	c.MessengerID = nil
	c.Email = nil
	c.UpdatedAt = now
}

func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.WhatsAppPhone = cloneString(c.WhatsAppPhone)
	out.InstagramID = cloneString(c.InstagramID)
	out.MessengerID = cloneString(c.MessengerID)
	out.Email = cloneString(c.Email)
	out.CRMStage = cloneString(c.CRMStage)
	out.CRMPartnerID = cloneString(c.CRMPartnerID)
	out.CRMLeadID = cloneString(c.CRMLeadID)
	out.Notes = cloneString(c.Notes)
	out.Attributes = CloneAttributes(c.Attributes)
	if c.LastInteractionAt != nil {
		t := *c.LastInteractionAt
		out.LastInteractionAt = &t
	}
	return &out
}

// CloneAttributes делает глубокую копию вложенных map
func CloneAttributes(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = CloneAttributes(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func StringPtr(s string) *string {
	return &s
}
