package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID        int64          `json:"id"`
	EventTime time.Time      `json:"event_time"`
	TenantID  string         `json:"tenant_id"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty"`
	ActorKind string         `json:"actor_kind"`
	SubjectID *uuid.UUID     `json:"subject_id,omitempty"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}

const (
	ActorKindStaff  = "staff"
	ActorKindSystem = "system"
)

const (
	EventTypeContactCreated = "CONTACT_CREATED"
	EventTypeContactUpdated = "CONTACT_UPDATED"
	EventTypeContactsMerged = "CONTACTS_MERGED"
)
