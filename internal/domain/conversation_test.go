package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeParticipants(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	got := NormalizeParticipants([]uuid.UUID{a, uuid.Nil, b, a, b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("got %v, want [%s %s]", got, a, b)
	}
}

func TestReplaceParticipant(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	got, changed := ReplaceParticipant([]uuid.UUID{a, c}, a, b)
	if !changed || len(got) != 2 || got[0] != b || got[1] != c {
		t.Fatalf("got %v changed=%v", got, changed)
	}

	// Замена на уже присутствующего участника схлопывает дубль
	got, changed = ReplaceParticipant([]uuid.UUID{a, b}, a, b)
	if !changed || len(got) != 1 || got[0] != b {
		t.Fatalf("got %v changed=%v", got, changed)
	}

	got, changed = ReplaceParticipant([]uuid.UUID{b, c}, a, b)
	if changed || len(got) != 2 {
		t.Fatalf("got %v changed=%v", got, changed)
	}
}

func TestConversationETag(t *testing.T) {
	conversation := &Conversation{Version: 0}
	if got := conversation.ETag(); got != "0-" {
		t.Fatalf("etag = %q", got)
	}

	id := uuid.New()
	conversation.Version = 7
	conversation.LastMessageID = &id
	if got := conversation.ETag(); got != "7-"+id.String() {
		t.Fatalf("etag = %q", got)
	}
}

func TestConversationCloneIsDeep(t *testing.T) {
	id := uuid.New()
	original := &Conversation{Participants: []uuid.UUID{uuid.New()}, LastMessageID: &id}

	clone := original.Clone()
	clone.Participants[0] = uuid.New()
	*clone.LastMessageID = uuid.New()

	if original.Participants[0] == clone.Participants[0] || *original.LastMessageID != id {
		t.Fatal("clone shares memory with original")
	}
}

func TestContactRetire(t *testing.T) {
	now := time.Now()
	contact := &Contact{
		DisplayName:   "Ana",
		Status:        ContactStatusActive,
		WhatsAppPhone: StringPtr("+1"),
		Email:         StringPtr("ana@example.com"),
	}

	contact.Retire(now)
	contact.Retire(now)

	if contact.DisplayName != MergedNamePrefix+"Ana" {
		t.Fatalf("display name = %q", contact.DisplayName)
	}
	if contact.IsActive() || contact.WhatsAppPhone != nil || contact.Email != nil {
		t.Fatalf("contact not retired: %+v", contact)
	}
	if len(contact.Identifiers()) != 0 {
		t.Fatal("retired contact must not keep identifiers")
	}
}
