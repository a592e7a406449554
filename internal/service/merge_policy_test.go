package service

import (
	"testing"
	"time"

	"contact_hub/internal/domain"

	"github.com/google/uuid"
)

func TestMergeFieldsPrefersTarget(t *testing.T) {
	from := &domain.Contact{
		ID:            uuid.New(),
		TenantID:      testTenant,
		DisplayName:   "From",
		WhatsAppPhone: domain.StringPtr("+5490000"),
		InstagramID:   domain.StringPtr("ig-from"),
		Email:         domain.StringPtr("from@example.com"),
		Notes:         domain.StringPtr("from notes"),
		Status:        domain.ContactStatusActive,
	}
	to := &domain.Contact{
		ID:          uuid.New(),
		TenantID:    testTenant,
		DisplayName: "To",
		InstagramID: domain.StringPtr("ig-to"),
		Email:       domain.StringPtr(""),
		Status:      domain.ContactStatusActive,
	}

	merged := MergeFields(from, to)

	if merged.ID != to.ID {
		t.Fatalf("merged id = %s, want %s", merged.ID, to.ID)
	}
	if merged.DisplayName != "To" {
		t.Fatalf("display name = %q, want To", merged.DisplayName)
	}
	if merged.InstagramID == nil || *merged.InstagramID != "ig-to" {
		t.Fatalf("instagram id = %v, want ig-to", merged.InstagramID)
	}
	if merged.WhatsAppPhone == nil || *merged.WhatsAppPhone != "+5490000" {
		t.Fatalf("whatsapp = %v, want value from source contact", merged.WhatsAppPhone)
	}
	if merged.Email == nil || *merged.Email != "from@example.com" {
		t.Fatalf("empty target email should fall back, got %v", merged.Email)
	}
	if merged.Notes == nil || *merged.Notes != "from notes" {
		t.Fatalf("notes = %v", merged.Notes)
	}
	if merged.MessengerID != nil {
		t.Fatalf("messenger id should stay nil, got %q", *merged.MessengerID)
	}
}

func TestMergeFieldsDoesNotMutateInputs(t *testing.T) {
	from := &domain.Contact{ID: uuid.New(), WhatsAppPhone: domain.StringPtr("+1"), Attributes: map[string]any{"a": "1"}}
	to := &domain.Contact{ID: uuid.New(), Attributes: map[string]any{"b": "2"}}

	merged := MergeFields(from, to)
	merged.Attributes["c"] = "3"
	*merged.WhatsAppPhone = "changed"

	if to.WhatsAppPhone != nil {
		t.Fatal("target contact was mutated")
	}
	if *from.WhatsAppPhone != "+1" {
		t.Fatal("source contact was mutated")
	}
	if _, ok := to.Attributes["c"]; ok {
		t.Fatal("target attributes were mutated")
	}
	if len(from.Attributes) != 1 {
		t.Fatal("source attributes were mutated")
	}
}

func TestMergeFieldsAttributesRecursive(t *testing.T) {
	from := &domain.Contact{Attributes: map[string]any{
		"source":  "ads",
		"tier":    "gold",
		"address": map[string]any{"city": "Rosario", "zip": "2000"},
	}}
	to := &domain.Contact{Attributes: map[string]any{
		"tier":    "",
		"vip":     true,
		"address": map[string]any{"city": "Cordoba"},
	}}

	got := MergeFields(from, to).Attributes

	if got["source"] != "ads" {
		t.Fatalf("source = %v", got["source"])
	}
	if got["tier"] != "gold" {
		t.Fatalf("empty target value should fall back, tier = %v", got["tier"])
	}
	if got["vip"] != true {
		t.Fatalf("vip = %v", got["vip"])
	}
	address, ok := got["address"].(map[string]any)
	if !ok {
		t.Fatalf("address type = %T", got["address"])
	}
	if address["city"] != "Cordoba" || address["zip"] != "2000" {
		t.Fatalf("address = %v", address)
	}
}

func TestMergeFieldsNilAttributes(t *testing.T) {
	if got := MergeFields(&domain.Contact{}, &domain.Contact{}).Attributes; got != nil {
		t.Fatalf("attributes = %v, want nil", got)
	}
}

func TestGroupByChannel(t *testing.T) {
	wa := &domain.Conversation{ID: uuid.New(), Channel: domain.ChannelWhatsApp}
	ig1 := &domain.Conversation{ID: uuid.New(), Channel: domain.ChannelInstagram}
	ig2 := &domain.Conversation{ID: uuid.New(), Channel: domain.ChannelInstagram}

	groups := GroupByChannel([]*domain.Conversation{ig1, wa, ig2})

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Channel != domain.ChannelWhatsApp || len(groups[0].Conversations) != 1 {
		t.Fatalf("first group = %+v", groups[0])
	}
	if groups[1].Channel != domain.ChannelInstagram || len(groups[1].Conversations) != 2 {
		t.Fatalf("second group = %+v", groups[1])
	}
	if groups[1].Conversations[0] != ig1 || groups[1].Conversations[1] != ig2 {
		t.Fatal("input order within group not preserved")
	}
}

func TestGroupByChannelEmpty(t *testing.T) {
	if groups := GroupByChannel(nil); len(groups) != 0 {
		t.Fatalf("groups = %v", groups)
	}
}

func TestSelectCanonicalEarliest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c1 := &domain.Conversation{ID: uuid.New(), CreatedAt: base}
	c2 := &domain.Conversation{ID: uuid.New(), CreatedAt: base.Add(time.Minute)}
	c3 := &domain.Conversation{ID: uuid.New(), CreatedAt: base.Add(2 * time.Minute)}

	canonical, duplicates := SelectCanonical([]*domain.Conversation{c3, c1, c2})

	if canonical != c1 {
		t.Fatalf("canonical = %s, want %s", canonical.ID, c1.ID)
	}
	if len(duplicates) != 2 || duplicates[0] != c2 || duplicates[1] != c3 {
		t.Fatalf("duplicates = %v", duplicates)
	}
}

func TestSelectCanonicalTieBreaksOnID(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	low := &domain.Conversation{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: at}
	high := &domain.Conversation{ID: uuid.MustParse("ffffffff-0000-0000-0000-000000000000"), CreatedAt: at}

	for _, input := range [][]*domain.Conversation{{low, high}, {high, low}} {
		canonical, duplicates := SelectCanonical(input)
		if canonical != low {
			t.Fatalf("canonical = %s, want %s", canonical.ID, low.ID)
		}
		if len(duplicates) != 1 || duplicates[0] != high {
			t.Fatalf("duplicates = %v", duplicates)
		}
	}
}

func TestSelectCanonicalEmpty(t *testing.T) {
	canonical, duplicates := SelectCanonical(nil)
	if canonical != nil || duplicates != nil {
		t.Fatalf("got %v %v, want nil nil", canonical, duplicates)
	}
}
