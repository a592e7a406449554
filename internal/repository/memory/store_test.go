package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"contact_hub/internal/domain"
	apperrors "contact_hub/pkg/errors"

	"github.com/google/uuid"
)

func newContact(tenant string, ch domain.Channel, identifier string) *domain.Contact {
	contact := &domain.Contact{
		ID:          uuid.New(),
		TenantID:    tenant,
		DisplayName: identifier,
		Status:      domain.ContactStatusActive,
	}
	contact.SetIdentifier(ch, domain.StringPtr(identifier))
	return contact
}

func TestContactIdentifierUniqueness(t *testing.T) {
	repos := NewRepositories(NewStore())
	ctx := context.Background()

	first := newContact("t1", domain.ChannelWhatsApp, "+1")
	if err := repos.Contact.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repos.Contact.Create(ctx, newContact("t1", domain.ChannelWhatsApp, "+1")); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("duplicate identifier err = %v, want ErrConflict", err)
	}
	if err := repos.Contact.Create(ctx, newContact("t2", domain.ChannelWhatsApp, "+1")); err != nil {
		t.Fatalf("other tenant may reuse identifier: %v", err)
	}
	if err := repos.Contact.Create(ctx, newContact("t1", domain.ChannelInstagram, "+1")); err != nil {
		t.Fatalf("other channel may reuse value: %v", err)
	}

	found, err := repos.Contact.FindActiveByIdentifier(ctx, "t1", domain.ChannelWhatsApp, " +1 ")
	if err != nil || found.ID != first.ID {
		t.Fatalf("find = %v, %v", found, err)
	}
}

func TestApplyMergeFreesRetiredIdentifiers(t *testing.T) {
	repos := NewRepositories(NewStore())
	ctx := context.Background()

	from := newContact("t1", domain.ChannelInstagram, "ig-1")
	to := newContact("t1", domain.ChannelWhatsApp, "+1")
	for _, c := range []*domain.Contact{from, to} {
		if err := repos.Contact.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	merged := to.Clone()
	merged.InstagramID = domain.StringPtr("ig-1")
	retired := from.Clone()
	retired.Retire(time.Now())

	if err := repos.Contact.ApplyMerge(ctx, merged, retired); err != nil {
		t.Fatalf("apply merge: %v", err)
	}

	found, err := repos.Contact.FindActiveByIdentifier(ctx, "t1", domain.ChannelInstagram, "ig-1")
	if err != nil || found.ID != to.ID {
		t.Fatalf("instagram should resolve to merged contact: %v, %v", found, err)
	}
}

func TestApplyMergeRollsBackOnConflict(t *testing.T) {
	repos := NewRepositories(NewStore())
	ctx := context.Background()

	from := newContact("t1", domain.ChannelInstagram, "ig-1")
	to := newContact("t1", domain.ChannelWhatsApp, "+1")
	other := newContact("t1", domain.ChannelMessenger, "m-1")
	for _, c := range []*domain.Contact{from, to, other} {
		if err := repos.Contact.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	merged := to.Clone()
	merged.MessengerID = domain.StringPtr("m-1")
	retired := from.Clone()
	retired.Retire(time.Now())

	if err := repos.Contact.ApplyMerge(ctx, merged, retired); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, err := repos.Contact.GetByID(ctx, from.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsActive() || got.InstagramID == nil {
		t.Fatal("retired contact must be restored after a failed merge")
	}
}

func TestConversationDeleteRestrictedByMessages(t *testing.T) {
	repos := NewRepositories(NewStore())
	ctx := context.Background()

	conversation := &domain.Conversation{
		ID:           uuid.New(),
		TenantID:     "t1",
		Channel:      domain.ChannelWhatsApp,
		Type:         domain.ConversationTypeDirect,
		Participants: []uuid.UUID{uuid.New()},
		Status:       domain.ConversationStatusActive,
	}
	if err := repos.Conversation.Create(ctx, conversation); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	message := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		TenantID:       "t1",
		SenderID:       conversation.Participants[0],
		SenderKind:     domain.PartyKindContact,
		Timestamp:      time.Now(),
	}
	if err := repos.Message.Create(ctx, message); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if _, err := repos.Conversation.Delete(ctx, conversation.ID); !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("delete with messages err = %v, want ErrInternal", err)
	}

	target := &domain.Conversation{ID: uuid.New(), TenantID: "t1", Channel: domain.ChannelWhatsApp, Status: domain.ConversationStatusActive}
	if err := repos.Conversation.Create(ctx, target); err != nil {
		t.Fatalf("create target: %v", err)
	}
	moved, err := repos.Message.ReassignConversation(ctx, conversation.ID, target.ID)
	if err != nil || moved != 1 {
		t.Fatalf("reassign = %d, %v", moved, err)
	}

	deleted, err := repos.Conversation.Delete(ctx, conversation.ID)
	if err != nil || deleted != 1 {
		t.Fatalf("delete = %d, %v", deleted, err)
	}
}

func TestLockAcquireRelease(t *testing.T) {
	locks := NewLockRepository()
	ctx := context.Background()

	token, ok, err := locks.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: %v %v", ok, err)
	}
	if _, ok, _ := locks.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("second acquire must fail while held")
	}

	// Чужой токен не освобождает ключ
	if err := locks.Release(ctx, "k", "other"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := locks.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("foreign release must not free the lock")
	}

	if err := locks.Release(ctx, "k", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := locks.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("lock should be free after owner release")
	}
}

func TestLockExpires(t *testing.T) {
	now := time.Now()
	locks := &lockRepository{locks: make(map[string]lockEntry), now: func() time.Time { return now }}
	ctx := context.Background()

	if _, ok, _ := locks.Acquire(ctx, "k", time.Second); !ok {
		t.Fatal("acquire failed")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := locks.Acquire(ctx, "k", time.Second); !ok {
		t.Fatal("expired lock should be reacquirable")
	}
}

func TestCRMPartnerIDIsNotUnique(t *testing.T) {
	repos := NewRepositories(NewStore())
	ctx := context.Background()

	for _, id := range []string{"+1", "+2"} {
		contact := newContact("t1", domain.ChannelWhatsApp, id)
		contact.CRMPartnerID = domain.StringPtr("res.partner,7")
		if err := repos.Contact.Create(ctx, contact); err != nil {
			t.Fatalf("create with shared crm partner: %v", err)
		}
	}
}

func TestMessageSearch(t *testing.T) {
	repos := NewRepositories(NewStore())
	ctx := context.Background()

	conversation := &domain.Conversation{ID: uuid.New(), TenantID: "t1", Channel: domain.ChannelWhatsApp, Status: domain.ConversationStatusActive}
	if err := repos.Conversation.Create(ctx, conversation); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for _, text := range []string{"50% off", "Precio 50", "hola"} {
		if err := repos.Message.Create(ctx, &domain.Message{
			ID: uuid.New(), ConversationID: conversation.ID, TenantID: "t1", Content: text, Timestamp: time.Now(),
		}); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	found, err := repos.Message.Search(ctx, "t1", "50%", 10)
	if err != nil || len(found) != 1 || found[0].Content != "50% off" {
		t.Fatalf("search = %v, %v", found, err)
	}
	if found, _ := repos.Message.Search(ctx, "t2", "hola", 10); len(found) != 0 {
		t.Fatal("search must stay inside the tenant")
	}
}
