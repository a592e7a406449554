package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"contact_hub/internal/config"
	"contact_hub/internal/domain"
	"contact_hub/internal/repository"
	"contact_hub/internal/repository/memory"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
)

const testTenant = "tenant-1"

type recordedEvent struct {
	tenantID  string
	eventType string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, tenantID, eventType string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{tenantID: tenantID, eventType: eventType})
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.eventType == eventType {
			c++
		}
	}
	return c
}

type testEnv struct {
	store    *memory.Store
	repos    *repository.Repositories
	services *Services
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	repos := memory.NewRepositories(store)
	notifier := &recordingNotifier{}
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: config.StorageDriverMemory},
		Merge:   config.MergeConfig{LockTTL: time.Minute},
	}

	return &testEnv{
		store:    store,
		repos:    repos,
		services: NewServices(repos, cfg, Deps{Notifier: notifier}, logger.NewNop()),
		notifier: notifier,
	}
}

func (e *testEnv) createContact(t *testing.T, name string, createdAt time.Time, ids map[domain.Channel]string) *domain.Contact {
	t.Helper()

	contact := &domain.Contact{
		ID:          uuid.New(),
		TenantID:    testTenant,
		DisplayName: name,
		Status:      domain.ContactStatusActive,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	for ch, v := range ids {
		contact.SetIdentifier(ch, domain.StringPtr(v))
	}
	if err := e.repos.Contact.Create(context.Background(), contact); err != nil {
		t.Fatalf("create contact %s: %v", name, err)
	}
	return contact
}

func (e *testEnv) createConversation(t *testing.T, channel domain.Channel, createdAt time.Time, participants ...uuid.UUID) *domain.Conversation {
	t.Helper()

	conversation := &domain.Conversation{
		ID:           uuid.New(),
		TenantID:     testTenant,
		Channel:      channel,
		Type:         domain.ConversationTypeDirect,
		Participants: participants,
		Status:       domain.ConversationStatusActive,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := e.repos.Conversation.Create(context.Background(), conversation); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conversation
}

func (e *testEnv) addMessages(t *testing.T, conversation *domain.Conversation, sender uuid.UUID, n int, start time.Time) []*domain.Message {
	t.Helper()

	out := make([]*domain.Message, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		message := &domain.Message{
			ID:             uuid.New(),
			ConversationID: conversation.ID,
			TenantID:       testTenant,
			SenderID:       sender,
			SenderKind:     domain.PartyKindContact,
			Content:        "hello",
			Type:           domain.MessageTypeText,
			Direction:      domain.DirectionInbound,
			Status:         domain.MessageStatusSent,
			Timestamp:      ts,
			CreatedAt:      ts,
		}
		if err := e.repos.Message.Create(context.Background(), message); err != nil {
			t.Fatalf("create message: %v", err)
		}
		if _, err := e.repos.Conversation.RecordMessage(context.Background(), conversation.ID, message.ID); err != nil {
			t.Fatalf("record message: %v", err)
		}
		out = append(out, message)
	}
	return out
}

type stateSnapshot struct {
	contacts      []*domain.Contact
	conversations []*domain.Conversation
	messages      []*domain.Message
}

// snapshot собирает контакты, их беседы (любого статуса) и сообщения этих бесед
func (e *testEnv) snapshot(t *testing.T, contactIDs ...uuid.UUID) stateSnapshot {
	t.Helper()
	ctx := context.Background()

	var snap stateSnapshot
	for _, id := range contactIDs {
		contact, err := e.repos.Contact.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("snapshot contact: %v", err)
		}
		snap.contacts = append(snap.contacts, contact)
	}

	conversations, err := e.repos.Conversation.ListByParticipants(ctx, testTenant, contactIDs...)
	if err != nil {
		t.Fatalf("snapshot conversations: %v", err)
	}
	snap.conversations = conversations
	for _, c := range conversations {
		messages, err := e.repos.Message.ListByConversation(ctx, c.ID, 1000)
		if err != nil {
			t.Fatalf("snapshot messages: %v", err)
		}
		snap.messages = append(snap.messages, messages...)
	}
	return snap
}
