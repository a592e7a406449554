package service

import (
	"context"
	"strings"
	"time"

	"contact_hub/internal/domain"
	"contact_hub/internal/metrics"
	"contact_hub/internal/repository"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 200
)

// AppendMessageInput описывает сообщение для записи в беседу.
// Если ConversationID не задан, беседа находится по отправителю-контакту.
type AppendMessageInput struct {
	TenantID       string
	Channel        domain.Channel
	ConversationID uuid.UUID
	Sender         domain.Party
	Content        string
	Type           string
	Direction      string
	ExternalID     *string
	Timestamp      time.Time
}

// InboundMessage - входящее сообщение от адаптера канала
type InboundMessage struct {
	TenantID   string         `json:"tenant_id"`
	Channel    domain.Channel `json:"channel"`
	SenderID   string         `json:"sender_id"`
	SenderName string         `json:"sender_name,omitempty"`
	Content    string         `json:"content"`
	Type       string         `json:"type,omitempty"`
	ExternalID *string        `json:"external_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type IngestResult struct {
	Contact      *domain.Contact      `json:"contact"`
	Conversation *domain.Conversation `json:"conversation"`
	Message      *domain.Message      `json:"message"`
}

type MessagePage struct {
	Messages    []*domain.Message
	ETag        string
	NotModified bool
}

type ConversationService interface {
	// Locate возвращает активную беседу канала с контактом, создавая direct-беседу при отсутствии
	Locate(ctx context.Context, tenantID string, channel domain.Channel, contactID uuid.UUID) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, in AppendMessageInput) (*domain.Message, *domain.Conversation, error)
	// Ingest - весь входящий путь: Resolve, Locate, AppendMessage
	Ingest(ctx context.Context, in InboundMessage) (*IngestResult, error)
	SendOutbound(ctx context.Context, staff *domain.StaffMember, conversationID uuid.UUID, content string) (*domain.Message, error)
	GetConversation(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Conversation, error)
	ListConversations(ctx context.Context, tenantID string, channel domain.Channel, limit, offset int) ([]*domain.Conversation, error)
	// ListMessages отдает последние limit сообщений; при совпадении ifNoneMatch с ETag беседы - NotModified
	ListMessages(ctx context.Context, tenantID string, conversationID uuid.UUID, limit int, ifNoneMatch string) (*MessagePage, error)
	GetMessage(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Message, error)
	// SearchMessages ищет подстроку в тексте сообщений тенанта без учета регистра
	SearchMessages(ctx context.Context, tenantID, query string, limit int) ([]*domain.Message, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	contactRepo      repository.ContactRepository
	identity         IdentityService
	notifier         Notifier
	log              logger.Logger
}

func NewConversationService(repos *repository.Repositories, identity IdentityService, notifier Notifier, log logger.Logger) ConversationService {
	return &conversationService{
		conversationRepo: repos.Conversation,
		messageRepo:      repos.Message,
		contactRepo:      repos.Contact,
		identity:         identity,
		notifier:         notifierOrNop(notifier),
		log:              log,
	}
}

func (s *conversationService) Locate(ctx context.Context, tenantID string, channel domain.Channel, contactID uuid.UUID) (*domain.Conversation, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperrors.InvalidArgument("tenant id is required")
	}
	if !channel.Valid() {
		return nil, apperrors.InvalidArgument("unsupported channel %q", channel)
	}
	if contactID == uuid.Nil {
		return nil, apperrors.InvalidArgument("contact id is required")
	}

	existing, err := s.conversationRepo.FindActiveByParticipant(ctx, tenantID, channel, contactID)
	if err == nil {
		return existing, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// Гонка двух Locate может дать вторую беседу; ее уберет слияние
	now := time.Now()
	conversation := &domain.Conversation{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Channel:      channel,
		Type:         domain.ConversationTypeDirect,
		Participants: []uuid.UUID{contactID},
		Status:       domain.ConversationStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, err
	}

	metrics.ConversationsCreated.WithLabelValues(string(channel)).Inc()
	s.log.Info("Conversation created", "conversation_id", conversation.ID, "tenant_id", tenantID, "channel", channel)

	return conversation, nil
}

func (s *conversationService) AppendMessage(ctx context.Context, in AppendMessageInput) (*domain.Message, *domain.Conversation, error) {
	if in.Sender == nil {
		return nil, nil, apperrors.InvalidArgument("message sender is required")
	}
	if in.Sender.PartyTenant() != in.TenantID {
		return nil, nil, apperrors.InvalidArgument("sender belongs to another tenant")
	}

	switch in.Direction {
	case domain.DirectionInbound:
		if in.Sender.PartyKind() != domain.PartyKindContact {
			return nil, nil, apperrors.InvalidArgument("inbound messages must come from a contact")
		}
	case domain.DirectionOutbound:
	default:
		return nil, nil, apperrors.InvalidArgument("unknown message direction %q", in.Direction)
	}

	var (
		conversation *domain.Conversation
		err          error
	)
	if in.ConversationID != uuid.Nil {
		conversation, err = s.GetConversation(ctx, in.TenantID, in.ConversationID)
	} else {
		if in.Sender.PartyKind() != domain.PartyKindContact {
			return nil, nil, apperrors.InvalidArgument("conversation id is required for staff messages")
		}
		conversation, err = s.Locate(ctx, in.TenantID, in.Channel, in.Sender.PartyID())
	}
	if err != nil {
		return nil, nil, err
	}

	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	status := domain.MessageStatusSent
	if in.Direction == domain.DirectionOutbound {
		status = domain.MessageStatusPending
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	message := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		TenantID:       in.TenantID,
		SenderID:       in.Sender.PartyID(),
		SenderKind:     in.Sender.PartyKind(),
		Content:        in.Content,
		Type:           msgType,
		Direction:      in.Direction,
		Status:         status,
		ExternalID:     in.ExternalID,
		Timestamp:      ts,
		CreatedAt:      time.Now(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, nil, err
	}

	conversation, err = s.conversationRepo.RecordMessage(ctx, conversation.ID, message.ID)
	if err != nil {
		return nil, nil, err
	}

	if message.SenderKind == domain.PartyKindContact {
		if err := s.contactRepo.TouchInteraction(ctx, message.SenderID, message.Timestamp); err != nil {
			s.log.Warn("Failed to update last interaction", "error", err, "contact_id", message.SenderID)
		}
	}

	metrics.MessagesAppended.WithLabelValues(string(conversation.Channel), message.Direction).Inc()
	s.notifier.Notify(ctx, in.TenantID, EventMessageCreated, map[string]any{
		"conversation_id": conversation.ID,
		"message_id":      message.ID,
		"direction":       message.Direction,
	})

	return message, conversation, nil
}

func (s *conversationService) Ingest(ctx context.Context, in InboundMessage) (*IngestResult, error) {
	contact, err := s.identity.Resolve(ctx, in.TenantID, in.Channel, in.SenderID, in.SenderName)
	if err != nil {
		return nil, err
	}

	message, conversation, err := s.AppendMessage(ctx, AppendMessageInput{
		TenantID:   in.TenantID,
		Channel:    in.Channel,
		Sender:     contact,
		Content:    in.Content,
		Type:       in.Type,
		Direction:  domain.DirectionInbound,
		ExternalID: in.ExternalID,
		Timestamp:  in.Timestamp,
	})
	if err != nil {
		return nil, err
	}

	return &IngestResult{Contact: contact, Conversation: conversation, Message: message}, nil
}

func (s *conversationService) SendOutbound(ctx context.Context, staff *domain.StaffMember, conversationID uuid.UUID, content string) (*domain.Message, error) {
	if staff == nil {
		return nil, apperrors.InvalidArgument("staff member is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.InvalidArgument("message content is required")
	}
	if conversationID == uuid.Nil {
		return nil, apperrors.InvalidArgument("conversation id is required")
	}

	message, _, err := s.AppendMessage(ctx, AppendMessageInput{
		TenantID:       staff.TenantID,
		ConversationID: conversationID,
		Sender:         staff,
		Content:        content,
		Direction:      domain.DirectionOutbound,
	})
	return message, err
}

func (s *conversationService) GetConversation(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Conversation, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation.TenantID != tenantID {
		return nil, apperrors.NotFound("conversation %s", id)
	}
	return conversation, nil
}

func (s *conversationService) ListConversations(ctx context.Context, tenantID string, channel domain.Channel, limit, offset int) ([]*domain.Conversation, error) {
	if channel != "" && !channel.Valid() {
		return nil, apperrors.InvalidArgument("unsupported channel %q", channel)
	}
	if limit <= 0 || limit > MaxMessagePageSize {
		limit = DefaultMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.conversationRepo.ListByTenant(ctx, tenantID, channel, limit, offset)
}

func (s *conversationService) ListMessages(ctx context.Context, tenantID string, conversationID uuid.UUID, limit int, ifNoneMatch string) (*MessagePage, error) {
	conversation, err := s.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	page := &MessagePage{ETag: conversation.ETag()}
	if ifNoneMatch != "" && etagMatches(ifNoneMatch, page.ETag) {
		page.NotModified = true
		return page, nil
	}

	switch {
	case limit <= 0:
		limit = DefaultMessagePageSize
	case limit > MaxMessagePageSize:
		limit = MaxMessagePageSize
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	page.Messages = messages
	return page, nil
}

func (s *conversationService) GetMessage(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if message.TenantID != tenantID {
		return nil, apperrors.NotFound("message %s", id)
	}
	return message, nil
}

func (s *conversationService) SearchMessages(ctx context.Context, tenantID, query string, limit int) ([]*domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidArgument("search query is required")
	}
	switch {
	case limit <= 0:
		limit = DefaultMessagePageSize
	case limit > MaxMessagePageSize:
		limit = MaxMessagePageSize
	}
	return s.messageRepo.Search(ctx, tenantID, query, limit)
}

// etagMatches разбирает If-None-Match: список через запятую, кавычки и W/ игнорируются
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == etag {
			return true
		}
	}
	return false
}
