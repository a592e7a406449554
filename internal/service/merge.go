package service

import (
	"context"
	"time"

	"contact_hub/internal/domain"
	"contact_hub/internal/metrics"
	"contact_hub/internal/repository"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
)

type MergeStats struct {
	ConversationsConsolidated int   `json:"conversations_consolidated"`
	MessagesReassigned        int64 `json:"messages_reassigned"`
	MessageSendersUpdated     int64 `json:"message_senders_updated"`
	ChannelsProcessed         int   `json:"channels_processed"`
}

type MergeResult struct {
	Contact *domain.Contact `json:"contact"`
	Stats   MergeStats      `json:"stats"`
}

// Merger сливает контакт fromID в toID. При ошибке шага возвращается
// результат с уже накопленными счетчиками вместе с ошибкой.
type Merger interface {
	Merge(ctx context.Context, fromID, toID uuid.UUID) (*MergeResult, error)
}

type mergeService struct {
	contactRepo      repository.ContactRepository
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	audit            AuditService
	notifier         Notifier
	log              logger.Logger
}

func NewMergeService(repos *repository.Repositories, audit AuditService, notifier Notifier, log logger.Logger) Merger {
	return &mergeService{
		contactRepo:      repos.Contact,
		conversationRepo: repos.Conversation,
		messageRepo:      repos.Message,
		audit:            audit,
		notifier:         notifierOrNop(notifier),
		log:              log,
	}
}

func (s *mergeService) loadActive(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !contact.IsActive() {
		return nil, apperrors.NotFound("active contact %s", id)
	}
	return contact, nil
}

func (s *mergeService) Merge(ctx context.Context, fromID, toID uuid.UUID) (*MergeResult, error) {
	started := time.Now()
	result := &MergeResult{}

	err := s.merge(ctx, fromID, toID, result)
	metrics.MergeDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.Merges.WithLabelValues("error").Inc()
		s.log.Error("Contact merge failed", "error", err, "from_contact", fromID, "to_contact", toID,
			"conversations_consolidated", result.Stats.ConversationsConsolidated,
			"messages_reassigned", result.Stats.MessagesReassigned)
		return result, err
	}

	metrics.Merges.WithLabelValues("ok").Inc()
	metrics.ConversationsConsolidated.Add(float64(result.Stats.ConversationsConsolidated))
	s.log.Info("Contacts merged", "from_contact", fromID, "to_contact", toID,
		"conversations_consolidated", result.Stats.ConversationsConsolidated,
		"messages_reassigned", result.Stats.MessagesReassigned,
		"message_senders_updated", result.Stats.MessageSendersUpdated,
		"channels_processed", result.Stats.ChannelsProcessed)

	s.afterMerge(ctx, fromID, result)
	return result, nil
}

func (s *mergeService) merge(ctx context.Context, fromID, toID uuid.UUID, result *MergeResult) error {
	if fromID == toID {
		return apperrors.InvalidArgument("cannot merge contact %s into itself", fromID)
	}

	from, err := s.loadActive(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := s.loadActive(ctx, toID)
	if err != nil {
		return err
	}
	if from.TenantID != to.TenantID {
		return apperrors.InvalidArgument("contacts belong to different tenants")
	}

	conversations, err := s.conversationRepo.ListByParticipants(ctx, to.TenantID, from.ID, to.ID)
	if err != nil {
		return err
	}

	for _, group := range GroupByChannel(conversations) {
		if err := s.consolidateChannel(ctx, group, from.ID, to.ID, &result.Stats); err != nil {
			return err
		}
		result.Stats.ChannelsProcessed++
	}

	senders, err := s.messageRepo.ReassignSender(ctx, to.TenantID, from.ID, to.ID)
	if err != nil {
		return err
	}
	result.Stats.MessageSendersUpdated = senders

	merged := MergeFields(from, to)
	retired := from.Clone()
	retired.Retire(time.Now())
	if err := s.contactRepo.ApplyMerge(ctx, merged, retired); err != nil {
		return err
	}

	result.Contact = merged
	return nil
}

func (s *mergeService) consolidateChannel(ctx context.Context, group ChannelGroup, fromID, toID uuid.UUID, stats *MergeStats) error {
	relevant := make([]*domain.Conversation, 0, len(group.Conversations))
	for _, c := range group.Conversations {
		if c.HasParticipant(fromID) || c.HasParticipant(toID) {
			relevant = append(relevant, c)
		}
	}

	switch len(relevant) {
	case 0:
		return nil
	case 1:
		if !relevant[0].HasParticipant(fromID) {
			return nil
		}
		_, err := s.conversationRepo.ReplaceParticipant(ctx, relevant[0].ID, fromID, toID)
		return err
	}

	canonical, duplicates := SelectCanonical(relevant)

	duplicateIDs := make([]uuid.UUID, 0, len(duplicates))
	for _, d := range duplicates {
		moved, err := s.messageRepo.ReassignConversation(ctx, d.ID, canonical.ID)
		if err != nil {
			return err
		}
		stats.MessagesReassigned += moved
		duplicateIDs = append(duplicateIDs, d.ID)
	}

	if _, err := s.conversationRepo.ReplaceParticipant(ctx, canonical.ID, fromID, toID); err != nil {
		return err
	}

	// Сообщения дубликатов могли быть новее последнего сообщения canonical.
	// Пересчет идет до удаления: пока дубликаты живы, повторный merge снова попадет сюда.
	if err := s.conversationRepo.RefreshLastMessage(ctx, canonical.ID); err != nil {
		return err
	}

	deleted, err := s.conversationRepo.Delete(ctx, duplicateIDs...)
	if err != nil {
		return err
	}
	stats.ConversationsConsolidated += int(deleted)

	s.log.Debug("Channel consolidated", "channel", group.Channel, "canonical_id", canonical.ID, "duplicates", len(duplicateIDs))
	return nil
}

func (s *mergeService) afterMerge(ctx context.Context, fromID uuid.UUID, result *MergeResult) {
	to := result.Contact
	payload := map[string]any{
		"from_contact_id":            fromID.String(),
		"to_contact_id":              to.ID.String(),
		"conversations_consolidated": result.Stats.ConversationsConsolidated,
		"messages_reassigned":        result.Stats.MessagesReassigned,
		"message_senders_updated":    result.Stats.MessageSendersUpdated,
		"channels_processed":         result.Stats.ChannelsProcessed,
	}

	if s.audit != nil {
		if err := s.audit.LogEvent(ctx, to.TenantID, &to.ID, domain.EventTypeContactsMerged, payload); err != nil {
			s.log.Warn("Failed to write audit log", "error", err, "event_type", domain.EventTypeContactsMerged)
		}
	}
	s.notifier.Notify(ctx, to.TenantID, EventContactsMerged, payload)
}
