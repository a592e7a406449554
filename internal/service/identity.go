package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"contact_hub/internal/domain"
	"contact_hub/internal/metrics"
	"contact_hub/internal/repository"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// NameFetcher - необязательный источник отображаемого имени (профиль платформы)
type NameFetcher interface {
	FetchDisplayName(ctx context.Context, tenantID string, channel domain.Channel, identifier string) (string, error)
}

type IdentityService interface {
	// Resolve возвращает активный контакт по идентификатору канала, создавая его при отсутствии
	Resolve(ctx context.Context, tenantID string, channel domain.Channel, rawIdentifier, nameHint string) (*domain.Contact, error)
	// Lookup только читает; ErrNotFound, если активного контакта нет
	Lookup(ctx context.Context, tenantID string, channel domain.Channel, value string) (*domain.Contact, error)
	GetContact(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Contact, error)
	// UpdateContact применяет частичное обновление; занятый идентификатор дает ErrConflict
	UpdateContact(ctx context.Context, tenantID string, id uuid.UUID, update ContactUpdate) (*domain.Contact, error)
}

// ContactUpdate - частичное обновление контакта. nil - поле не трогается,
// пустая строка очищает необязательное поле. В Attributes значение nil удаляет ключ.
type ContactUpdate struct {
	DisplayName   *string        `json:"display_name,omitempty"`
	WhatsAppPhone *string        `json:"whatsapp_phone,omitempty"`
	InstagramID   *string        `json:"instagram_id,omitempty"`
	MessengerID   *string        `json:"messenger_id,omitempty"`
	Email         *string        `json:"email,omitempty"`
	CRMStage      *string        `json:"crm_stage,omitempty"`
	CRMPartnerID  *string        `json:"crm_partner_id,omitempty"`
	CRMLeadID     *string        `json:"crm_lead_id,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

func (u ContactUpdate) identifiers() map[domain.Channel]*string {
	return map[domain.Channel]*string{
		domain.ChannelWhatsApp:  u.WhatsAppPhone,
		domain.ChannelInstagram: u.InstagramID,
		domain.ChannelMessenger: u.MessengerID,
	}
}

type identityService struct {
	contactRepo repository.ContactRepository
	audit       AuditService
	names       NameFetcher
	notifier    Notifier
	group       singleflight.Group
	log         logger.Logger
}

func NewIdentityService(contactRepo repository.ContactRepository, audit AuditService, names NameFetcher, notifier Notifier, log logger.Logger) IdentityService {
	return &identityService{
		contactRepo: contactRepo,
		audit:       audit,
		names:       names,
		notifier:    notifierOrNop(notifier),
		log:         log,
	}
}

func validateIdentity(tenantID string, channel domain.Channel, identifier string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperrors.InvalidArgument("tenant id is required")
	}
	if !channel.Valid() {
		return apperrors.InvalidArgument("unsupported channel %q", channel)
	}
	if identifier == "" {
		return apperrors.InvalidArgument("%s identifier is required", channel)
	}
	return nil
}

func (s *identityService) Resolve(ctx context.Context, tenantID string, channel domain.Channel, rawIdentifier, nameHint string) (*domain.Contact, error) {
	identifier := domain.NormalizeIdentifier(rawIdentifier)
	if err := validateIdentity(tenantID, channel, identifier); err != nil {
		return nil, err
	}

	v, err, shared := s.group.Do(resolveKey(tenantID, channel, identifier), func() (any, error) {
		// Результат общий для всех ожидающих, отмена первого вызывающего не должна его ронять
		return s.resolve(context.WithoutCancel(ctx), tenantID, channel, identifier, nameHint)
	})
	if err != nil {
		return nil, err
	}

	contact := v.(*domain.Contact)
	if shared {
		return contact.Clone(), nil
	}
	return contact, nil
}

// resolveKey - ключ singleflight; части экранируются, чтобы разные пары
// (tenant, identifier) не давали один ключ
func resolveKey(tenantID string, channel domain.Channel, identifier string) string {
	return strconv.Quote(tenantID) + "|" + string(channel) + "|" + strconv.Quote(identifier)
}

func (s *identityService) resolve(ctx context.Context, tenantID string, channel domain.Channel, identifier, nameHint string) (*domain.Contact, error) {
	existing, err := s.contactRepo.FindActiveByIdentifier(ctx, tenantID, channel, identifier)
	if err == nil {
		metrics.ContactsResolved.WithLabelValues(string(channel), "existing").Inc()
		return existing, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	contact := &domain.Contact{
		ID:          uuid.New(),
		TenantID:    tenantID,
		DisplayName: s.displayName(ctx, tenantID, channel, identifier, nameHint),
		Status:      domain.ContactStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	contact.SetIdentifier(channel, domain.StringPtr(identifier))

	if err := s.contactRepo.Create(ctx, contact); err != nil {
		if !apperrors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}

		// Параллельный запрос успел создать контакт первым
		winner, findErr := s.contactRepo.FindActiveByIdentifier(ctx, tenantID, channel, identifier)
		if findErr != nil {
			s.log.Warn("Contact vanished after create conflict", "tenant_id", tenantID, "channel", channel, "error", findErr)
			return nil, err
		}
		metrics.ContactsResolved.WithLabelValues(string(channel), "recovered").Inc()
		return winner, nil
	}

	metrics.ContactsResolved.WithLabelValues(string(channel), "created").Inc()
	s.log.Info("Contact created", "contact_id", contact.ID, "tenant_id", tenantID, "channel", channel)

	if s.audit != nil {
		if err := s.audit.LogEvent(ctx, tenantID, &contact.ID, domain.EventTypeContactCreated, map[string]any{
			"channel": string(channel),
		}); err != nil {
			s.log.Warn("Failed to write audit log", "error", err, "event_type", domain.EventTypeContactCreated)
		}
	}
	s.notifier.Notify(ctx, tenantID, EventContactCreated, contact.Clone())

	return contact, nil
}

// displayName: подсказка вызывающего, затем NameFetcher, затем плейсхолдер
func (s *identityService) displayName(ctx context.Context, tenantID string, channel domain.Channel, identifier, hint string) string {
	if hint = strings.TrimSpace(hint); hint != "" {
		return hint
	}
	if s.names != nil {
		name, err := s.names.FetchDisplayName(ctx, tenantID, channel, identifier)
		if err != nil {
			s.log.Warn("Failed to fetch display name", "error", err, "channel", channel)
		} else if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return PlaceholderName(channel, identifier)
}

// PlaceholderName - имя контакта, о котором ничего не известно, кроме идентификатора
func PlaceholderName(channel domain.Channel, identifier string) string {
	return fmt.Sprintf("%s User %s", channel.Title(), identifier)
}

func (s *identityService) Lookup(ctx context.Context, tenantID string, channel domain.Channel, value string) (*domain.Contact, error) {
	identifier := domain.NormalizeIdentifier(value)
	if err := validateIdentity(tenantID, channel, identifier); err != nil {
		return nil, err
	}
	return s.contactRepo.FindActiveByIdentifier(ctx, tenantID, channel, identifier)
}

func (s *identityService) GetContact(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact.TenantID != tenantID {
		return nil, apperrors.NotFound("contact %s", id)
	}
	return contact, nil
}

func (s *identityService) UpdateContact(ctx context.Context, tenantID string, id uuid.UUID, update ContactUpdate) (*domain.Contact, error) {
	contact, err := s.GetContact(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !contact.IsActive() {
		return nil, apperrors.InvalidArgument("contact %s was merged and cannot be updated", id)
	}

	var changed []string
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			return nil, apperrors.InvalidArgument("display name cannot be empty")
		}
		contact.DisplayName = name
		changed = append(changed, "display_name")
	}

	for _, ch := range domain.SupportedChannels() {
		value := update.identifiers()[ch]
		if value == nil {
			continue
		}
		contact.SetIdentifier(ch, optionalString(domain.NormalizeIdentifier(*value)))
		changed = append(changed, ch.IdentifierColumn())
	}

	for field, pair := range map[string]struct {
		dst **string
		src *string
	}{
		"email":          {&contact.Email, update.Email},
		"crm_stage":      {&contact.CRMStage, update.CRMStage},
		"crm_partner_id": {&contact.CRMPartnerID, update.CRMPartnerID},
		"crm_lead_id":    {&contact.CRMLeadID, update.CRMLeadID},
		"notes":          {&contact.Notes, update.Notes},
	} {
		if pair.src == nil {
			continue
		}
		*pair.dst = optionalString(strings.TrimSpace(*pair.src))
		changed = append(changed, field)
	}

	if len(update.Attributes) > 0 {
		if contact.Attributes == nil {
			contact.Attributes = make(map[string]any, len(update.Attributes))
		}
		for k, v := range update.Attributes {
			if v == nil {
				delete(contact.Attributes, k)
				continue
			}
			contact.Attributes[k] = v
		}
		changed = append(changed, "attributes")
	}

	if len(changed) == 0 {
		return contact, nil
	}
	sort.Strings(changed)

	if err := s.contactRepo.Update(ctx, contact); err != nil {
		return nil, err
	}

	s.log.Info("Contact updated", "contact_id", contact.ID, "tenant_id", tenantID, "fields", changed)
	if s.audit != nil {
		if err := s.audit.LogEvent(ctx, tenantID, &contact.ID, domain.EventTypeContactUpdated, map[string]any{
			"fields": changed,
		}); err != nil {
			s.log.Warn("Failed to write audit log", "error", err, "event_type", domain.EventTypeContactUpdated)
		}
	}
	s.notifier.Notify(ctx, tenantID, EventContactUpdated, contact.Clone())

	return contact, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
