package service

import (
	"sort"

	"contact_hub/internal/domain"
)

// MergeFields сливает профиль from в to: для каждого поля побеждает значение to,
// если оно задано и не пустое, иначе берется значение from. Attributes
// сливаются по ключам рекурсивно по тому же правилу. ID, тенант, статус и
// CreatedAt всегда берутся из to. Аргументы не изменяются.
func MergeFields(from, to *domain.Contact) *domain.Contact {
	merged := to.Clone()

	merged.WhatsAppPhone = coalesce(to.WhatsAppPhone, from.WhatsAppPhone)
	merged.InstagramID = coalesce(to.InstagramID, from.InstagramID)
	merged.MessengerID = coalesce(to.MessengerID, from.MessengerID)
	merged.Email = coalesce(to.Email, from.Email)
	merged.CRMStage = coalesce(to.CRMStage, from.CRMStage)
	merged.CRMPartnerID = coalesce(to.CRMPartnerID, from.CRMPartnerID)
	merged.CRMLeadID = coalesce(to.CRMLeadID, from.CRMLeadID)
	merged.Notes = coalesce(to.Notes, from.Notes)

	if merged.DisplayName == "" {
		merged.DisplayName = from.DisplayName
	}
	if merged.LastInteractionAt == nil && from.LastInteractionAt != nil {
		t := *from.LastInteractionAt
		merged.LastInteractionAt = &t
	}

	merged.Attributes = mergeAttributes(from.Attributes, to.Attributes)
	return merged
}

func coalesce(preferred, fallback *string) *string {
	if preferred != nil && *preferred != "" {
		v := *preferred
		return &v
	}
	if fallback != nil && *fallback != "" {
		v := *fallback
		return &v
	}
	return nil
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func mergeAttributes(from, to map[string]any) map[string]any {
	if from == nil && to == nil {
		return nil
	}

	out := domain.CloneAttributes(from)
	if out == nil {
		out = make(map[string]any, len(to))
	}
	for k, toValue := range to {
		fromValue, ok := out[k]
		if !ok {
			out[k] = cloneValue(toValue)
			continue
		}

		fromMap, fromIsMap := fromValue.(map[string]any)
		toMap, toIsMap := toValue.(map[string]any)
		switch {
		case fromIsMap && toIsMap:
			out[k] = mergeAttributes(fromMap, toMap)
		case present(toValue):
			out[k] = cloneValue(toValue)
		}
	}
	return out
}

func cloneValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return domain.CloneAttributes(m)
	}
	return v
}

// ChannelGroup - беседы одного канала
type ChannelGroup struct {
	Channel       domain.Channel
	Conversations []*domain.Conversation
}

// GroupByChannel раскладывает беседы по каналам. Группы упорядочены по
// SupportedChannels, неизвестные каналы идут в конце по алфавиту; внутри
// группы сохраняется входной порядок.
func GroupByChannel(conversations []*domain.Conversation) []ChannelGroup {
	byChannel := make(map[domain.Channel][]*domain.Conversation)
	for _, c := range conversations {
		byChannel[c.Channel] = append(byChannel[c.Channel], c)
	}

	groups := make([]ChannelGroup, 0, len(byChannel))
	for _, ch := range domain.SupportedChannels() {
		if list, ok := byChannel[ch]; ok {
			groups = append(groups, ChannelGroup{Channel: ch, Conversations: list})
			delete(byChannel, ch)
		}
	}

	rest := make([]domain.Channel, 0, len(byChannel))
	for ch := range byChannel {
		rest = append(rest, ch)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, ch := range rest {
		groups = append(groups, ChannelGroup{Channel: ch, Conversations: byChannel[ch]})
	}

	return groups
}

// SelectCanonical выбирает беседу, которая переживет слияние: самая ранняя по
// CreatedAt, при равенстве - с меньшим id в строковом виде. Остальные
// возвращаются как дубликаты в порядке выбора.
func SelectCanonical(conversations []*domain.Conversation) (*domain.Conversation, []*domain.Conversation) {
	if len(conversations) == 0 {
		return nil, nil
	}

	ordered := make([]*domain.Conversation, len(conversations))
	copy(ordered, conversations)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return ordered[0], ordered[1:]
}
