package domain

import "strings"

type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
	ChannelMessenger Channel = "messenger"
)

var supportedChannels = []Channel{ChannelWhatsApp, ChannelInstagram, ChannelMessenger}

// SupportedChannels возвращает каналы в фиксированном порядке
func SupportedChannels() []Channel {
	out := make([]Channel, len(supportedChannels))
	copy(out, supportedChannels)
	return out
}

// ParseChannel принимает значение в любом регистре
func ParseChannel(raw string) (Channel, bool) {
	ch := Channel(strings.ToLower(strings.TrimSpace(raw)))
	return ch, ch.Valid()
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelInstagram, ChannelMessenger:
		return true
	}
	return false
}

// Title - отображаемое имя канала для плейсхолдеров
func (c Channel) Title() string {
	switch c {
	case ChannelWhatsApp:
		return "WhatsApp"
	case ChannelInstagram:
		return "Instagram"
	case ChannelMessenger:
		return "Messenger"
	}
	return string(c)
}

// IdentifierColumn - колонка contacts, в которой хранится идентификатор канала
func (c Channel) IdentifierColumn() string {
	switch c {
	case ChannelWhatsApp:
		return "whatsapp_phone"
	case ChannelInstagram:
		return "instagram_id"
	case ChannelMessenger:
		return "messenger_id"
	}
	return ""
}

// NormalizeIdentifier приводит сырой идентификатор платформы к каноническому виду
func NormalizeIdentifier(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
