package service

import "context"

const (
	EventMessageCreated = "message.created"
	EventContactCreated = "contact.created"
	EventContactUpdated = "contact.updated"
	EventContactsMerged = "contacts.merged"
)

// Notifier получает события после того, как запись зафиксирована.
// *realtime.Hub реализует его.
type Notifier interface {
	Notify(ctx context.Context, tenantID, eventType string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, any) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
