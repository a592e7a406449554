// Package realtime рассылает события о записях (новые сообщения, слияния)
// подписчикам тенанта по websocket.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"contact_hub/internal/metrics"
	"contact_hub/pkg/logger"
)

// Subscriber - получатель событий; *Connection реализует его
type Subscriber interface {
	ID() string
	TenantID() string
	Send(payload []byte) error
}

type Event struct {
	Type     string    `json:"type"`
	TenantID string    `json:"tenant_id"`
	Payload  any       `json:"payload"`
	SentAt   time.Time `json:"sent_at"`
}

type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[string]Subscriber
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		tenants: make(map[string]map[string]Subscriber),
		log:     log,
	}
}

func (h *Hub) Subscribe(s Subscriber) {
	h.mu.Lock()
	subs, ok := h.tenants[s.TenantID()]
	if !ok {
		subs = make(map[string]Subscriber)
		h.tenants[s.TenantID()] = subs
	}
	subs[s.ID()] = s
	h.mu.Unlock()

	metrics.RealtimeSubscribers.Inc()
}

func (h *Hub) Unsubscribe(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.tenants[s.TenantID()]
	if !ok {
		return
	}
	if _, ok := subs[s.ID()]; !ok {
		return
	}
	delete(subs, s.ID())
	if len(subs) == 0 {
		delete(h.tenants, s.TenantID())
	}
	metrics.RealtimeSubscribers.Dec()
}

// Len - число подписчиков тенанта
func (h *Hub) Len(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}

// Notify отправляет событие всем подписчикам тенанта. Ошибки доставки не
// возвращаются: событие уходит после коммита и не влияет на результат записи.
func (h *Hub) Notify(ctx context.Context, tenantID, eventType string, payload any) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.tenants[tenantID]))
	for _, s := range h.tenants[tenantID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(Event{Type: eventType, TenantID: tenantID, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		h.log.Error("Failed to encode realtime event", "error", err, "event_type", eventType)
		return
	}

	for _, s := range subs {
		if err := s.Send(data); err != nil {
			h.log.Warn("Dropping realtime subscriber", "subscriber_id", s.ID(), "error", err)
			h.Unsubscribe(s)
		}
	}
}
