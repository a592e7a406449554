package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ContactsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_hub_contacts_resolved_total",
		Help: "Identity resolutions by outcome (existing, created, recovered).",
	}, []string{"channel", "outcome"})

	MessagesAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_hub_messages_appended_total",
		Help: "Messages appended to conversations.",
	}, []string{"channel", "direction"})

	ConversationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_hub_conversations_created_total",
		Help: "Conversations created by the locator.",
	}, []string{"channel"})

	Merges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_hub_merges_total",
		Help: "Contact merges by result (ok, error, busy).",
	}, []string{"result"})

	MergeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "contact_hub_merge_duration_seconds",
		Help:    "Wall time of a contact merge.",
		Buckets: prometheus.DefBuckets,
	})

	ConversationsConsolidated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contact_hub_conversations_consolidated_total",
		Help: "Duplicate conversations removed by merges.",
	})

	RealtimeSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "contact_hub_realtime_subscribers",
		Help: "Current websocket event subscribers.",
	})
)

func Register() {
	prometheus.MustRegister(
		ContactsResolved, MessagesAppended, ConversationsCreated,
		Merges, MergeDuration, ConversationsConsolidated,
		RealtimeSubscribers,
	)
}
