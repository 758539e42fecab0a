package hub

import "reservation-backend/internal/store"

// Outbound event types pushed to clients.
const (
	EventAvailabilitySnapshot = "availability_snapshot"
	EventAvailabilityUpdate   = "availability_update"
	EventWaitlistUpdate       = "waitlist_update"
	EventError                = "error"
	EventPong                 = "pong"
	EventStats                = "stats"
)

// Inbound control message types accepted from clients.
const (
	MessageSubscribe = "subscribe"
	MessagePing      = "ping"
	MessageGetStats  = "get_stats"
)

// Event is the wire shape of every message the hub pushes. Fields irrelevant
// to a given event type are omitted from the JSON.
type Event struct {
	Type       string                            `json:"type"`
	Date       string                            `json:"date,omitempty"`
	TimeSlot   string                            `json:"timeSlot,omitempty"`
	Status     store.CapacityStatus              `json:"status,omitempty"`
	Slots      map[string]store.SlotAvailability `json:"slots,omitempty"`
	Position   *int                              `json:"position,omitempty"`
	SlotOpened bool                              `json:"slotOpened,omitempty"`
	Message    string                            `json:"message,omitempty"`

	// Stats payload.
	TotalConnections  int      `json:"total_connections,omitempty"`
	SubscribedDates   []string `json:"subscribed_dates,omitempty"`
	YourSubscriptions []string `json:"your_subscriptions,omitempty"`

	// Server timestamp, monotonically non-decreasing across all events so
	// consumers can discard stale duplicates. The hub only guarantees FIFO
	// delivery per connection, not ordering across connections.
	Timestamp  string  `json:"timestamp"`
	ServerTime float64 `json:"server_time"`
}

// ControlMessage is the shape of inbound client messages.
type ControlMessage struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
}
