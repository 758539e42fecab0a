package hub

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"reservation-backend/internal/store"
)

// AvailabilityReader is the slice of the store the hub needs for snapshots.
type AvailabilityReader interface {
	CountsForDate(ctx context.Context, date string) (map[string]int, error)
}

// Options tunes the hub. Zero values fall back to the deployment defaults.
type Options struct {
	MaxMessagesPerMinute int
	SendTimeout          time.Duration
	SendBuffer           int
}

// Hub is the registry of live push connections and their per-date
// subscriptions. Connect/disconnect/subscribe take the write lock; publish
// takes the read lock, so broadcasts to different connections proceed
// concurrently. No lock is ever held across a network write, only across
// channel enqueues into per-connection buffers.
type Hub struct {
	reader     AvailabilityReader
	timeSlots  []string
	maxPerSlot int

	msgsPerMinute int
	sendTimeout   time.Duration
	sendBuffer    int

	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	byDate map[string]map[*Conn]struct{}

	stampMu   sync.Mutex
	lastStamp time.Time

	nextID atomic.Int64
}

// New creates a hub that reads snapshots through reader and derives statuses
// from the configured slots and capacity.
func New(reader AvailabilityReader, timeSlots []string, maxPerSlot int, opts Options) *Hub {
	if opts.MaxMessagesPerMinute <= 0 {
		opts.MaxMessagesPerMinute = 60
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}

	return &Hub{
		reader:        reader,
		timeSlots:     timeSlots,
		maxPerSlot:    maxPerSlot,
		msgsPerMinute: opts.MaxMessagesPerMinute,
		sendTimeout:   opts.SendTimeout,
		sendBuffer:    opts.SendBuffer,
		conns:         make(map[*Conn]struct{}),
		byDate:        make(map[string]map[*Conn]struct{}),
	}
}

// Connect registers a live transport and starts its writer goroutine.
func (h *Hub) Connect(ws Transport) *Conn {
	now := time.Now()
	c := &Conn{
		id:   h.nextID.Add(1),
		ws:   ws,
		send: make(chan Event, h.sendBuffer),
		limiter: rate.NewLimiter(
			rate.Limit(float64(h.msgsPerMinute))/60.0, h.msgsPerMinute),
		dates:        make(map[string]struct{}),
		connectedAt:  now,
		lastActivity: now,
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	go c.writeLoop(h)

	log.Printf("hub: connection %d established, total %d", c.id, total)
	return c
}

// Disconnect removes a connection, drops its subscriptions, and closes its
// outbound channel. Safe to call more than once.
func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	for date := range c.dates {
		if set, ok := h.byDate[date]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byDate, date)
			}
		}
	}
	// Closing under the write lock: publishers enqueue under the read lock
	// and only to registered connections, so no send can race this close.
	close(c.send)
	total := len(h.conns)
	h.mu.Unlock()

	log.Printf("hub: connection %d removed, total %d", c.id, total)
}

// Subscribe registers the connection for a date and enqueues the point-in-time
// snapshot. The snapshot read, the registration, and the snapshot enqueue all
// happen under the registry write lock, so no publish for the date can slip in
// between: the subscriber sees the snapshot first and deltas only after it.
func (h *Hub) Subscribe(ctx context.Context, c *Conn, date string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return nil
	}

	counts, err := h.reader.CountsForDate(ctx, date)
	if err != nil {
		return err
	}

	c.dates[date] = struct{}{}
	set, ok := h.byDate[date]
	if !ok {
		set = make(map[*Conn]struct{})
		h.byDate[date] = set
	}
	set[c] = struct{}{}

	h.enqueue(c, h.stamp(Event{
		Type:  EventAvailabilitySnapshot,
		Date:  date,
		Slots: store.AvailabilityMap(counts, h.timeSlots, h.maxPerSlot),
	}))
	return nil
}

// Publish fans an event out to every connection subscribed to its date. A
// connection whose buffer is full is treated as dead and removed; removal
// never blocks delivery to the others.
func (h *Hub) Publish(date string, ev Event) {
	ev.Date = date
	ev = h.stamp(ev)

	var slow []*Conn
	h.mu.RLock()
	for c := range h.byDate[date] {
		if !h.enqueue(c, ev) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("hub: connection %d too slow, dropping", c.id)
		h.Disconnect(c)
	}
}

// BroadcastAll sends an event to every live connection regardless of
// subscriptions.
func (h *Hub) BroadcastAll(ev Event) {
	ev = h.stamp(ev)

	var slow []*Conn
	h.mu.RLock()
	for c := range h.conns {
		if !h.enqueue(c, ev) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("hub: connection %d too slow, dropping", c.id)
		h.Disconnect(c)
	}
}

// HandleMessage processes one inbound control message from the read loop.
// Messages beyond the connection's rate budget get an error event and are
// dropped, not queued.
func (h *Hub) HandleMessage(ctx context.Context, c *Conn, msg ControlMessage) {
	if !c.limiter.Allow() {
		h.sendDirect(c, Event{Type: EventError, Message: "Rate limit exceeded"})
		return
	}

	h.mu.Lock()
	c.lastActivity = time.Now()
	c.messageCount++
	h.mu.Unlock()

	switch msg.Type {
	case MessageSubscribe:
		if _, err := time.Parse("2006-01-02", msg.Date); err != nil {
			h.sendDirect(c, Event{Type: EventError, Message: "Invalid date format. Use YYYY-MM-DD"})
			return
		}
		if err := h.Subscribe(ctx, c, msg.Date); err != nil {
			log.Printf("hub: snapshot for %s failed: %v", msg.Date, err)
			h.sendDirect(c, Event{Type: EventError, Message: "Failed to load availability"})
		}
	case MessagePing:
		h.sendDirect(c, Event{Type: EventPong})
	case MessageGetStats:
		h.sendDirect(c, h.statsFor(c))
	default:
		h.sendDirect(c, Event{Type: EventError, Message: "Unknown message type: " + msg.Type})
	}
}

// SendError pushes an error event to a single connection.
func (h *Hub) SendError(c *Conn, message string) {
	h.sendDirect(c, Event{Type: EventError, Message: message})
}

// Snapshot returns the availability map for a date without subscribing.
func (h *Hub) Snapshot(ctx context.Context, date string) (map[string]store.SlotAvailability, error) {
	counts, err := h.reader.CountsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return store.AvailabilityMap(counts, h.timeSlots, h.maxPerSlot), nil
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) statsFor(c *Conn) Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dates := make([]string, 0, len(h.byDate))
	for d := range h.byDate {
		dates = append(dates, d)
	}
	yours := make([]string, 0, len(c.dates))
	for d := range c.dates {
		yours = append(yours, d)
	}
	return Event{
		Type:              EventStats,
		TotalConnections:  len(h.conns),
		SubscribedDates:   dates,
		YourSubscriptions: yours,
	}
}

// sendDirect stamps and enqueues a single event for one connection.
func (h *Hub) sendDirect(c *Conn, ev Event) {
	ev = h.stamp(ev)

	h.mu.RLock()
	_, live := h.conns[c]
	ok := live && h.enqueue(c, ev)
	h.mu.RUnlock()

	if live && !ok {
		h.Disconnect(c)
	}
}

// enqueue attempts a non-blocking send into the connection's buffer. Callers
// must hold at least the read lock so the channel cannot be closed underneath
// the send.
func (h *Hub) enqueue(c *Conn, ev Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// stamp applies the hub-wide monotonically non-decreasing server timestamp.
func (h *Hub) stamp(ev Event) Event {
	h.stampMu.Lock()
	now := time.Now()
	if now.Before(h.lastStamp) {
		now = h.lastStamp
	}
	h.lastStamp = now
	h.stampMu.Unlock()

	ev.Timestamp = now.Format(time.RFC3339Nano)
	ev.ServerTime = float64(now.UnixNano()) / float64(time.Second)
	return ev
}
