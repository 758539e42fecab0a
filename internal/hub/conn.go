package hub

import (
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Transport is the slice of *websocket.Conn the hub needs. Tests substitute
// a fake; production passes the gorilla connection straight in.
type Transport interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one live push channel to a client. Delivery runs through a
// buffered channel drained by a dedicated writer goroutine, which gives each
// connection FIFO delivery and keeps one slow client from stalling the rest.
type Conn struct {
	id   int64
	ws   Transport
	send chan Event

	// Inbound control-message budget: R per rolling minute with burst R.
	limiter *rate.Limiter

	// Guarded by the hub mutex.
	dates        map[string]struct{}
	connectedAt  time.Time
	lastActivity time.Time
	messageCount int
}

// writeLoop drains the outbound channel until the hub closes it. A write
// error or deadline overrun kills only this connection.
func (c *Conn) writeLoop(h *Hub) {
	defer c.ws.Close()

	for ev := range c.send {
		if err := c.ws.SetWriteDeadline(time.Now().Add(h.sendTimeout)); err != nil {
			log.Printf("hub: conn %d set deadline: %v", c.id, err)
			h.Disconnect(c)
			break
		}
		if err := c.ws.WriteJSON(ev); err != nil {
			log.Printf("hub: conn %d write failed: %v", c.id, err)
			h.Disconnect(c)
			break
		}
	}

	// Drain anything enqueued before the hub closed the channel.
	for range c.send {
	}
}
