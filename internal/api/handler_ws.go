package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"reservation-backend/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking belongs to the reverse proxy in this deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS handles GET /api/ws: upgrades the connection, registers it with
// the hub, and runs the read loop feeding inbound control messages into it.
// Liveness enforcement beyond ping/pong (read deadlines, proxy idle
// timeouts) is the transport layer's job.
func (h *Handler) ServeWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn := h.hub.Connect(ws)
	defer h.hub.Disconnect(conn)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			return
		}

		// A malformed frame gets an error event, not a disconnect.
		var msg hub.ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.hub.SendError(conn, "Invalid JSON")
			continue
		}
		h.hub.HandleMessage(c.Request.Context(), conn, msg)
	}
}
