package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/engine"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP connections into hub clients and runs the periodic
// last-minute warning broadcast.
type Handler struct {
	hub        *Hub
	auctioneer *engine.Auctioneer
	threshold  time.Duration
	upgrader   websocket.Upgrader
}

// NewHandler creates a websocket handler. threshold is the remaining-time
// window below which TIME_WARNING events are broadcast.
func NewHandler(hub *Hub, auctioneer *engine.Auctioneer, threshold time.Duration, allowedOrigins []string) *Handler {
	return &Handler{
		hub:        hub,
		auctioneer: auctioneer,
		threshold:  threshold,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin || o == "*" {
				return true
			}
		}
		return false
	}
}

// HandleConnection is the gin handler for GET /ws/items/:id. Identity comes
// from query parameters and is trusted as supplied.
func (h *Handler) HandleConnection(c *gin.Context) {
	itemID := c.Param("id")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		ItemID:   itemID,
		UserID:   c.Query("userId"),
		UserName: c.Query("userName"),
		conn:     conn,
		send:     make(chan []byte, 64),
	}

	// The current item state is queued as the client's first frame so it can
	// render immediately. The hub owns the send channel once the client is
	// registered, so delivery rides along with registration.
	if item, ok := h.auctioneer.GetItem(itemID); ok {
		if payload, err := json.Marshal(event{Type: EventAuctionState, Data: map[string]any{"item": item}}); err == nil {
			client.welcome = payload
		}
	}

	h.hub.register <- client
	go client.readPump(h.hub.unregister)
}

// RunTimeWarnings periodically broadcasts the remaining seconds for every
// active item inside the last-minute window. Meant to be run in its own
// goroutine.
func (h *Handler) RunTimeWarnings(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, item := range h.auctioneer.GetAllItems() {
				if item.Status != domain.StatusActive {
					continue
				}
				if remaining := item.Remaining(now); remaining > 0 && remaining < h.threshold {
					h.hub.BroadcastTimeWarning(item.ID, remaining)
				}
			}
		}
	}
}
