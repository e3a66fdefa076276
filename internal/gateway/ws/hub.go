package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/infra"
)

// event is the wire envelope for every message pushed to clients.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types consumed by the presentation layer.
const (
	EventAuctionState = "AUCTION_STATE"
	EventBidUpdate    = "BID_UPDATE"
	EventOutbid       = "OUTBID_NOTIFICATION"
	EventExtended     = "AUCTION_EXTENDED"
	EventTimeWarning  = "TIME_WARNING"
	EventAuctionEnded = "AUCTION_ENDED"
)

type roomMessage struct {
	itemID  string
	payload []byte
}

// Hub fans engine outputs out to websocket clients grouped into per-item
// rooms. Room state is owned by the single Run goroutine; all access goes
// through the channels, so no lock is needed.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	rooms      map[string]map[*Client]bool
}

// NewHub creates an idle hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 256),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run is the hub's main loop. This MUST be run in a single goroutine.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("notification hub started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("notification hub stopping...")
			for _, room := range h.rooms {
				for client := range room {
					h.drop(client)
				}
			}
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.drop(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(client *Client) {
	room, ok := h.rooms[client.ItemID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[client.ItemID] = room
	}
	room[client] = true

	infra.GlobalMetrics.IncrementConnections()
	slog.Info("client joined auction",
		slog.String("client_id", client.ID),
		slog.String("user", client.UserName),
		slog.String("item_id", client.ItemID))

	if client.welcome != nil {
		// The send buffer is still empty here, this cannot block.
		client.send <- client.welcome
	}

	go client.writePump()
}

func (h *Hub) drop(client *Client) {
	room, ok := h.rooms[client.ItemID]
	if !ok || !room[client] {
		return // already dropped
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.ItemID)
	}
	close(client.send)

	infra.GlobalMetrics.DecrementConnections()
	slog.Info("client left auction",
		slog.String("client_id", client.ID),
		slog.String("item_id", client.ItemID))
}

func (h *Hub) fanOut(msg roomMessage) {
	for client := range h.rooms[msg.itemID] {
		select {
		case client.send <- msg.payload:
		default:
			// Slow client: drop it rather than stall the room.
			h.drop(client)
		}
	}
}

// Emit marshals an event and queues it for every client in the item's room.
func (h *Hub) Emit(itemID, eventType string, data any) {
	payload, err := json.Marshal(event{Type: eventType, Data: data})
	if err != nil {
		slog.Error("failed to marshal event", slog.String("type", eventType), slog.Any("error", err))
		return
	}
	select {
	case h.broadcast <- roomMessage{itemID: itemID, payload: payload}:
	default:
		// Hub stopped or saturated: drop the event rather than stall the caller.
		slog.Warn("event queue full, dropping event",
			slog.String("type", eventType),
			slog.String("item_id", itemID))
	}
}

// BroadcastBid publishes an accepted bid to the item's room: the bid update
// itself, the outbid notice for the displaced bidder, and the extension
// announcement when the anti-sniping rule fired.
func (h *Hub) BroadcastBid(res *domain.BidResult) {
	h.Emit(res.Item.ID, EventBidUpdate, map[string]any{
		"item": res.Item,
		"bidder": map[string]string{
			"userId":   res.Bid.UserID,
			"userName": res.Bid.UserName,
		},
		"timestamp": res.Bid.Timestamp,
	})

	if res.PreviousBidder != nil {
		h.Emit(res.Item.ID, EventOutbid, map[string]any{
			"itemId":         res.Item.ID,
			"itemTitle":      res.Item.Title,
			"previousAmount": res.PreviousAmount,
			"newAmount":      res.Bid.Amount,
			"newBidder":      res.Bid.UserName,
			"userId":         res.PreviousBidder.UserID,
		})
	}

	if res.Extended {
		h.Emit(res.Item.ID, EventExtended, map[string]any{
			"itemId":         res.Item.ID,
			"auctionEndTime": res.Item.AuctionEndTime,
		})
	}
}

// BroadcastClose publishes the closure event with the final snapshot and the
// winner (absent when the item had no bids).
func (h *Hub) BroadcastClose(item domain.AuctionItem) {
	h.Emit(item.ID, EventAuctionEnded, map[string]any{
		"item":   item,
		"winner": item.CurrentBidder,
	})
}

// BroadcastTimeWarning tells an item's room how many seconds remain.
func (h *Hub) BroadcastTimeWarning(itemID string, remaining time.Duration) {
	h.Emit(itemID, EventTimeWarning, map[string]any{
		"itemId":        itemID,
		"timeRemaining": int(remaining.Seconds()),
	})
}
