package api

import (
	"log/slog"
	"net/http"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Broadcaster forwards accepted bids to the notification gateway.
type Broadcaster interface {
	BroadcastBid(res *domain.BidResult)
}

// auctionHandler holds the engine and implements the HTTP handlers for
// auction operations.
type auctionHandler struct {
	auctioneer  *engine.Auctioneer
	broadcaster Broadcaster
	archive     *storage.Archive
	images      *infra.ImageCache
	startedAt   time.Time
}

// NewAuctionHandler creates the handler set. broadcaster, archive and images
// may be nil.
func NewAuctionHandler(auctioneer *engine.Auctioneer, broadcaster Broadcaster, archive *storage.Archive, images *infra.ImageCache) *auctionHandler {
	return &auctionHandler{
		auctioneer:  auctioneer,
		broadcaster: broadcaster,
		archive:     archive,
		images:      images,
		startedAt:   time.Now(),
	}
}

type placeBidRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	UserID   string          `json:"userId" binding:"required"`
	UserName string          `json:"userName" binding:"required,max=100"`
}

type createItemRequest struct {
	Title          string          `json:"title" binding:"required,min=3,max=200"`
	Description    string          `json:"description" binding:"required,max=1000"`
	StartingPrice  decimal.Decimal `json:"startingPrice"`
	ImageURL       string          `json:"imageUrl" binding:"omitempty,url"`
	Category       string          `json:"category" binding:"omitempty,max=50"`
	AuctionEndTime time.Time       `json:"auctionEndTime" binding:"required"`
}

// handleListItems handles GET /api/items.
func (h *auctionHandler) handleListItems(c *gin.Context) {
	items := h.auctioneer.GetAllItems()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(items),
		"data":    items,
	})
}

// handleGetItem handles GET /api/items/:id.
func (h *auctionHandler) handleGetItem(c *gin.Context) {
	item, ok := h.auctioneer.GetItem(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// handleGetHistory handles GET /api/items/:id/history.
func (h *auctionHandler) handleGetHistory(c *gin.Context) {
	history := h.auctioneer.GetBidHistory(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(history),
		"data":    history,
	})
}

// handleCreateItem handles POST /api/items.
func (h *auctionHandler) handleCreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !req.StartingPrice.IsPositive() || !isTwoDecimal(req.StartingPrice) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "startingPrice must be a positive amount with at most two decimals"})
		return
	}
	if !req.AuctionEndTime.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "auctionEndTime must be in the future"})
		return
	}

	item := h.auctioneer.AddItem(domain.ItemSpec{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		ImageURL:       req.ImageURL,
		StartingPrice:  req.StartingPrice,
		AuctionEndTime: req.AuctionEndTime,
	})

	if h.images != nil && item.ImageURL != "" {
		go func(id, url string) {
			if _, err := h.images.Fetch(id, url); err != nil {
				slog.Warn("failed to cache item image", slog.String("item_id", id), slog.Any("error", err))
			}
		}(item.ID, item.ImageURL)
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": item})
}

// handlePlaceBid handles POST /api/items/:id/bids.
func (h *auctionHandler) handlePlaceBid(c *gin.Context) {
	itemID := c.Param("id")

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !req.Amount.IsPositive() || !isTwoDecimal(req.Amount) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount must be a positive amount with at most two decimals"})
		return
	}

	result, err := h.auctioneer.PlaceBid(itemID, req.Amount, req.UserID, req.UserName)
	if err != nil {
		h.writeBidError(c, err)
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastBid(result)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Your bid has been placed successfully!",
		"item":      result.Item,
		"bidRecord": result.Bid,
	})
}

func (h *auctionHandler) writeBidError(c *gin.Context, err error) {
	be, ok := domain.AsBidError(err)
	if !ok {
		slog.Error("bid failed unexpectedly", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	body := gin.H{"success": false, "error": be.Message, "errorCode": string(be.Kind)}
	switch be.Kind {
	case domain.KindItemNotFound:
		c.JSON(http.StatusNotFound, body)
	case domain.KindAuctionEnded:
		c.JSON(http.StatusGone, body)
	case domain.KindSelfOutbid:
		c.JSON(http.StatusConflict, body)
	case domain.KindBidTooLow:
		body["minimumBid"] = be.Minimum
		body["currentBid"] = be.CurrentBid
		c.JSON(http.StatusBadRequest, body)
	default:
		c.JSON(http.StatusBadRequest, body)
	}
}

// handleGetArchive handles GET /api/items/:id/archive.
func (h *auctionHandler) handleGetArchive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "archive disabled"})
		return
	}
	itemID := c.Param("id")
	bids, err := h.archive.BidsForItem(itemID)
	if err != nil {
		slog.Error("failed to read archive", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to read archive"})
		return
	}

	// result is null until the item has closed.
	result, err := h.archive.ClosedAuctionFor(itemID)
	if err != nil {
		slog.Error("failed to read archive", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to read archive"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(bids), "data": bids, "result": result})
}

// handleGetThumbnail handles GET /api/items/:id/thumbnail.
func (h *auctionHandler) handleGetThumbnail(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "thumbnails disabled"})
		return
	}
	path, ok := h.images.ThumbnailPath(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "thumbnail not cached"})
		return
	}
	c.File(path)
}

// handleHealth handles GET /api/health.
func (h *auctionHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}

// handleMetrics handles GET /api/metrics.
func (h *auctionHandler) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, infra.GlobalMetrics.Snapshot())
}

// isTwoDecimal reports whether d carries at most two decimal places.
func isTwoDecimal(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
