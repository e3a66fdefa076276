package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the lifecycle state of an auction item.
type ItemStatus string

const (
	StatusActive ItemStatus = "active"
	StatusEnded  ItemStatus = "ended"
)

// Bidder identifies the current highest bidder on an item.
// Identity is caller-supplied and trusted as-is.
type Bidder struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	BidTime  time.Time `json:"bidTime"`
}

// AuctionItem is one auctionable lot with a single current high bid and deadline.
// All mutation happens inside the owning item's exclusive section; copies handed
// out to callers are independent snapshots.
type AuctionItem struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category,omitempty"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	StartingPrice   decimal.Decimal `json:"startingPrice"`
	CurrentBid      decimal.Decimal `json:"currentBid"`
	CurrentBidder   *Bidder         `json:"currentBidder"`
	BidCount        int             `json:"bidCount"`
	AuctionEndTime  time.Time       `json:"auctionEndTime"`
	Status          ItemStatus      `json:"status"`
	PreviousBidders []string        `json:"previousBidders"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastBidTime     time.Time       `json:"lastBidTime,omitzero"`
}

// ItemSpec carries the caller-supplied fields for a new auction item.
type ItemSpec struct {
	Title          string
	Description    string
	Category       string
	ImageURL       string
	StartingPrice  decimal.Decimal
	AuctionEndTime time.Time
}

// Expired reports whether the auction deadline has passed at the given instant.
// The status flag is advisory; this live comparison is the authoritative check.
func (i *AuctionItem) Expired(now time.Time) bool {
	return !now.Before(i.AuctionEndTime)
}

// Remaining returns the time left until the deadline. Negative once expired.
func (i *AuctionItem) Remaining(now time.Time) time.Duration {
	return i.AuctionEndTime.Sub(now)
}

// HasPreviousBidder reports whether the given identity was already recorded
// as outbid on this item.
func (i *AuctionItem) HasPreviousBidder(userID string) bool {
	for _, id := range i.PreviousBidders {
		if id == userID {
			return true
		}
	}
	return false
}

// Snapshot returns an independent copy of the item. The copy shares no mutable
// state with the original, so it stays coherent after the lock is released.
func (i *AuctionItem) Snapshot() AuctionItem {
	snap := *i
	if i.CurrentBidder != nil {
		bidder := *i.CurrentBidder
		snap.CurrentBidder = &bidder
	}
	if i.PreviousBidders != nil {
		snap.PreviousBidders = append([]string(nil), i.PreviousBidders...)
	}
	return snap
}
