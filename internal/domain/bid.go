package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is one accepted amount+identity+timestamp record against an item.
// Immutable once created; owned by the item's ledger.
type Bid struct {
	BidID     string          `json:"bidId"`
	Amount    decimal.Decimal `json:"amount"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName"`
	Timestamp time.Time       `json:"timestamp"`
}

// BidResult is the outcome of an accepted bid. The caller forwards it to the
// notification gateway: Item/Bid drive the "bid accepted" broadcast,
// PreviousBidder drives the "you were outbid" signal, Extended the
// anti-sniping announcement.
type BidResult struct {
	Item           AuctionItem     `json:"item"`
	Bid            Bid             `json:"bidRecord"`
	PreviousBidder *Bidder         `json:"previousBidder,omitempty"`
	PreviousAmount decimal.Decimal `json:"previousAmount"`
	Extended       bool            `json:"extended"`
}
