package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// BidErrorKind classifies the expected, user-facing bid rejections.
type BidErrorKind string

const (
	KindItemNotFound BidErrorKind = "ITEM_NOT_FOUND"
	KindAuctionEnded BidErrorKind = "AUCTION_ENDED"
	KindBidTooLow    BidErrorKind = "BID_TOO_LOW"
	KindSelfOutbid   BidErrorKind = "SELF_OUTBID"
)

// BidError is a rejected bid attempt. These are expected outcomes, not system
// failures: they are returned to the caller and never crash the process.
type BidError struct {
	Kind    BidErrorKind
	ItemID  string
	Message string

	// Set for KindBidTooLow only: the computed minimum acceptable bid and the
	// current high bid, surfaced for user feedback.
	Minimum    decimal.Decimal
	CurrentBid decimal.Decimal
}

func (e *BidError) Error() string {
	return e.Message
}

// Is lets callers match with errors.Is against a kind-only template.
func (e *BidError) Is(target error) bool {
	var be *BidError
	if !errors.As(target, &be) {
		return false
	}
	return e.Kind == be.Kind
}

// NewItemNotFound reports a bid against an unknown item id.
func NewItemNotFound(itemID string) *BidError {
	return &BidError{
		Kind:    KindItemNotFound,
		ItemID:  itemID,
		Message: "item not found",
	}
}

// NewAuctionEnded reports a bid that arrived at or after the item's deadline.
func NewAuctionEnded(itemID string) *BidError {
	return &BidError{
		Kind:    KindAuctionEnded,
		ItemID:  itemID,
		Message: "auction has ended",
	}
}

// NewBidTooLow reports an amount below currentBid + minimum increment.
func NewBidTooLow(itemID string, minimum, currentBid decimal.Decimal) *BidError {
	return &BidError{
		Kind:   KindBidTooLow,
		ItemID: itemID,
		Message: fmt.Sprintf("bid must be at least $%s, current bid is $%s",
			minimum.StringFixed(2), currentBid.StringFixed(2)),
		Minimum:    minimum,
		CurrentBid: currentBid,
	}
}

// NewSelfOutbid reports a bid from the identity already recorded as the
// current highest bidder.
func NewSelfOutbid(itemID string) *BidError {
	return &BidError{
		Kind:    KindSelfOutbid,
		ItemID:  itemID,
		Message: "you are already the highest bidder",
	}
}

// AsBidError unwraps err into a *BidError if it is one.
func AsBidError(err error) (*BidError, bool) {
	var be *BidError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
