package domain

import "time"

// Clock supplies the current time. Injectable so arbitration and sweep logic
// can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the production Clock backed by the system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// BidArchiver receives accepted bids and closed auctions for best-effort,
// out-of-band persistence. Implementations must not block the caller; the
// engine never reads archived data back for arbitration.
type BidArchiver interface {
	ArchiveBid(itemID string, bid Bid)
	ArchiveClosedAuction(item AuctionItem)
}
