package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rules holds the configured arbitration constants.
type Rules struct {
	// MinIncrement is added to the current bid to compute the minimum
	// acceptable next bid.
	MinIncrement decimal.Decimal
	// LastMinuteThreshold arms the anti-sniping rule: a bid landing with less
	// remaining time than this extends the deadline.
	LastMinuteThreshold time.Duration
	// Extension is the new remaining time after an anti-sniping extension.
	Extension time.Duration
}

// DefaultRules mirrors the stock configuration: $1.00 increment, 60s
// anti-sniping window, 30s extension.
func DefaultRules() Rules {
	return Rules{
		MinIncrement:        decimal.NewFromInt(1),
		LastMinuteThreshold: 60 * time.Second,
		Extension:           30 * time.Second,
	}
}

// Auctioneer is the bid arbitration engine. It owns three id-indexed arenas
// (items, per-item locks, per-item ledgers) and serializes every mutation of
// an item inside that item's exclusive section. High contention on one hot
// item never stalls bidding on an unrelated item.
type Auctioneer struct {
	mu      sync.RWMutex // guards the maps themselves, not item fields
	items   map[string]*domain.AuctionItem
	history map[string][]domain.Bid
	locks   *lockTable

	rules    Rules
	clock    domain.Clock
	archiver domain.BidArchiver

	// onClose is invoked with the final snapshot of each item the sweep
	// transitions to ended, outside the item's exclusive section.
	onClose func(item domain.AuctionItem)
}

// NewAuctioneer creates an engine with empty arenas. archiver and onClose may
// be nil.
func NewAuctioneer(rules Rules, clock domain.Clock, archiver domain.BidArchiver, onClose func(domain.AuctionItem)) *Auctioneer {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Auctioneer{
		items:    make(map[string]*domain.AuctionItem),
		history:  make(map[string][]domain.Bid),
		locks:    newLockTable(),
		rules:    rules,
		clock:    clock,
		archiver: archiver,
		onClose:  onClose,
	}
}

// AddItem creates an auction item from the given ItemSpec, together with its lock and
// empty ledger, and returns a snapshot of the new item.
func (a *Auctioneer) AddItem(spec domain.ItemSpec) domain.AuctionItem {
	now := a.clock.Now()
	item := &domain.AuctionItem{
		ID:              uuid.NewString(),
		Title:           spec.Title,
		Description:     spec.Description,
		Category:        spec.Category,
		ImageURL:        spec.ImageURL,
		StartingPrice:   spec.StartingPrice,
		CurrentBid:      spec.StartingPrice,
		AuctionEndTime:  spec.AuctionEndTime,
		Status:          domain.StatusActive,
		PreviousBidders: []string{},
		CreatedAt:       now,
	}

	// The serializer must exist before the item is observable: anyone who
	// learns the id through the arenas can immediately take the lock.
	a.locks.register(item.ID)
	a.mu.Lock()
	a.items[item.ID] = item
	a.history[item.ID] = []domain.Bid{}
	a.mu.Unlock()

	infra.GlobalMetrics.RecordItemCreated()
	slog.Info("auction item created",
		slog.String("item_id", item.ID),
		slog.String("title", item.Title),
		slog.String("starting_price", item.StartingPrice.StringFixed(2)))
	return item.Snapshot()
}

// PlaceBid validates and applies one bid attempt against an item, inside that
// item's exclusive section. Validation order: existence, live deadline check,
// minimum increment, self-outbid. On success the returned result carries the
// updated item snapshot, the new ledger record and the outbid previous bidder.
func (a *Auctioneer) PlaceBid(itemID string, amount decimal.Decimal, userID, userName string) (*domain.BidResult, error) {
	var result *domain.BidResult

	err := a.locks.withLock(itemID, func() error {
		a.mu.RLock()
		item := a.items[itemID]
		a.mu.RUnlock()
		if item == nil {
			return domain.NewItemNotFound(itemID)
		}

		// The status flag is advisory: the live clock comparison decides, so
		// an item the sweeper has not marked yet still rejects late bids.
		now := a.clock.Now()
		if item.Expired(now) {
			return domain.NewAuctionEnded(itemID)
		}

		minRequired := item.CurrentBid.Add(a.rules.MinIncrement)
		if amount.LessThan(minRequired) {
			return domain.NewBidTooLow(itemID, minRequired, item.CurrentBid)
		}

		if item.CurrentBidder != nil && item.CurrentBidder.UserID == userID {
			return domain.NewSelfOutbid(itemID)
		}

		// Capture the outgoing bidder before overwriting, for outbid signaling.
		var previousBidder *domain.Bidder
		if item.CurrentBidder != nil {
			prev := *item.CurrentBidder
			previousBidder = &prev
		}
		previousAmount := item.CurrentBid

		item.CurrentBid = amount
		item.CurrentBidder = &domain.Bidder{UserID: userID, UserName: userName, BidTime: now}
		item.BidCount++
		item.LastBidTime = now

		if previousBidder != nil && !item.HasPreviousBidder(previousBidder.UserID) {
			item.PreviousBidders = append(item.PreviousBidders, previousBidder.UserID)
		}

		// Anti-sniping: a qualifying late bid resets the deadline to
		// now + Extension. Re-arms on every qualifying bid; the literal
		// recomputation may shorten the remaining time and that is intended.
		extended := false
		if remaining := item.Remaining(now); remaining < a.rules.LastMinuteThreshold && remaining > 0 {
			item.AuctionEndTime = now.Add(a.rules.Extension)
			extended = true
			infra.GlobalMetrics.RecordExtension()
			slog.Info("auction extended by late bid",
				slog.String("item_id", itemID),
				slog.Time("new_end_time", item.AuctionEndTime))
		}

		bid := domain.Bid{
			BidID:     uuid.NewString(),
			Amount:    amount,
			UserID:    userID,
			UserName:  userName,
			Timestamp: now,
		}

		a.mu.Lock()
		a.history[itemID] = append(a.history[itemID], bid)
		a.mu.Unlock()

		result = &domain.BidResult{
			Item:           item.Snapshot(),
			Bid:            bid,
			PreviousBidder: previousBidder,
			PreviousAmount: previousAmount,
			Extended:       extended,
		}
		return nil
	})

	if err != nil {
		infra.GlobalMetrics.RecordBidRejected()
		if be, ok := domain.AsBidError(err); ok {
			slog.Warn("bid rejected",
				slog.String("item_id", itemID),
				slog.String("user", userName),
				slog.String("kind", string(be.Kind)),
				slog.String("reason", be.Message))
		}
		return nil, err
	}

	infra.GlobalMetrics.RecordBidAccepted()
	slog.Info("bid placed",
		slog.String("item_id", itemID),
		slog.String("title", result.Item.Title),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("user", userName),
		slog.String("previous", result.PreviousAmount.StringFixed(2)))

	if a.archiver != nil {
		a.archiver.ArchiveBid(itemID, result.Bid)
	}
	return result, nil
}

// GetItem returns a snapshot of the item, or false if unknown.
func (a *Auctioneer) GetItem(itemID string) (domain.AuctionItem, bool) {
	a.mu.RLock()
	item := a.items[itemID]
	a.mu.RUnlock()
	if item == nil {
		return domain.AuctionItem{}, false
	}

	var snap domain.AuctionItem
	if err := a.locks.withLock(itemID, func() error {
		snap = item.Snapshot()
		return nil
	}); err != nil {
		return domain.AuctionItem{}, false
	}
	return snap, true
}

// GetAllItems returns snapshots of every item, sorted by creation time. Items
// past their deadline surface as ended even if the sweeper has not reached
// them yet; stored state is left to the sweeper so closure events still fire.
func (a *Auctioneer) GetAllItems() []domain.AuctionItem {
	a.mu.RLock()
	ids := make([]string, 0, len(a.items))
	for id := range a.items {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	now := a.clock.Now()
	snaps := make([]domain.AuctionItem, 0, len(ids))
	for _, id := range ids {
		if snap, ok := a.GetItem(id); ok {
			if snap.Status == domain.StatusActive && snap.Expired(now) {
				snap.Status = domain.StatusEnded
			}
			snaps = append(snaps, snap)
		}
	}

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps
}

// GetBidHistory returns the item's accepted bids in acceptance order. Unknown
// items and items without bids both yield an empty slice.
func (a *Auctioneer) GetBidHistory(itemID string) []domain.Bid {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]domain.Bid(nil), a.history[itemID]...)
}

// CloseExpiredAuctions transitions every active item past its deadline to
// ended and returns how many items were closed this sweep. Each item is
// checked under its own lock, so a closure can never race an in-flight
// extension: whichever acquires the lock first wins and the loser re-reads
// the updated state. A fault on one item does not stop the sweep.
func (a *Auctioneer) CloseExpiredAuctions() int {
	a.mu.RLock()
	ids := make([]string, 0, len(a.items))
	for id := range a.items {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	var closedSnaps []domain.AuctionItem
	for _, id := range ids {
		err := a.locks.withLock(id, func() error {
			a.mu.RLock()
			item := a.items[id]
			a.mu.RUnlock()
			if item == nil {
				return nil
			}

			now := a.clock.Now()
			if item.Status != domain.StatusActive || !item.Expired(now) {
				return nil // already ended or still running: no-op
			}

			item.Status = domain.StatusEnded
			closedSnaps = append(closedSnaps, item.Snapshot())

			winner := "no bids"
			if item.CurrentBidder != nil {
				winner = item.CurrentBidder.UserName
			}
			slog.Info("auction ended",
				slog.String("item_id", id),
				slog.String("title", item.Title),
				slog.String("winner", winner),
				slog.String("final_bid", item.CurrentBid.StringFixed(2)))
			return nil
		})
		if err != nil {
			slog.Error("sweep failed for item", slog.String("item_id", id), slog.Any("error", err))
		}
	}

	// Notifications and archival run outside the exclusive sections.
	for _, snap := range closedSnaps {
		infra.GlobalMetrics.RecordAuctionClosed()
		if a.archiver != nil {
			a.archiver.ArchiveClosedAuction(snap)
		}
		if a.onClose != nil {
			a.onClose(snap)
		}
	}
	return len(closedSnaps)
}
