package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auction_go/internal/domain"

	"github.com/shopspring/decimal"
)

// fakeClock is a deterministic Clock for arbitration tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testRules() Rules {
	return Rules{
		MinIncrement:        decimal.NewFromInt(1),
		LastMinuteThreshold: 60 * time.Second,
		Extension:           30 * time.Second,
	}
}

func newTestItem(a *Auctioneer, price string, endsIn time.Duration, now time.Time) domain.AuctionItem {
	return a.AddItem(domain.ItemSpec{
		Title:          "Test Lot",
		Description:    "A thing worth fighting over",
		StartingPrice:  decimal.RequireFromString(price),
		AuctionEndTime: now.Add(endsIn),
	})
}

func TestPlaceBid_ValidationSequence(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	item := newTestItem(a, "100.00", 10*time.Minute, clock.Now())

	t.Run("below minimum increment", func(t *testing.T) {
		_, err := a.PlaceBid(item.ID, decimal.RequireFromString("100.50"), "alice", "Alice")
		be, ok := domain.AsBidError(err)
		if !ok || be.Kind != domain.KindBidTooLow {
			t.Fatalf("expected BidTooLow, got %v", err)
		}
		if !be.Minimum.Equal(decimal.RequireFromString("101.00")) {
			t.Errorf("expected minimum 101.00, got %s", be.Minimum)
		}
		if !be.CurrentBid.Equal(decimal.RequireFromString("100.00")) {
			t.Errorf("expected current bid 100.00, got %s", be.CurrentBid)
		}
	})

	t.Run("exact minimum accepted", func(t *testing.T) {
		res, err := a.PlaceBid(item.ID, decimal.RequireFromString("101.00"), "alice", "Alice")
		if err != nil {
			t.Fatalf("PlaceBid failed: %v", err)
		}
		if res.Item.BidCount != 1 {
			t.Errorf("expected bidCount 1, got %d", res.Item.BidCount)
		}
		if res.Item.CurrentBidder == nil || res.Item.CurrentBidder.UserID != "alice" {
			t.Errorf("expected alice as current bidder, got %+v", res.Item.CurrentBidder)
		}
		if res.PreviousBidder != nil {
			t.Errorf("expected no previous bidder, got %+v", res.PreviousBidder)
		}
	})

	t.Run("minimum recomputed from new high bid", func(t *testing.T) {
		_, err := a.PlaceBid(item.ID, decimal.RequireFromString("101.00"), "bob", "Bob")
		be, ok := domain.AsBidError(err)
		if !ok || be.Kind != domain.KindBidTooLow {
			t.Fatalf("expected BidTooLow, got %v", err)
		}
		if !be.Minimum.Equal(decimal.RequireFromString("102.00")) {
			t.Errorf("expected minimum 102.00, got %s", be.Minimum)
		}
	})

	t.Run("self outbid rejected", func(t *testing.T) {
		_, err := a.PlaceBid(item.ID, decimal.RequireFromString("105.00"), "alice", "Alice")
		be, ok := domain.AsBidError(err)
		if !ok || be.Kind != domain.KindSelfOutbid {
			t.Fatalf("expected SelfOutbid, got %v", err)
		}
	})
}

func TestPlaceBid_ItemNotFound(t *testing.T) {
	a := NewAuctioneer(testRules(), newFakeClock(time.Now()), nil, nil)

	_, err := a.PlaceBid("no-such-item", decimal.NewFromInt(10), "alice", "Alice")
	be, ok := domain.AsBidError(err)
	if !ok || be.Kind != domain.KindItemNotFound {
		t.Fatalf("expected ItemNotFound, got %v", err)
	}
}

func TestPlaceBid_RejectsAfterDeadline(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	item := newTestItem(a, "50.00", time.Minute, clock.Now())

	// Past the deadline, before any sweep: the status flag is still active
	// but the live clock check must reject.
	clock.Advance(2 * time.Minute)

	snap, _ := a.GetItem(item.ID)
	if snap.Status != domain.StatusActive {
		t.Fatalf("precondition: status should still be stale-active, got %s", snap.Status)
	}

	_, err := a.PlaceBid(item.ID, decimal.RequireFromString("60.00"), "alice", "Alice")
	be, ok := domain.AsBidError(err)
	if !ok || be.Kind != domain.KindAuctionEnded {
		t.Fatalf("expected AuctionEnded, got %v", err)
	}
}

func TestPlaceBid_AntiSniping(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)

	t.Run("extends on qualifying late bid, even shortening", func(t *testing.T) {
		// 40s remaining is inside the 60s window; the 30s extension lands
		// earlier than the previous deadline. The new deadline still wins.
		item := newTestItem(a, "100.00", 40*time.Second, clock.Now())

		res, err := a.PlaceBid(item.ID, decimal.RequireFromString("101.00"), "alice", "Alice")
		if err != nil {
			t.Fatalf("PlaceBid failed: %v", err)
		}
		if !res.Extended {
			t.Fatal("expected extension to fire")
		}
		want := clock.Now().Add(30 * time.Second)
		if !res.Item.AuctionEndTime.Equal(want) {
			t.Errorf("expected end time %v, got %v", want, res.Item.AuctionEndTime)
		}
	})

	t.Run("re-arms on every qualifying bid", func(t *testing.T) {
		item := newTestItem(a, "100.00", 50*time.Second, clock.Now())

		bidders := []string{"alice", "bob", "carol"}
		amount := decimal.RequireFromString("101.00")
		for i, bidder := range bidders {
			clock.Advance(5 * time.Second)
			res, err := a.PlaceBid(item.ID, amount, bidder, bidder)
			if err != nil {
				t.Fatalf("bid %d failed: %v", i, err)
			}
			if !res.Extended {
				t.Fatalf("bid %d should have extended", i)
			}
			want := clock.Now().Add(30 * time.Second)
			if !res.Item.AuctionEndTime.Equal(want) {
				t.Errorf("bid %d: expected end time %v, got %v", i, want, res.Item.AuctionEndTime)
			}
			amount = amount.Add(decimal.NewFromInt(1))
		}
	})

	t.Run("no extension outside the window", func(t *testing.T) {
		item := newTestItem(a, "100.00", 10*time.Minute, clock.Now())

		res, err := a.PlaceBid(item.ID, decimal.RequireFromString("101.00"), "alice", "Alice")
		if err != nil {
			t.Fatalf("PlaceBid failed: %v", err)
		}
		if res.Extended {
			t.Error("extension should not fire with 10m remaining")
		}
		if !res.Item.AuctionEndTime.Equal(item.AuctionEndTime) {
			t.Errorf("end time changed: %v -> %v", item.AuctionEndTime, res.Item.AuctionEndTime)
		}
	})
}

func TestPlaceBid_PreviousBidders(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	item := newTestItem(a, "10.00", time.Hour, clock.Now())

	amount := decimal.RequireFromString("11.00")
	for _, bidder := range []string{"alice", "bob", "alice", "bob"} {
		res, err := a.PlaceBid(item.ID, amount, bidder, bidder)
		if err != nil {
			t.Fatalf("bid by %s failed: %v", bidder, err)
		}
		amount = amount.Add(decimal.NewFromInt(1))
		_ = res
	}

	snap, _ := a.GetItem(item.ID)
	if len(snap.PreviousBidders) != 2 {
		t.Fatalf("expected 2 unique previous bidders, got %v", snap.PreviousBidders)
	}
	if !snap.HasPreviousBidder("alice") || !snap.HasPreviousBidder("bob") {
		t.Errorf("expected alice and bob recorded, got %v", snap.PreviousBidders)
	}
}

func TestPlaceBid_Concurrent(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	item := newTestItem(a, "100.00", time.Hour, clock.Now())

	const bidders = 50
	var successes atomic.Int64
	var wg sync.WaitGroup

	for i := 1; i <= bidders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			amount := decimal.NewFromInt(int64(100 + n))
			userID := fmt.Sprintf("user-%d", n)
			if _, err := a.PlaceBid(item.ID, amount, userID, userID); err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	snap, _ := a.GetItem(item.ID)
	history := a.GetBidHistory(item.ID)

	if int64(snap.BidCount) != successes.Load() {
		t.Errorf("bidCount %d != successful bids %d", snap.BidCount, successes.Load())
	}
	if int64(len(history)) != successes.Load() {
		t.Errorf("ledger length %d != successful bids %d", len(history), successes.Load())
	}

	// currentBid is non-decreasing and equals the last accepted amount.
	prev := item.StartingPrice
	for i, bid := range history {
		if bid.Amount.LessThan(prev) {
			t.Fatalf("ledger entry %d lowered the bid: %s after %s", i, bid.Amount, prev)
		}
		prev = bid.Amount
	}
	if !snap.CurrentBid.Equal(prev) {
		t.Errorf("currentBid %s != last accepted amount %s", snap.CurrentBid, prev)
	}
}

func TestGetAllItems_SurfacesEndedPastDeadline(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	expired := newTestItem(a, "10.00", time.Minute, clock.Now())
	running := newTestItem(a, "10.00", time.Hour, clock.Now())

	clock.Advance(5 * time.Minute)

	byID := make(map[string]domain.AuctionItem)
	for _, it := range a.GetAllItems() {
		byID[it.ID] = it
	}

	if byID[expired.ID].Status != domain.StatusEnded {
		t.Errorf("expired item should surface as ended, got %s", byID[expired.ID].Status)
	}
	if byID[running.ID].Status != domain.StatusActive {
		t.Errorf("running item should stay active, got %s", byID[running.ID].Status)
	}

	// The display rule must not steal the sweeper's transition.
	if got := a.CloseExpiredAuctions(); got != 1 {
		t.Errorf("sweep should still close the expired item once, closed %d", got)
	}
}

func TestGetBidHistory(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	item := newTestItem(a, "10.00", time.Hour, clock.Now())

	t.Run("unknown item yields empty history", func(t *testing.T) {
		if got := a.GetBidHistory("nope"); len(got) != 0 {
			t.Errorf("expected empty history, got %d entries", len(got))
		}
	})

	t.Run("acceptance order preserved", func(t *testing.T) {
		amounts := []string{"11.00", "12.50", "20.00"}
		bidders := []string{"alice", "bob", "carol"}
		for i := range amounts {
			if _, err := a.PlaceBid(item.ID, decimal.RequireFromString(amounts[i]), bidders[i], bidders[i]); err != nil {
				t.Fatalf("bid %d failed: %v", i, err)
			}
		}

		history := a.GetBidHistory(item.ID)
		if len(history) != len(amounts) {
			t.Fatalf("expected %d entries, got %d", len(amounts), len(history))
		}
		for i, want := range amounts {
			if !history[i].Amount.Equal(decimal.RequireFromString(want)) {
				t.Errorf("entry %d: expected %s, got %s", i, want, history[i].Amount)
			}
		}

		snap, _ := a.GetItem(item.ID)
		if snap.BidCount != len(history) {
			t.Errorf("bidCount %d != history length %d", snap.BidCount, len(history))
		}
	})
}

func TestAddItem_Initialization(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)
	item := newTestItem(a, "25.00", time.Hour, clock.Now())

	if item.ID == "" {
		t.Error("expected generated id")
	}
	if !item.CurrentBid.Equal(item.StartingPrice) {
		t.Errorf("currentBid should initialize to startingPrice, got %s", item.CurrentBid)
	}
	if item.Status != domain.StatusActive {
		t.Errorf("new item should be active, got %s", item.Status)
	}
	if item.BidCount != 0 || item.CurrentBidder != nil {
		t.Error("new item should have no bids")
	}
}

func TestGetItem_MissingSerializer(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)

	// An arena entry without its lock must never surface as a zero-value
	// snapshot with ok=true.
	a.mu.Lock()
	a.items["orphan"] = &domain.AuctionItem{
		ID:             "orphan",
		Title:          "Orphan Lot",
		AuctionEndTime: clock.Now().Add(time.Hour),
		Status:         domain.StatusActive,
	}
	a.mu.Unlock()

	if snap, ok := a.GetItem("orphan"); ok {
		t.Fatalf("item without serializer returned ok=true: %+v", snap)
	}
	for _, it := range a.GetAllItems() {
		if it.ID == "orphan" || it.ID == "" {
			t.Fatalf("listing surfaced an item without serializer: %+v", it)
		}
	}
}

func TestAddItem_ImmediatelyServiceable(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			newTestItem(a, "10.00", time.Hour, clock.Now())
		}
	}()

	// Every item visible through the listing must already have its lock:
	// reads return real snapshots and bids are never rejected as unknown.
	for {
		for _, listed := range a.GetAllItems() {
			snap, ok := a.GetItem(listed.ID)
			if !ok || snap.ID != listed.ID {
				t.Fatalf("listed item %s not retrievable: ok=%v snap=%+v", listed.ID, ok, snap)
			}
			if _, err := a.PlaceBid(listed.ID, decimal.RequireFromString("1.00"), "alice", "Alice"); err != nil {
				if be, isBid := domain.AsBidError(err); isBid && be.Kind == domain.KindItemNotFound {
					t.Fatalf("listed item %s rejected as unknown", listed.ID)
				}
			}
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestBidError_Matching(t *testing.T) {
	clock := newFakeClock(time.Now())
	a := NewAuctioneer(testRules(), clock, nil, nil)

	_, err := a.PlaceBid("missing", decimal.NewFromInt(5), "alice", "Alice")
	if !errors.Is(err, &domain.BidError{Kind: domain.KindItemNotFound}) {
		t.Errorf("errors.Is should match on kind, got %v", err)
	}
}
