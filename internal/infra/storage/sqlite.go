package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"auction_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ArchivedBid is one accepted bid persisted out-of-band. Amounts are stored
// as fixed-point strings, never floats.
type ArchivedBid struct {
	BidID    string    `gorm:"primaryKey" json:"bidId"`
	ItemID   string    `gorm:"index" json:"itemId"`
	Amount   string    `json:"amount"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	PlacedAt time.Time `json:"placedAt"`
}

// ClosedAuction is the final result of an ended auction.
type ClosedAuction struct {
	ItemID     string    `gorm:"primaryKey" json:"itemId"`
	Title      string    `json:"title"`
	FinalBid   string    `json:"finalBid"`
	BidCount   int       `json:"bidCount"`
	WinnerID   string    `json:"winnerId"`
	WinnerName string    `json:"winnerName"`
	EndedAt    time.Time `json:"endedAt"`
}

// Archive persists accepted bids and closed auctions to SQLite, best effort.
// Writes are queued to a single writer goroutine so the bid hotpath never
// waits on the database; when the queue is full entries are dropped with a
// warning. The engine never reads archived data back for arbitration.
type Archive struct {
	db    *gorm.DB
	inbox chan any
	done  chan struct{}
}

// NewArchive opens (or creates) the archive database at path. An empty path
// resolves to the per-user config directory.
func NewArchive(path string) (*Archive, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		path = filepath.Join(configDir, "AuctionGo", "data", "auction.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&ArchivedBid{}, &ClosedAuction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Archive{
		db:    db,
		inbox: make(chan any, 256),
		done:  make(chan struct{}),
	}, nil
}

// Run drains the write queue until the context is cancelled, then flushes
// whatever is still queued. Meant to be run in its own goroutine.
func (a *Archive) Run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case row := <-a.inbox:
					a.save(row)
				default:
					slog.Info("bid archive stopped")
					return
				}
			}
		case row := <-a.inbox:
			a.save(row)
		}
	}
}

// Wait blocks until Run has returned.
func (a *Archive) Wait() {
	<-a.done
}

func (a *Archive) save(row any) {
	var err error
	switch r := row.(type) {
	case *ArchivedBid:
		err = a.db.Save(r).Error
	case *ClosedAuction:
		err = a.db.Save(r).Error
	default:
		slog.Warn("unknown archive row type", slog.Any("row", row))
		return
	}
	if err != nil {
		slog.Error("archive write failed", slog.Any("error", err))
	}
}

// ArchiveBid queues an accepted bid for persistence. Never blocks.
func (a *Archive) ArchiveBid(itemID string, bid domain.Bid) {
	row := &ArchivedBid{
		BidID:    bid.BidID,
		ItemID:   itemID,
		Amount:   bid.Amount.StringFixed(2),
		UserID:   bid.UserID,
		UserName: bid.UserName,
		PlacedAt: bid.Timestamp,
	}
	select {
	case a.inbox <- row:
	default:
		slog.Warn("archive queue full, dropping bid", slog.String("bid_id", bid.BidID))
	}
}

// ArchiveClosedAuction queues the final result of an ended item. Never blocks.
func (a *Archive) ArchiveClosedAuction(item domain.AuctionItem) {
	row := &ClosedAuction{
		ItemID:   item.ID,
		Title:    item.Title,
		FinalBid: item.CurrentBid.StringFixed(2),
		BidCount: item.BidCount,
		EndedAt:  item.AuctionEndTime,
	}
	if item.CurrentBidder != nil {
		row.WinnerID = item.CurrentBidder.UserID
		row.WinnerName = item.CurrentBidder.UserName
	}
	select {
	case a.inbox <- row:
	default:
		slog.Warn("archive queue full, dropping auction result", slog.String("item_id", item.ID))
	}
}

// BidsForItem returns the archived bids for an item, oldest first.
func (a *Archive) BidsForItem(itemID string) ([]ArchivedBid, error) {
	var bids []ArchivedBid
	err := a.db.Where("item_id = ?", itemID).Order("placed_at asc").Find(&bids).Error
	return bids, err
}

// ClosedAuctionFor returns the archived result for an item, or nil when the
// item has not closed yet.
func (a *Archive) ClosedAuctionFor(itemID string) (*ClosedAuction, error) {
	var row ClosedAuction
	err := a.db.First(&row, "item_id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &row, err
}
