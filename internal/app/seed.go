package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/engine"

	"github.com/shopspring/decimal"
)

// SeedItems populates the engine with the stock demo lots and prefetches
// their images in the background. This simulates the admin-creation flow a
// fresh process would otherwise wait for.
func (b *Bootstrap) SeedItems(ctx context.Context, auctioneer *engine.Auctioneer) {
	if !b.Config.Auction.SeedSampleItems {
		return
	}

	slog.Info("🔄 Seeding sample auction items...")

	now := time.Now()
	specs := []domain.ItemSpec{
		{
			Title:          "Vintage Rolex Submariner 1960s",
			Description:    "Rare vintage Rolex watch in excellent condition",
			StartingPrice:  decimal.RequireFromString("5000.00"),
			ImageURL:       "https://images.unsplash.com/photo-1523170335258-f5ed11844a49",
			Category:       "Watches",
			AuctionEndTime: now.Add(5 * time.Minute),
		},
		{
			Title:          "MacBook Pro 16\" M3 Max 2024",
			Description:    "Brand new sealed MacBook Pro with M3 Max chip, 64GB RAM",
			StartingPrice:  decimal.RequireFromString("2500.00"),
			ImageURL:       "https://images.unsplash.com/photo-1517336714731-489689fd1ca8",
			Category:       "Electronics",
			AuctionEndTime: now.Add(10 * time.Minute),
		},
		{
			Title:          "Limited Edition Air Jordan 1 Chicago",
			Description:    "Size 10, deadstock condition with original box",
			StartingPrice:  decimal.RequireFromString("800.00"),
			ImageURL:       "https://images.unsplash.com/photo-1542291026-7eec264c27ff",
			Category:       "Sneakers",
			AuctionEndTime: now.Add(3 * time.Minute),
		},
		{
			Title:          "Sony A7R V Mirrorless Camera",
			Description:    "Professional full-frame camera with 61MP sensor",
			StartingPrice:  decimal.RequireFromString("3200.00"),
			ImageURL:       "https://images.unsplash.com/photo-1516035069371-29a1b244cc32",
			Category:       "Cameras",
			AuctionEndTime: now.Add(15 * time.Minute),
		},
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 2) // Limit concurrent downloads

	for _, spec := range specs {
		item := auctioneer.AddItem(spec)

		if b.Images == nil || item.ImageURL == "" {
			continue
		}
		wg.Add(1)
		go func(id, url string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			if _, err := b.Images.Fetch(id, url); err != nil {
				slog.Warn("failed to prefetch item image", slog.String("item_id", id), slog.Any("error", err))
			}
		}(item.ID, item.ImageURL)
	}

	wg.Wait()
	slog.Info("✨ Sample items seeded", slog.Int("count", len(specs)))
}
