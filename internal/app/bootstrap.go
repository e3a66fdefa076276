package app

import (
	"log/slog"
	"os"

	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Archive *storage.Archive
	Images  *infra.ImageCache
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, archive).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Auction Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize the bid archive (best-effort persistence)
	if cfg.Archive.Enabled {
		archive, err := storage.NewArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
		b.Archive = archive
		slog.Info("✅ Bid archive initialized")
	}

	// 4. Initialize the item image cache
	if cfg.Images.Enabled {
		images, err := infra.NewImageCache(cfg.Images.CacheDir)
		if err != nil {
			return err
		}
		b.Images = images
		slog.Info("✅ Image cache ready")
	}

	return nil
}

func configPath() string {
	if path := os.Getenv("AUCTION_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yaml"
}
