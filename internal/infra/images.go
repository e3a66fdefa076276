package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const thumbnailWidth = 320

// ImageCache downloads and caches item images as fixed-width thumbnails.
// Item listings reference remote image URLs; the cache keeps a local resized
// copy so the presentation layer never hits the origin per request.
type ImageCache struct {
	basePath string
	client   *http.Client
}

// NewImageCache creates an ImageCache rooted at dir, creating it if needed.
func NewImageCache(dir string) (*ImageCache, error) {
	if dir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
		}
		dir = filepath.Join(configDir, "AuctionGo", "assets", "items")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image cache directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &ImageCache{
		basePath: dir,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// Fetch downloads the image for an item if not cached yet and returns the
// local thumbnail path. Images are resized to a fixed width for consistent
// listing display.
func (c *ImageCache) Fetch(itemID, url string) (string, error) {
	safeID := sanitizeID(itemID)
	if safeID == "" {
		return "", fmt.Errorf("invalid item id: %s", itemID)
	}
	if url == "" {
		return "", fmt.Errorf("no image url for item %s", itemID)
	}

	filePath := filepath.Join(c.basePath, safeID+".jpg")
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Cache hit
	}

	resp, err := c.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Height 0 keeps the aspect ratio.
	resized := imaging.Resize(srcImg, thumbnailWidth, 0, imaging.Lanczos)

	if err := imaging.Save(resized, filePath); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return filePath, nil
}

// ThumbnailPath returns the local thumbnail path for an item, and whether it
// exists yet.
func (c *ImageCache) ThumbnailPath(itemID string) (string, bool) {
	path := filepath.Join(c.basePath, sanitizeID(itemID)+".jpg")
	_, err := os.Stat(path)
	return path, err == nil
}

// sanitizeID strips anything that could escape the cache directory.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
