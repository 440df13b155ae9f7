package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/collager/internal/models"
)

// Thumbnails smaller than this are almost always "image unavailable"
// placeholders served by the archive.
const minThumbnailBytes = 1000

// Fetcher downloads archive thumbnails to local files. Paths of completed
// downloads are cached per identifier so a thumbnail is fetched at most
// once per process, even when the background loader asks for it again
// after the download stage.
type Fetcher struct {
	HTTPClient *http.Client

	mu    sync.RWMutex
	cache map[string]string // identifier -> local path
}

// NewFetcher creates a new thumbnail fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: make(map[string]string),
	}
}

// DownloadAll downloads the thumbnail of every source into outputDir,
// setting LocalPath in place on success. Failed downloads log a warning
// and leave LocalPath empty; they never fail the batch. Downloads run
// through a bounded worker pool; each source writes only its own slot, so
// no locking is needed beyond the path cache.
func (f *Fetcher) DownloadAll(ctx context.Context, sources []models.SourceImage, outputDir string, concurrency int) []models.SourceImage {
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := range sources {
		wg.Add(1)
		go func(src *models.SourceImage) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			path, err := f.Download(ctx, src, outputDir)
			if err != nil {
				slog.Warn("Failed to download thumbnail", "identifier", src.ExternalID, "error", err)
				return
			}
			src.LocalPath = path
		}(&sources[i])
	}
	wg.Wait()

	downloaded := 0
	for i := range sources {
		if sources[i].LocalPath != "" {
			downloaded++
		}
	}
	slog.Info("Thumbnail downloads complete", "requested", len(sources), "downloaded", downloaded)
	return sources
}

// Download fetches one source's thumbnail, returning the local path. A
// previously downloaded identifier is served from the path cache.
func (f *Fetcher) Download(ctx context.Context, src *models.SourceImage, outputDir string) (string, error) {
	f.mu.RLock()
	cached, ok := f.cache[src.ExternalID]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	thumbnailURL := src.ThumbnailURL()
	if thumbnailURL == "" {
		return "", fmt.Errorf("no thumbnail URL for %s", src.ExternalID)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, src.ExternalID+".jpg")
	if err := f.downloadImage(ctx, thumbnailURL, outputPath); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.cache[src.ExternalID] = outputPath
	f.mu.Unlock()

	return outputPath, nil
}

// downloadImage downloads an image from a URL to a file
func (f *Fetcher) downloadImage(ctx context.Context, url, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}

	if len(imageData) < minThumbnailBytes {
		return fmt.Errorf("image too small (likely placeholder), size: %d bytes", len(imageData))
	}

	// The archive sometimes serves HTML error pages with a 200; only decodable
	// images reach disk.
	if _, _, err := image.Decode(bytes.NewReader(imageData)); err != nil {
		return fmt.Errorf("response is not a decodable image: %w", err)
	}

	if err := os.WriteFile(outputPath, imageData, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}

	return nil
}

// Load decodes a previously downloaded image from disk.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
