package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxDownloadSize caps generated-image downloads at 50MB.
const MaxDownloadSize = 50 * 1024 * 1024

// Downloader fetches generated images from the short-lived URLs the image
// API returns.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a Downloader. A nil client gets a default with a
// 60 second timeout.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{client: client}
}

// DownloadBytes fetches the image at url into memory. Non-2xx responses and
// non-image content types are errors; failures are classified so the caller
// can retry expired or throttled URLs.
func (d *Downloader) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &FatalError{Err: fmt.Errorf("generation: empty download URL")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("generation: build download request: %w", err)}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, Classify(fmt.Errorf("generation: download image: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode,
			fmt.Errorf("generation: download returned status %d", resp.StatusCode))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, &FatalError{Err: fmt.Errorf("generation: unexpected content type %q", ct)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, Classify(fmt.Errorf("generation: read download body: %w", err))
	}
	if len(data) > MaxDownloadSize {
		return nil, &FatalError{Err: fmt.Errorf("generation: image exceeds %d byte limit", MaxDownloadSize)}
	}
	if len(data) == 0 {
		return nil, &TransientError{Err: fmt.Errorf("generation: empty download body")}
	}
	return data, nil
}
