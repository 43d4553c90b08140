// Artwork service for fetching candidate thumbnails over HTTP
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/aether/internal/shared"
)

const (
	// MaxArtworkBytes caps a single cover download.
	MaxArtworkBytes  = 10 << 20
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ArtworkService downloads cover images referenced by search results.
type ArtworkService struct {
	userAgent  string
	httpClient *http.Client
}

// NewArtworkService creates an artwork service. A nil client gets a 30s timeout.
func NewArtworkService(userAgent string, client *http.Client) *ArtworkService {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &ArtworkService{
		userAgent:  userAgent,
		httpClient: client,
	}
}

// Artwork fetches the image at url and returns its bytes and MIME type.
func (a *ArtworkService) Artwork(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("%w: empty artwork url", shared.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("artwork request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxArtworkBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxArtworkBytes {
		return nil, "", fmt.Errorf("artwork exceeds %d bytes", MaxArtworkBytes)
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("artwork response was empty")
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(body)
	}

	return body, mime, nil
}
