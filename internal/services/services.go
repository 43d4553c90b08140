// Package services implements the external collaborators of the pipeline.
//
// yt-dlp search and fetch, artwork download
package services

import (
	"context"

	"github.com/desertthunder/aether/internal/download"
	"github.com/desertthunder/aether/internal/models"
)

// Service is a media platform that can find and fetch audio for a track.
type Service interface {
	// Search returns up to limit candidates for a free-text query.
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)

	// Fetch downloads and transcodes req.URL, returning the produced file path.
	Fetch(ctx context.Context, req download.FetchRequest) (string, error)

	// Name returns the name of the service (e.g., "YouTube")
	Name() string
}

// Thumbnail is an image reference in a search result.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SearchEntry is one JSON line of flat-playlist search output.
type SearchEntry struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Title      string      `json:"title"`
	Duration   float64     `json:"duration"`
	ViewCount  int64       `json:"view_count"`
	Channel    string      `json:"channel"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}
