// Package testing contains shared testing utilities.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/aether/internal/download"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/tagging"
)

// MockSearcher is a test double for the search collaborator.
//
// Results are keyed by exact query; Fallback is returned for unknown queries.
type MockSearcher struct {
	mu       sync.Mutex
	Results  map[string][]models.Candidate
	Fallback []models.Candidate
	Errs     map[string]error
	Err      error
	Block    bool // Wait for ctx cancellation instead of answering
	queries  []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.Errs[query]; ok {
		return nil, err
	}
	if res, ok := m.Results[query]; ok {
		return res, nil
	}
	return m.Fallback, nil
}

// Queries returns every query received, in order.
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Calls returns the number of Search invocations.
func (m *MockSearcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// MockFetcher is a test double for [download.Fetcher] that writes a small file at the requested stem.
type MockFetcher struct {
	Err       error // Returned on every call after writing a partial file
	FailFirst int   // Number of leading calls that fail with ErrTransient
	Content   string
	calls     atomic.Int64
	mu        sync.Mutex
	requests  []download.FetchRequest
}

// ErrTransient is returned by [MockFetcher] for its failing calls.
var ErrTransient = errors.New("transient fetch failure")

func (m *MockFetcher) Fetch(ctx context.Context, req download.FetchRequest) (string, error) {
	n := m.calls.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := req.OutputStem + "." + req.Format
	if m.Err != nil || int(n) <= m.FailFirst {
		_ = os.WriteFile(path+".part", []byte("partial"), 0644)
		if m.Err != nil {
			return "", m.Err
		}
		return "", ErrTransient
	}

	content := m.Content
	if content == "" {
		content = "ID3 fake audio for " + req.URL
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	if req.Progress != nil {
		req.Progress(int64(len(content)), int64(len(content)))
	}
	return path, nil
}

// Calls returns the number of Fetch invocations.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

// Requests returns a copy of all received requests.
func (m *MockFetcher) Requests() []download.FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]download.FetchRequest(nil), m.requests...)
}

// MockTagger is a test double for [tagging.Tagger].
type MockTagger struct {
	Err   error
	mu    sync.Mutex
	metas []tagging.Metadata
}

func (m *MockTagger) Write(ctx context.Context, path string, meta tagging.Metadata) error {
	m.mu.Lock()
	m.metas = append(m.metas, meta)
	m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("tag target missing: %w", err)
	}
	return nil
}

// Written returns the metadata of every Write call.
func (m *MockTagger) Written() []tagging.Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tagging.Metadata(nil), m.metas...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// Candidate builds a [models.Candidate] with a derived URL.
func Candidate(id, title string, duration int, views int64) models.Candidate {
	return models.Candidate{
		ID:       id,
		URL:      "https://www.youtube.com/watch?v=" + id,
		Title:    title,
		Duration: duration,
		Views:    views,
	}
}

// AssertNoFiles fails when any entry of dir contains substr.
func AssertNoFiles(t *testing.T, dir, substr string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory %s: %v", dir, err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), substr) {
			t.Errorf("Unexpected file left behind: %s", e.Name())
		}
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
