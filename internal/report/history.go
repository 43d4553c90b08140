package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/shared"
)

// DefaultHistoryPath is the history file used when none is configured.
const DefaultHistoryPath = "mission_history.json"

// History is the persisted, append-only collection of mission reports: a JSON array in a single file.
type History struct {
	path   string
	logger *log.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewHistory creates a [History] backed by path.
func NewHistory(path string, logger *log.Logger) *History {
	if path == "" {
		path = DefaultHistoryPath
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &History{path: path, logger: logger, now: time.Now}
}

// Path returns the history file location.
func (h *History) Path() string { return h.path }

// Append adds r to the end of the history.
//
// Existing elements are written back byte-for-byte. A missing file counts as empty. A file that does not decode
// as a JSON array is renamed to <path>.corrupt-<unix> and replaced.
func (h *History) Append(r *Report) error {
	if r == nil {
		return fmt.Errorf("%w: nil report", shared.ErrInvalidInput)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.read()
	if err != nil {
		return err
	}

	entry, err := json.MarshalIndent(r, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	entries = append(entries, entry)

	if err := h.write(encodeArray(entries)); err != nil {
		return err
	}
	h.logger.Info("mission report saved", "path", h.path, "missions", len(entries))
	return nil
}

// Load decodes every report in the history. A missing file yields no reports.
func (h *History) Load() ([]Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var reports []Report
	if len(bytes.TrimSpace(data)) == 0 {
		return reports, nil
	}
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("%w: history %s: %v", shared.ErrInvalidInput, h.path, err)
	}
	return reports, nil
}

func (h *History) read() ([]json.RawMessage, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", h.path, h.now().Unix())
		h.logger.Warn("mission history is corrupt, starting a new one", "path", h.path, "moved_to", aside, "err", err)
		if rerr := os.Rename(h.path, aside); rerr != nil {
			return nil, fmt.Errorf("failed to move corrupt history aside: %w", rerr)
		}
		return nil, nil
	}
	return entries, nil
}

// write replaces the history file through a temp file in the same directory.
func (h *History) write(data []byte) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp history: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

// encodeArray renders entries as a 2-space indented JSON array without re-encoding them.
func encodeArray(entries []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, e := range entries {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(e)
	}
	if len(entries) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes()
}
