package harvest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

// CSVHarvester reads a playlist export with an artist,title[,duration][,album] header.
type CSVHarvester struct{}

func NewCSVHarvester() *CSVHarvester {
	return &CSVHarvester{}
}

func (c *CSVHarvester) Name() string { return "csv" }

func (c *CSVHarvester) Harvest(ctx context.Context, source string, out chan<- models.TrackInfo) error {
	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return ReadCSV(ctx, file, out)
}

// ReadCSV streams rows of r to out. Column order is taken from the header; artist and title are required.
func ReadCSV(ctx context.Context, r io.Reader, out chan<- models.TrackInfo) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: failed to read CSV header: %v", shared.ErrHarvestFailed, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"artist", "title"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("%w: CSV header missing %q column", shared.ErrHarvestFailed, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		row++
		if err != nil {
			return fmt.Errorf("%w: row %d: %v", shared.ErrHarvestFailed, row, err)
		}

		info := models.TrackInfo{
			Artist:   field(record, "artist"),
			Title:    field(record, "title"),
			Duration: field(record, "duration"),
			Album:    field(record, "album"),
		}
		if info.Title == "" {
			continue
		}
		if err := send(ctx, out, info); err != nil {
			return err
		}
	}
}
