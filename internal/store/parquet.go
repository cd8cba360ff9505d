package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"fxlab/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk. Each
// (instrument, period) series lives in a single file:
//
//	<DataDir>/<INSTRUMENT>/<period>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// BarRecord is the Parquet schema for curated bar data.
type BarRecord struct {
	Instrument string  `parquet:"instrument"`
	Timestamp  int64   `parquet:"utc_time,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     float64 `parquet:"volume"`
}

// WriteBars merges the given bars into the stored series for
// (instrument, period). Bars with duplicate timestamps replace existing ones.
func (s *ParquetStore) WriteBars(_ context.Context, instrument, period string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, BarRecord{
			Instrument: strings.ToUpper(b.Instrument),
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
		})
	}

	path := s.seriesPath(instrument, period)
	existing, _ := readParquetFile[BarRecord](path)
	merged := mergeBarRecords(existing, records)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing bars for %s/%s: %w", instrument, period, err)
	}
	return nil
}

// ReadBars reads the series for (instrument, period), optionally bounded by
// [start, end]. Bars come back ordered by timestamp. A missing series file
// yields an empty slice, not an error.
func (s *ParquetStore) ReadBars(_ context.Context, instrument, period string, start, end time.Time) ([]domain.Bar, error) {
	path := s.seriesPath(instrument, period)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	records, err := readParquetFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s/%s: %w", instrument, period, err)
	}

	bars := make([]domain.Bar, 0, len(records))
	for _, r := range records {
		ts := time.UnixMilli(r.Timestamp).UTC()
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Instrument: r.Instrument,
			Timestamp:  ts,
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     r.Volume,
		})
	}
	return bars, nil
}

// ListInstruments lists all instruments that have at least one stored series.
func (s *ParquetStore) ListInstruments(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var instruments []string
	for _, e := range entries {
		if e.IsDir() {
			instruments = append(instruments, e.Name())
		}
	}
	sort.Strings(instruments)
	return instruments, nil
}

// seriesPath returns the filesystem path for a bar series file.
// Layout: <dataDir>/<INSTRUMENT>/<period>.parquet
func (s *ParquetStore) seriesPath(instrument, period string) string {
	return filepath.Join(s.DataDir, strings.ToUpper(instrument), strings.ToLower(period)+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates records by timestamp, preferring incoming
// records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
