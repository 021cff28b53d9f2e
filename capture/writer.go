package capture

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pricemesh/pricemesh/feed/types"
)

var csvHeader = []string{
	"timestamp",
	"datetime",
	"price",
	"open",
	"momentum_pct",
	"source_count",
	"divergence_pct",
	"confidence",
	"premium_pct",
	"price_source",
}

// Writer appends one CSV row per poll tick, tracking the price at each
// window open so every row carries momentum relative to the window start.
// Files are opened in append mode so restarts continue the same day's file.
type Writer struct {
	logger zerolog.Logger
	window int64 // seconds

	mtx         sync.Mutex
	file        *os.File
	csv         *csv.Writer
	windowStart int64
	windowOpen  float64
	rows        int
}

// NewWriter opens (or creates) {dataDir}/{asset}_{timeframe}_data.csv and
// returns a Writer tracking windows of the given timeframe.
func NewWriter(logger zerolog.Logger, dataDir, asset, timeframe string) (*Writer, error) {
	interval, ok := Timeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dataDir, fmt.Sprintf("%s_%s_data.csv", strings.ToLower(asset), timeframe))
	info, statErr := os.Stat(path)
	isNew := statErr != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		logger: logger.With().Str("module", "capture").Str("file", filepath.Base(path)).Logger(),
		window: interval,
		file:   file,
		csv:    csv.NewWriter(file),
	}

	if isNew {
		if err := w.csv.Write(csvHeader); err != nil {
			file.Close()
			return nil, err
		}
		w.csv.Flush()
	}
	return w, nil
}

// Append writes one row for report. The report's GeneratedAtMs decides which
// window the row belongs to; crossing a window boundary resets the open price.
func (w *Writer) Append(report *types.PriceReport) error {
	if report == nil {
		return nil
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	ts := report.GeneratedAtMs / 1000
	start := (ts / w.window) * w.window
	if start != w.windowStart {
		if w.rows > 0 {
			w.logger.Info().Int("rows", w.rows).Msg("window complete")
		}
		w.windowStart = start
		w.windowOpen = report.Price
		w.rows = 0
	}

	momentum := ""
	if w.windowOpen > 0 {
		momentum = strconv.FormatFloat(
			(report.Price-w.windowOpen)/w.windowOpen*100, 'f', 4, 64)
	}

	row := []string{
		strconv.FormatInt(ts, 10),
		time.UnixMilli(report.GeneratedAtMs).UTC().Format("2006-01-02 15:04:05"),
		strconv.FormatFloat(report.Price, 'f', 2, 64),
		strconv.FormatFloat(w.windowOpen, 'f', 2, 64),
		momentum,
		strconv.Itoa(report.SourceCount),
		strconv.FormatFloat(report.DivergencePct, 'f', 4, 64),
		strconv.FormatFloat(report.Confidence, 'f', 4, 64),
		strconv.FormatFloat(report.UsdtPremiumPct, 'f', 4, 64),
		"feed",
	}
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	w.rows++

	return w.csv.Error()
}

// Rows returns the number of rows written in the current window.
func (w *Writer) Rows() int {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.rows
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	w.csv.Flush()
	return w.file.Close()
}
