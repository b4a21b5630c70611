package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/backtester/internal/bar"
	"github.com/contactkeval/backtester/internal/logger"
)

// CSVProvider reads one file per code from a directory, named
// "<CODE>.csv" (the code upper-cased) with header
// date,open,high,low,close,volume.
type CSVProvider struct {
	Dir string
}

// NewCSVProvider constructs a provider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

func (p *CSVProvider) FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error) {
	path := filepath.Join(p.Dir, strings.ToUpper(code)+".csv")
	f, err := os.Open(path)
	if err != nil {
		logger.Debugf("csv provider: open %s: %v", path, err)
		return nil, nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv provider: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]bar.Bar, 0, len(records))
	for i, row := range records {
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		b, err := parseRow(row, code, exchange)
		if err != nil {
			logger.Debugf("csv provider: skip malformed row in %s: %v", path, err)
			continue
		}
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (p *CSVProvider) ListSymbols(exchange string) ([]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("csv provider: list %s: %w", p.Dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	return out, nil
}

func looksLikeHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
	return err != nil
}

func parseRow(row []string, code, exchange string) (bar.Bar, error) {
	if len(row) < 6 {
		return bar.Bar{}, fmt.Errorf("expected 6 columns, got %d", len(row))
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(row[0]), time.UTC)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("parse date %q: %w", row[0], err)
	}
	open, err1 := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	high, err2 := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	low, err3 := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	close, err4 := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	vol, err5 := strconv.ParseInt(strings.TrimSpace(row[5]), 10, 64)
	for _, e := range []error{err1, err2, err3, err4, err5} {
		if e != nil {
			return bar.Bar{}, e
		}
	}
	return bar.Bar{
		Code: code, Exchange: exchange, Date: date,
		Open: open, High: high, Low: low, Close: close, Volume: vol,
	}, nil
}
