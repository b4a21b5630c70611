// Package data implements the data-port adapters the core consumes through
// universe.DataPort: fetch_ohlcv and list_symbols (specification §6).
// Implementations never block the core in ways it cannot treat as atomic —
// a fetch either returns bars or an error; the universe loader classifies a
// failed or short fetch as an unloadable instrument.
package data

import (
	"time"

	"github.com/contactkeval/backtester/internal/bar"
)

// Provider is the data port the core consumes. It intentionally mirrors
// universe.DataPort's shape; concrete providers satisfy both without an
// adapter.
type Provider interface {
	FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error)
	ListSymbols(exchange string) ([]string, error)
}

// Chained wraps a primary provider with a secondary fallback consulted when
// the primary returns zero bars (not an error — a genuine "no data" result).
// This mirrors the teacher's secondary-provider chaining convention.
type Chained struct {
	Primary   Provider
	Secondary Provider
}

func (c Chained) FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error) {
	bars, err := c.Primary.FetchOHLCV(code, exchange, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 || c.Secondary == nil {
		return bars, nil
	}
	return c.Secondary.FetchOHLCV(code, exchange, start, end)
}

func (c Chained) ListSymbols(exchange string) ([]string, error) {
	syms, err := c.Primary.ListSymbols(exchange)
	if err != nil {
		return nil, err
	}
	if len(syms) > 0 || c.Secondary == nil {
		return syms, nil
	}
	return c.Secondary.ListSymbols(exchange)
}
