package data

import (
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/backtester/internal/bar"
)

// SyntheticProvider generates a deterministic-per-seed random-walk bar
// series. It exists for demos, tests, and as a last-resort fallback when no
// other provider has data for a code.
type SyntheticProvider struct {
	rng *rand.Rand
}

// NewSyntheticProvider constructs a provider seeded by seed; identical
// seeds reproduce identical bar series.
func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{rng: rand.New(rand.NewSource(seed))}
}

func (s *SyntheticProvider) FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error) {
	var out []bar.Bar
	price := 100.0 + s.rng.Float64()*50
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		delta := s.rng.NormFloat64() * 0.01 * price
		open := price
		close := price + delta
		high := math.Max(open, close) + math.Abs(s.rng.NormFloat64()*0.3)
		low := math.Min(open, close) - math.Abs(s.rng.NormFloat64()*0.3)
		vol := int64(1000 + s.rng.Intn(5000))
		out = append(out, bar.Bar{
			Code: code, Exchange: exchange, Date: cur,
			Open: open, High: high, Low: low, Close: close, Volume: vol,
		})
		price = close
	}
	return out, nil
}

func (s *SyntheticProvider) ListSymbols(exchange string) ([]string, error) {
	return nil, nil
}
