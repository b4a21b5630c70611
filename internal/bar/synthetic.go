package bar

import "time"

// FromCloses builds a deterministic bar series from a close-price slice,
// one bar per calendar day starting at start. High/low are derived with the
// fixed offsets used throughout the test suite (high = close+hiOff,
// low = close-loOff), matching the synthetic generator described in the
// specification's worked examples.
func FromCloses(code, exchange string, start time.Time, closes []float64, hiOff, loOff float64) []Bar {
	out := make([]Bar, len(closes))
	for i, c := range closes {
		out[i] = Bar{
			Code:     code,
			Exchange: exchange,
			Date:     start.AddDate(0, 0, i),
			Open:     c,
			High:     c + hiOff,
			Low:      c - loOff,
			Close:    c,
			Volume:   1000,
		}
	}
	return out
}
