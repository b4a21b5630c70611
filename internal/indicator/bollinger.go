package indicator

import "github.com/contactkeval/backtester/internal/bar"

// Bollinger computes the Bollinger band triple (upper, middle, lower) with
// period n and stddev multiplier m. Middle is SMA(n); sigma is the
// population standard deviation of the last n closes.
func Bollinger(bars []bar.Bar, n int, m float64) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := &Series{Kind: KindBollinger, Type: TypeBollinger, Params: Params{Period: n, Mult: m}, Values: make([]Value, len(bars))}

	mid, err := SMA(bars, n)
	if err != nil {
		return nil, err
	}
	for i := range bars {
		if i < n-1 {
			continue
		}
		sigma := popStdDev(bars, i, n)
		middle := mid.Values[i].Scalar
		s.Values[i] = Value{
			Valid:      true,
			BollUpper:  middle + m*sigma,
			BollMiddle: middle,
			BollLower:  middle - m*sigma,
		}
	}
	return s, nil
}
