package indicator

import (
	"math"

	"github.com/contactkeval/backtester/internal/bar"
)

func newScalarSeries(t Type, p Params, n int) *Series {
	return &Series{Kind: KindScalar, Type: t, Params: p, Values: make([]Value, n)}
}

// SMA computes the simple moving average of close prices with period n.
// Valid from index n-1.
func SMA(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeSMA, Params{Period: n}, len(bars))
	sum := 0.0
	for i, b := range bars {
		sum += b.Close
		if i >= n {
			sum -= bars[i-n].Close
		}
		if i >= n-1 {
			s.Values[i] = Value{Valid: true, Scalar: sum / float64(n)}
		}
	}
	return s, nil
}

// EMA computes the exponential moving average of close prices with period
// n, seeded at index n-1 with SMA(n).
func EMA(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeEMA, Params{Period: n}, len(bars))
	k := 2.0 / float64(n+1)
	seed, err := SMA(bars, n)
	if err != nil {
		return nil, err
	}
	var prev float64
	for i := range bars {
		if i < n-1 {
			continue
		}
		if i == n-1 {
			prev = seed.Values[i].Scalar
		} else {
			prev = bars[i].Close*k + prev*(1-k)
		}
		s.Values[i] = Value{Valid: true, Scalar: prev}
	}
	return s, nil
}

// WMA computes the linearly-weighted moving average (weights 1..n, newest
// weighted heaviest) with period n.
func WMA(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeWMA, Params{Period: n}, len(bars))
	denom := float64(n*(n+1)) / 2.0
	for i := range bars {
		if i < n-1 {
			continue
		}
		sum := 0.0
		w := 1.0
		for j := i - n + 1; j <= i; j++ {
			sum += bars[j].Close * w
			w++
		}
		s.Values[i] = Value{Valid: true, Scalar: sum / denom}
	}
	return s, nil
}

// RSI computes the Relative Strength Index with Wilder smoothing, valid
// from index n.
func RSI(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeRSI, Params{Period: n}, len(bars))
	if len(bars) <= n {
		return s, nil
	}

	var sumGain, sumLoss float64
	for i := 1; i <= n; i++ {
		d := bars[i].Close - bars[i-1].Close
		if d > 0 {
			sumGain += d
		} else {
			sumLoss += -d
		}
	}
	avgGain := sumGain / float64(n)
	avgLoss := sumLoss / float64(n)
	s.Values[n] = Value{Valid: true, Scalar: rsiFromAvgs(avgGain, avgLoss)}

	for i := n + 1; i < len(bars); i++ {
		d := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		s.Values[i] = Value{Valid: true, Scalar: rsiFromAvgs(avgGain, avgLoss)}
	}
	return s, nil
}

func rsiFromAvgs(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	default:
		return 100 - 100/(1+avgGain/avgLoss)
	}
}

// ATR computes the Average True Range with Wilder smoothing, seeded by a
// simple mean of the first n true ranges at index n-1.
func ATR(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeATR, Params{Period: n}, len(bars))
	trs := bar.TrueRanges(bars)
	if len(bars) < n {
		return s, nil
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += trs[i]
	}
	atr := sum / float64(n)
	s.Values[n-1] = Value{Valid: true, Scalar: atr}
	for i := n; i < len(bars); i++ {
		atr = (atr*float64(n-1) + trs[i]) / float64(n)
		s.Values[i] = Value{Valid: true, Scalar: atr}
	}
	return s, nil
}

// STDDEV computes the population standard deviation of the last n closes
// (divide by n), valid from index n-1.
func STDDEV(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeSTDDEV, Params{Period: n}, len(bars))
	for i := range bars {
		if i < n-1 {
			continue
		}
		s.Values[i] = Value{Valid: true, Scalar: popStdDev(bars, i, n)}
	}
	return s, nil
}

func popStdDev(bars []bar.Bar, i, n int) float64 {
	mean := 0.0
	for j := i - n + 1; j <= i; j++ {
		mean += bars[j].Close
	}
	mean /= float64(n)
	variance := 0.0
	for j := i - n + 1; j <= i; j++ {
		d := bars[j].Close - mean
		variance += d * d
	}
	variance /= float64(n)
	return math.Sqrt(variance)
}

// ROC computes the n-period rate of change: 100*(close_i - close_{i-n})/close_{i-n}.
// Valid from index n.
func ROC(bars []bar.Bar, n int) (*Series, error) {
	if err := checkInputs(bars, n); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeROC, Params{Period: n}, len(bars))
	for i := n; i < len(bars); i++ {
		prev := bars[i-n].Close
		if prev == 0 {
			continue
		}
		s.Values[i] = Value{Valid: true, Scalar: 100 * (bars[i].Close - prev) / prev}
	}
	return s, nil
}

// OBV computes On-Balance Volume: a running sum of signed volume, valid at
// every index starting from 0 (the first bar contributes its volume with a
// positive sign by convention).
func OBV(bars []bar.Bar) (*Series, error) {
	if err := checkInputs(bars); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeOBV, Params{}, len(bars))
	running := float64(bars[0].Volume)
	s.Values[0] = Value{Valid: true, Scalar: running}
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			running += float64(bars[i].Volume)
		case bars[i].Close < bars[i-1].Close:
			running -= float64(bars[i].Volume)
		}
		s.Values[i] = Value{Valid: true, Scalar: running}
	}
	return s, nil
}

// VWAP computes the cumulative volume-weighted average price using typical
// price, valid at every index.
func VWAP(bars []bar.Bar) (*Series, error) {
	if err := checkInputs(bars); err != nil {
		return nil, err
	}
	s := newScalarSeries(TypeVWAP, Params{}, len(bars))
	var cumPV, cumV float64
	for i, b := range bars {
		pv := b.Typical() * float64(b.Volume)
		cumPV += pv
		cumV += float64(b.Volume)
		val := 0.0
		if cumV > 0 {
			val = cumPV / cumV
		}
		s.Values[i] = Value{Valid: true, Scalar: val}
	}
	return s, nil
}
