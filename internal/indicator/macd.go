package indicator

import "github.com/contactkeval/backtester/internal/bar"

// MACD computes the MACD line (fast EMA - slow EMA), its signal line (an
// EMA of the line, seeded the same way EMA itself is seeded), and the
// resulting histogram.
func MACD(bars []bar.Bar, fast, slow, signal int) (*Series, error) {
	if err := checkInputs(bars, fast, slow, signal); err != nil {
		return nil, err
	}
	s := &Series{Kind: KindMACD, Type: TypeMACD, Params: Params{Period: fast, Secondary: slow, Tertiary: signal}, Values: make([]Value, len(bars))}

	emaFast, err := EMA(bars, fast)
	if err != nil {
		return nil, err
	}
	emaSlow, err := EMA(bars, slow)
	if err != nil {
		return nil, err
	}

	lineStart := slow - 1
	if lineStart >= len(bars) {
		return s, nil
	}

	k := 2.0 / float64(signal+1)
	var signalPrev float64
	var sigSeedSum float64
	sigSeedCount := 0

	for i := lineStart; i < len(bars); i++ {
		line := emaFast.Values[i].Scalar - emaSlow.Values[i].Scalar

		macdIdx := i - lineStart // 0-based position within the macd-line run
		var sigVal float64
		sigValid := false
		switch {
		case macdIdx < signal-1:
			// still accumulating the seed window
			sigSeedSum += line
			sigSeedCount++
		case macdIdx == signal-1:
			sigSeedSum += line
			sigSeedCount++
			signalPrev = sigSeedSum / float64(sigSeedCount)
			sigVal = signalPrev
			sigValid = true
		default:
			signalPrev = line*k + signalPrev*(1-k)
			sigVal = signalPrev
			sigValid = true
		}

		if sigValid {
			s.Values[i] = Value{Valid: true, MACDLine: line, MACDSignal: sigVal, MACDHist: line - sigVal}
		}
	}
	return s, nil
}
