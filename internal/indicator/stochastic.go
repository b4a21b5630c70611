package indicator

import "github.com/contactkeval/backtester/internal/bar"

// Stochastic computes the %K/%D pair. %K is valid from index kPeriod-1; %D
// (an SMA of the last dPeriod %K values) is valid from index
// kPeriod-1+dPeriod-1.
func Stochastic(bars []bar.Bar, kPeriod, dPeriod int) (*Series, error) {
	if err := checkInputs(bars, kPeriod, dPeriod); err != nil {
		return nil, err
	}
	s := &Series{Kind: KindStochastic, Type: TypeStochastic, Params: Params{Period: kPeriod, Secondary: dPeriod}, Values: make([]Value, len(bars))}

	percentK := make([]float64, len(bars))
	kValidFrom := kPeriod - 1
	for i := kValidFrom; i < len(bars); i++ {
		hh := bars[i].High
		ll := bars[i].Low
		for j := i - kPeriod + 1; j <= i; j++ {
			if bars[j].High > hh {
				hh = bars[j].High
			}
			if bars[j].Low < ll {
				ll = bars[j].Low
			}
		}
		if hh == ll {
			percentK[i] = 50
		} else {
			percentK[i] = 100 * (bars[i].Close - ll) / (hh - ll)
		}
	}

	dValidFrom := kValidFrom + dPeriod - 1
	for i := kValidFrom; i < len(bars); i++ {
		if i < dValidFrom {
			s.Values[i] = Value{Valid: true, StochK: percentK[i]}
			continue
		}
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += percentK[j]
		}
		s.Values[i] = Value{Valid: true, StochK: percentK[i], StochD: sum / float64(dPeriod), StochDValid: true}
	}
	return s, nil
}
