package indicator

import "github.com/contactkeval/backtester/internal/bar"

// Pivot computes the classic 7-point pivot (P, R1-R3, S1-S3) from the
// *previous* bar's HLC. Index 0 is always invalid since there is no prior
// bar.
func Pivot(bars []bar.Bar) (*Series, error) {
	if err := checkInputs(bars); err != nil {
		return nil, err
	}
	s := &Series{Kind: KindPivot, Type: TypePivot, Values: make([]Value, len(bars))}
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1]
		h, l, c := prev.High, prev.Low, prev.Close
		p := (h + l + c) / 3.0
		s.Values[i] = Value{
			Valid:   true,
			PivotP:  p,
			PivotR1: 2*p - l,
			PivotR2: p + (h - l),
			PivotR3: h + 2*(p-l),
			PivotS1: 2*p - h,
			PivotS2: p - (h - l),
			PivotS3: l - 2*(h-p),
		}
	}
	return s, nil
}
