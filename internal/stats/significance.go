package stats

import "math"

// fisherDFOffset is the sample-size reduction of the Fisher z transform:
// degrees of freedom are n-3.
const fisherDFOffset = 3

// fallbackPValue is reported when the significance computation cannot
// produce a finite statistic. It deliberately fails the significance gate.
const fallbackPValue = 0.5

// Significance converts a correlation coefficient and effective sample size
// into a two-tailed p-value. Implementations must be safe for concurrent use.
type Significance interface {
	// Name identifies the implementation in logs.
	Name() string

	// PValue reports the two-tailed probability of observing |r| at least
	// this large under the null hypothesis of zero correlation, given n
	// effective observations.
	PValue(r float64, n int) float64
}

// FisherZ assesses significance with the Fisher z-transformation:
// z = atanh(r) * sqrt(n-3), with the two-tailed p-value taken from the
// standard normal distribution.
type FisherZ struct{}

var _ Significance = FisherZ{}

// Name implements Significance.
func (FisherZ) Name() string { return "fisher-z" }

// PValue implements Significance.
func (FisherZ) PValue(r float64, n int) float64 {
	if n-fisherDFOffset < MinDegreesOfFreedom {
		return 1
	}

	// atanh is undefined at |r|=1; nudge inside the open interval.
	if r >= 1 {
		r = 1 - 1e-12
	} else if r <= -1 {
		r = -1 + 1e-12
	}

	z := math.Atanh(r) * math.Sqrt(float64(n-fisherDFOffset))
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return fallbackPValue
	}

	p := math.Erfc(math.Abs(z) / math.Sqrt2)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return fallbackPValue
	}

	return p
}

// NoSignificance is the reduced fallback used when the full test is disabled.
// Every p-value is the fallback constant, so nothing ever passes the
// significance gate but correlations and lags still flow through.
type NoSignificance struct{}

var _ Significance = NoSignificance{}

// Name implements Significance.
func (NoSignificance) Name() string { return "disabled" }

// PValue implements Significance.
func (NoSignificance) PValue(float64, int) float64 { return fallbackPValue }
