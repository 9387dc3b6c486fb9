// Package stats quantifies the statistical relationship and lead/lag
// structure between two daily-return series. The engine is pure computation:
// no I/O, no shared state beyond an optional per-cycle memoization cache.
package stats

import (
	"math"

	errs "github.com/quantfold/themegraph/internal/core/errors"
)

const (
	// MinObservations is the minimum series length for any correlation at all.
	MinObservations = 20

	// DefaultMaxLag bounds the lead/lag scan when the caller passes none.
	DefaultMaxLag = 5

	// MinDegreesOfFreedom disqualifies results whose effective sample is too
	// small for the significance test after the lag shift.
	MinDegreesOfFreedom = 10

	// SignificanceLevel is the two-tailed p-value gate.
	SignificanceLevel = 0.05

	// MinSignificantCorrelation is the magnitude gate applied together with
	// the p-value; both must pass.
	MinSignificantCorrelation = 0.3
)

// Result describes the relationship between two return series. OptimalLag is
// the shift, in trading days, at which the series correlate most strongly:
// positive means the second series lags the first, negative means it leads.
type Result struct {
	Correlation    float64 `json:"correlation"`
	OptimalLag     int     `json:"optimal_lag"`
	LagCorrelation float64 `json:"lag_correlation"`
	PValue         float64 `json:"p_value"`
	Significant    bool    `json:"significant"`
	SampleSize     int     `json:"sample_size"`
}

// Calculate computes the lag-0 Pearson correlation between two return
// series, scans lags in [-maxLag, maxLag] for the strongest shifted
// correlation, and assesses its significance. Series shorter than
// MinObservations, or whose effective sample after the lag shift leaves
// fewer than MinDegreesOfFreedom, yield errs.ErrInsufficientData — callers
// must treat that distinctly from a computed correlation of zero.
func Calculate(returns1, returns2 []float64, maxLag int, sig Significance) (*Result, error) {
	if len(returns1) < MinObservations || len(returns2) < MinObservations {
		return nil, errs.ErrInsufficientData
	}

	if maxLag <= 0 {
		maxLag = DefaultMaxLag
	}

	n := len(returns1)
	if len(returns2) < n {
		n = len(returns2)
	}

	// Right-align to the shorter series: most recent n observations of each.
	s1 := sanitize(returns1[len(returns1)-n:])
	s2 := sanitize(returns2[len(returns2)-n:])

	res := &Result{
		Correlation: pearson(s1, s2),
		SampleSize:  n,
	}

	res.OptimalLag, res.LagCorrelation = scanLags(s1, s2, maxLag, res.Correlation)

	effective := n - abs(res.OptimalLag)
	if effective-fisherDFOffset < MinDegreesOfFreedom {
		return nil, errs.ErrInsufficientData
	}

	res.PValue = sig.PValue(res.LagCorrelation, effective)
	res.Significant = res.PValue < SignificanceLevel && math.Abs(res.LagCorrelation) > MinSignificantCorrelation

	return res, nil
}

// scanLags tests every non-zero lag in increasing |lag| order (-1, +1, -2,
// +2, ...) and returns the first lag whose shifted correlation magnitude
// strictly exceeds every earlier candidate, starting from the base
// correlation. The fixed order makes ties reproducible: the smallest |lag|
// found first wins.
func scanLags(s1, s2 []float64, maxLag int, base float64) (int, float64) {
	bestLag := 0
	bestCorr := base
	bestAbs := math.Abs(base)

	for step := 1; step <= maxLag; step++ {
		for _, lag := range [2]int{-step, step} {
			r := shiftedPearson(s1, s2, lag)
			if math.Abs(r) > bestAbs {
				bestLag = lag
				bestCorr = r
				bestAbs = math.Abs(r)
			}
		}
	}

	return bestLag, bestCorr
}

// shiftedPearson correlates s1 against s2 shifted by lag trading days.
// A positive lag aligns s1[t] with s2[t+lag], testing "s2 lags s1 by lag
// days"; a negative lag tests the reverse.
func shiftedPearson(s1, s2 []float64, lag int) float64 {
	n := len(s1)
	if abs(lag) >= n {
		return 0
	}

	switch {
	case lag > 0:
		return pearson(s1[:n-lag], s2[lag:])
	case lag < 0:
		return pearson(s1[-lag:], s2[:n+lag])
	default:
		return pearson(s1, s2)
	}
}

// pearson computes the Pearson correlation coefficient, returning 0 when
// either series has no variance or a numerical failure occurs.
func pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}

	meanX /= float64(len(x))
	meanY /= float64(len(y))

	var sumXY, sumXX, sumYY float64

	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sumXY += dx * dy
		sumXX += dx * dx
		sumYY += dy * dy
	}

	if sumXX == 0 || sumYY == 0 {
		return 0
	}

	r := sumXY / math.Sqrt(sumXX*sumYY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}

	return r
}

// sanitize replaces non-finite observations with 0, copying so the caller's
// snapshot stays untouched.
func sanitize(series []float64) []float64 {
	out := make([]float64, len(series))

	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
			continue
		}

		out[i] = v
	}

	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
