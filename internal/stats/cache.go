package stats

import (
	"sync"

	"github.com/quantfold/themegraph/internal/platform/observability"
)

// Engine memoizes pairwise correlation results. A learning cycle touches the
// same pair from several phases (discovery, role assignment, validation), so
// the learner constructs one Engine per cycle and discards it afterwards;
// return series never change mid-cycle, which keeps memoized results valid.
type Engine struct {
	maxLag int
	sig    Significance

	mu   sync.Mutex
	memo map[pairKey]memoEntry
}

// pairKey is directional: (a, b) and (b, a) are distinct entries because the
// lag sign depends on argument order.
type pairKey struct {
	ticker1, ticker2 string
	len1, len2       int
	maxLag           int
}

type memoEntry struct {
	res *Result
	err error
}

// NewEngine returns an Engine using the given significance test. maxLag <= 0
// selects DefaultMaxLag.
func NewEngine(maxLag int, sig Significance) *Engine {
	if maxLag <= 0 {
		maxLag = DefaultMaxLag
	}

	return &Engine{
		maxLag: maxLag,
		sig:    sig,
		memo:   make(map[pairKey]memoEntry),
	}
}

// Pair computes (or recalls) the correlation between the two tickers' return
// series. The returned Result is a copy; callers may mutate it freely.
func (e *Engine) Pair(ticker1 string, returns1 []float64, ticker2 string, returns2 []float64) (*Result, error) {
	key := pairKey{
		ticker1: ticker1,
		ticker2: ticker2,
		len1:    len(returns1),
		len2:    len(returns2),
		maxLag:  e.maxLag,
	}

	e.mu.Lock()
	entry, ok := e.memo[key]
	e.mu.Unlock()

	if ok {
		observability.CorrelationCacheHits.Inc()
		return cloneResult(entry.res), entry.err
	}

	observability.CorrelationCacheMisses.Inc()

	res, err := Calculate(returns1, returns2, e.maxLag, e.sig)
	if err != nil {
		observability.CorrelationsComputed.WithLabelValues("insufficient_data").Inc()
	} else {
		observability.CorrelationsComputed.WithLabelValues("ok").Inc()
	}

	e.mu.Lock()
	e.memo[key] = memoEntry{res: res, err: err}
	e.mu.Unlock()

	return cloneResult(res), err
}

// Size reports the number of memoized pairs, for cycle-summary logging.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.memo)
}

func cloneResult(res *Result) *Result {
	if res == nil {
		return nil
	}

	out := *res

	return &out
}
