package domain

import (
	"sort"
	"time"
)

// NewsItem is one headline record supplied by the news collaborator.
type NewsItem struct {
	Title     string    `json:"title"`
	Tickers   []string  `json:"tickers,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgeHours returns the age of the item in hours at the given instant.
func (n NewsItem) AgeHours(now time.Time) float64 {
	return now.Sub(n.Timestamp).Hours()
}

// Snapshot is the per-cycle input: a daily return series per ticker (most
// recent observation last) and the recent news items.
type Snapshot struct {
	Returns map[string][]float64
	News    []NewsItem
	AsOf    time.Time
}

// Tickers returns the tickers with return series, sorted for reproducible
// candidate iteration.
func (s *Snapshot) Tickers() []string {
	out := make([]string, 0, len(s.Returns))
	for t := range s.Returns {
		out = append(out, t)
	}

	sort.Strings(out)

	return out
}
