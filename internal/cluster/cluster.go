// Package cluster groups related news headlines by lexical similarity so the
// learner can spot stories that keep recurring without belonging to any
// known theme.
package cluster

import (
	"sort"

	"github.com/rs/zerolog"
)

const (
	logKeyGroups    = "groups"
	logKeyItems     = "items"
	logKeySeed      = "seed"
	logKeySize      = "size"
	logKeyCoherence = "coherence"
)

// Default knobs for the TF-IDF clusterer.
const (
	DefaultSimilarityThreshold = 0.3
	DefaultMinGroupSize        = 3
	DefaultTopKeywords         = 10
)

// Item is one headline to cluster together with its tagged tickers.
type Item struct {
	Title   string
	Tickers []string
}

// Group is a set of mutually similar items. Keywords are the group's
// heaviest TF-IDF terms, heaviest first; Tickers is the sorted union of
// member tickers; Coherence is the mean pairwise similarity.
type Group struct {
	Items     []Item
	Keywords  []string
	Tickers   []string
	Coherence float64
}

// Clusterer groups news items. Reduced implementations may return nothing,
// which switches news-based theme discovery off.
type Clusterer interface {
	// Name identifies the implementation in logs.
	Name() string

	// Cluster partitions items into groups of related headlines. Items that
	// end up in no sufficiently large group are noise and are dropped.
	Cluster(items []Item) []Group
}

// Config tunes the TF-IDF clusterer. Zero values select the defaults.
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity for an item to
	// join a group.
	SimilarityThreshold float64

	// MinGroupSize is the smallest group kept; smaller ones are noise.
	MinGroupSize int

	// TopKeywords caps the keyword list extracted per group.
	TopKeywords int
}

// TFIDF clusters headlines greedily: each unassigned item seeds a group and
// pulls in every later unassigned item whose TF-IDF cosine similarity clears
// the threshold. Input order determines seed order, so results are
// deterministic for a given item slice.
type TFIDF struct {
	cfg       Config
	stopWords map[string]bool
	logger    zerolog.Logger
}

var _ Clusterer = (*TFIDF)(nil)

// NewTFIDF returns a TF-IDF clusterer with the given knobs.
func NewTFIDF(cfg Config, logger zerolog.Logger) *TFIDF {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}

	if cfg.MinGroupSize <= 0 {
		cfg.MinGroupSize = DefaultMinGroupSize
	}

	if cfg.TopKeywords <= 0 {
		cfg.TopKeywords = DefaultTopKeywords
	}

	return &TFIDF{
		cfg:       cfg,
		stopWords: buildStopWords(),
		logger:    logger.With().Str("component", "cluster").Logger(),
	}
}

// Name implements Clusterer.
func (t *TFIDF) Name() string { return "tfidf" }

// Cluster implements Clusterer.
func (t *TFIDF) Cluster(items []Item) []Group {
	if len(items) < t.cfg.MinGroupSize {
		return nil
	}

	vectors := vectorize(items, t.stopWords)
	assigned := make([]bool, len(items))

	var groups []Group

	for i := range items {
		if assigned[i] {
			continue
		}

		members := []int{i}
		assigned[i] = true

		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}

			if cosineSimilarity(vectors[i], vectors[j]) > t.cfg.SimilarityThreshold {
				members = append(members, j)
				assigned[j] = true
			}
		}

		if len(members) < t.cfg.MinGroupSize {
			// Noise: release non-seed members so a later seed may claim them.
			for _, m := range members[1:] {
				assigned[m] = false
			}

			continue
		}

		group := t.buildGroup(items, vectors, members)

		t.logger.Debug().
			Str(logKeySeed, items[i].Title).
			Int(logKeySize, len(group.Items)).
			Float64(logKeyCoherence, group.Coherence).
			Msg("formed news cluster")

		groups = append(groups, group)
	}

	t.logger.Debug().
		Int(logKeyItems, len(items)).
		Int(logKeyGroups, len(groups)).
		Msg("clustering finished")

	return groups
}

func (t *TFIDF) buildGroup(items []Item, vectors []vector, members []int) Group {
	group := Group{
		Items: make([]Item, 0, len(members)),
	}

	memberVectors := make([]vector, 0, len(members))
	tickers := make(map[string]bool)

	for _, m := range members {
		group.Items = append(group.Items, items[m])
		memberVectors = append(memberVectors, vectors[m])

		for _, ticker := range items[m].Tickers {
			tickers[ticker] = true
		}
	}

	group.Keywords = topTerms(memberVectors, t.cfg.TopKeywords)
	group.Coherence = coherence(memberVectors)

	group.Tickers = make([]string, 0, len(tickers))
	for ticker := range tickers {
		group.Tickers = append(group.Tickers, ticker)
	}

	sort.Strings(group.Tickers)

	return group
}

// coherence is the mean pairwise similarity across group members.
func coherence(vectors []vector) float64 {
	if len(vectors) < 2 {
		return 1
	}

	var (
		sum   float64
		count int
	)

	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sum += cosineSimilarity(vectors[i], vectors[j])
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// Disabled switches news clustering off: every input is noise.
type Disabled struct{}

var _ Clusterer = Disabled{}

// Name implements Clusterer.
func (Disabled) Name() string { return "disabled" }

// Cluster implements Clusterer.
func (Disabled) Cluster([]Item) []Group { return nil }
