// Package learner implements the learning cycle that keeps the theme
// registry aligned with market data. One cycle consumes one immutable
// snapshot and runs four phases: member discovery by lagged correlation
// against each theme's reference series, emerging-theme discovery from
// recurring news clusters, re-validation of existing memberships, and a
// weighted vote on lifecycle stage transitions. Failures are isolated per
// theme and per candidate; a cycle never aborts because one of them did.
package learner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/cluster"
	"github.com/quantfold/themegraph/internal/core/domain"
	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/core/narrative"
	"github.com/quantfold/themegraph/internal/graph"
	"github.com/quantfold/themegraph/internal/platform/observability"
	"github.com/quantfold/themegraph/internal/registry"
	"github.com/quantfold/themegraph/internal/stats"
)

const (
	logKeyCycleID     = "cycle_id"
	logKeyThemeID     = "theme_id"
	logKeyTicker      = "ticker"
	logKeyRole        = "role"
	logKeyStage       = "stage"
	logKeyLag         = "lag"
	logKeyCorrelation = "correlation"
	logKeyScore       = "score"
	logKeyLabel       = "label"
	logKeyNews        = "news"
	logKeyTickers     = "tickers"
	logKeyThemes      = "themes"
)

// Default knobs for the learning cycle.
const (
	DefaultMaxLag              = 5
	DefaultMinCorrelation      = 0.5
	DefaultValidationThreshold = 0.3
	DefaultMinClusterSize      = 3
	DefaultMaxReferenceMembers = 3
)

// Config tunes the learning cycle. Zero values select the defaults.
type Config struct {
	// MaxLag bounds the lead/lag scan of the correlation engine, in days.
	MaxLag int

	// MinCorrelation is the smallest |lag-correlation| that admits a new
	// member during discovery.
	MinCorrelation float64

	// ValidationThreshold is the average |correlation| to drivers below
	// which an existing member is invalidated.
	ValidationThreshold float64

	// MinClusterSize is the smallest news cluster worth hypothesizing;
	// theme discovery needs at least twice this many news items to run.
	MinClusterSize int

	// MaxReferenceMembers caps the top-confidence members used as reference
	// series when a theme has no explicit drivers.
	MaxReferenceMembers int
}

func (c Config) withDefaults() Config {
	if c.MaxLag <= 0 {
		c.MaxLag = DefaultMaxLag
	}

	if c.MinCorrelation <= 0 {
		c.MinCorrelation = DefaultMinCorrelation
	}

	if c.ValidationThreshold <= 0 {
		c.ValidationThreshold = DefaultValidationThreshold
	}

	if c.MinClusterSize <= 0 {
		c.MinClusterSize = DefaultMinClusterSize
	}

	if c.MaxReferenceMembers <= 0 {
		c.MaxReferenceMembers = DefaultMaxReferenceMembers
	}

	return c
}

// CycleSummary is the per-cycle record appended to the learning log.
// Hypotheses carries the pending (unconfirmed) hypotheses of this cycle for
// separate persistence and is not part of the log document itself.
type CycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`

	ThemesProcessed    int `json:"themes_processed"`
	PairsComputed      int `json:"pairs_computed"`
	MembersDiscovered  int `json:"members_discovered"`
	HypothesesCreated  int `json:"hypotheses_created"`
	ThemesConfirmed    int `json:"themes_confirmed"`
	MembersValidated   int `json:"members_validated"`
	MembersInvalidated int `json:"members_invalidated"`
	MembersPruned      int `json:"members_pruned"`
	StageChanges       int `json:"stage_changes"`
	Errors             int `json:"errors"`

	Hypotheses []domain.ThemeHypothesis `json:"-"`
}

// Learner runs learning cycles against a registry and a relationship graph.
// It is not safe for concurrent use: the caller serializes cycles, one at a
// time, the same way graph and registry writes are serialized.
type Learner struct {
	cfg       Config
	registry  *registry.Registry
	graph     *graph.Graph
	sig       stats.Significance
	clusterer cluster.Clusterer
	narrative narrative.Service
	logger    zerolog.Logger
}

// New creates a learner. Registry and graph must be non-nil; the capability
// collaborators may be nil, which selects the reduced implementations
// (Fisher-z significance, no clustering, no narrative service).
func New(cfg Config, reg *registry.Registry, g *graph.Graph, sig stats.Significance, clusterer cluster.Clusterer, svc narrative.Service, logger *zerolog.Logger) *Learner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if sig == nil {
		sig = stats.FisherZ{}
	}

	if clusterer == nil {
		clusterer = cluster.Disabled{}
	}

	if svc == nil {
		svc = narrative.Disabled{}
	}

	return &Learner{
		cfg:       cfg.withDefaults(),
		registry:  reg,
		graph:     g,
		sig:       sig,
		clusterer: clusterer,
		narrative: svc,
		logger:    logger.With().Str("component", "learner").Logger(),
	}
}

// RunCycle executes the four learning phases against one snapshot. Phase
// ordering matters only in that a theme confirmed from news this cycle is
// immediately visible to validation and stage detection. The returned
// summary is always non-nil when the snapshot is valid, even if the context
// was canceled mid-cycle.
func (l *Learner) RunCycle(ctx context.Context, snap *domain.Snapshot) (*CycleSummary, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", errs.ErrInvalidInput)
	}

	summary := &CycleSummary{
		CycleID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}

	logger := l.logger.With().Str(logKeyCycleID, summary.CycleID).Logger()

	logger.Info().
		Int(logKeyTickers, len(snap.Returns)).
		Int(logKeyNews, len(snap.News)).
		Int(logKeyThemes, l.registry.ThemeCount()).
		Msg("starting learning cycle")

	// The memo cache is cycle-local: the engine dies with the snapshot it
	// scored, so stale pair results can never leak into the next cycle.
	engine := stats.NewEngine(l.cfg.MaxLag, l.sig)

	l.discoverMembers(ctx, engine, snap, summary, &logger)

	if err := ctx.Err(); err != nil {
		return l.finish(&logger, engine, summary, err)
	}

	l.discoverThemes(ctx, snap, summary, &logger)

	if err := ctx.Err(); err != nil {
		return l.finish(&logger, engine, summary, err)
	}

	l.validateMembers(ctx, engine, snap, summary, &logger)

	if err := ctx.Err(); err != nil {
		return l.finish(&logger, engine, summary, err)
	}

	l.detectStages(ctx, snap, summary, &logger)

	return l.finish(&logger, engine, summary, nil)
}

func (l *Learner) finish(logger *zerolog.Logger, engine *stats.Engine, summary *CycleSummary, err error) (*CycleSummary, error) {
	summary.PairsComputed = engine.Size()
	summary.DurationMS = time.Since(summary.StartedAt).Milliseconds()

	outcome := "ok"
	if err != nil {
		outcome = "canceled"
	}

	observability.LearningCycles.WithLabelValues(outcome).Inc()
	observability.LearningCycleDuration.Observe(float64(summary.DurationMS) / 1000)

	logger.Info().
		Str("outcome", outcome).
		Int64("duration_ms", summary.DurationMS).
		Int("members_discovered", summary.MembersDiscovered).
		Int("hypotheses_created", summary.HypothesesCreated).
		Int("themes_confirmed", summary.ThemesConfirmed).
		Int("members_validated", summary.MembersValidated).
		Int("members_invalidated", summary.MembersInvalidated).
		Int("members_pruned", summary.MembersPruned).
		Int("stage_changes", summary.StageChanges).
		Int("pairs_computed", summary.PairsComputed).
		Int("errors", summary.Errors).
		Msg("learning cycle finished")

	return summary, err
}

// reference is one driver (or top-confidence stand-in) with its snapshot
// return series materialized.
type reference struct {
	ticker string
	series []float64
}

// referenceSeries resolves a theme's reference members against the snapshot,
// dropping any without return data.
func (l *Learner) referenceSeries(theme *domain.LearnedTheme, snap *domain.Snapshot) []reference {
	members := theme.ReferenceMembers(l.cfg.MaxReferenceMembers)

	refs := make([]reference, 0, len(members))

	for _, m := range members {
		series, ok := snap.Returns[m.Ticker]
		if !ok || len(series) == 0 {
			continue
		}

		refs = append(refs, reference{ticker: m.Ticker, series: series})
	}

	return refs
}

func refTickers(refs []reference) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.ticker)
	}

	return out
}
