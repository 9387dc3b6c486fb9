// Package app wires the service together and runs its operational modes:
//
//   - Daemon mode: worker loop that runs a learning cycle each interval and
//     a daily graph decay pass, with the health server alongside
//   - Cycle mode: one learning cycle against the current snapshot, then save
//   - Decay mode: a given number of days of freshness decay, then save
//   - Subgraph mode: the neighborhood around one ticker printed as JSON
//
// The app owns component lifecycle: construct, load persisted state, mutate
// through the learner, save, discard. Nothing else touches the store.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/cluster"
	"github.com/quantfold/themegraph/internal/core/domain"
	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/core/narrative"
	"github.com/quantfold/themegraph/internal/graph"
	"github.com/quantfold/themegraph/internal/ingest"
	"github.com/quantfold/themegraph/internal/learner"
	"github.com/quantfold/themegraph/internal/platform/config"
	"github.com/quantfold/themegraph/internal/platform/observability"
	"github.com/quantfold/themegraph/internal/platform/worker"
	"github.com/quantfold/themegraph/internal/registry"
	"github.com/quantfold/themegraph/internal/stats"
	"github.com/quantfold/themegraph/internal/store"
)

const (
	learningWorkerName = "learning"
	decayTaskName      = "decay"

	defaultSubgraphDepth = 2

	hoursPerDay = 24

	logKeyDays  = "days"
	logKeyStale = "stale_edges"
)

// App holds the wired components and provides methods to run each mode.
type App struct {
	cfg      *config.Config
	store    *store.Store
	loader   *ingest.Loader
	graph    *graph.Graph
	registry *registry.Registry
	learner  *learner.Learner
	logger   *zerolog.Logger
}

// New constructs the dependency graph and loads persisted state. Missing or
// unreadable documents start the graph and registry empty; only a store that
// cannot be created at all is fatal.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	st, err := store.New(cfg.DataDir, store.Config{
		MaxHypotheses: cfg.MaxHypotheses,
		MaxLogEntries: cfg.MaxLogEntries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("store init: %w", err)
	}

	g := st.LoadGraph(logger)
	reg := st.LoadThemes(registry.Config{InvalidationThreshold: cfg.InvalidationThreshold}, logger)

	learnerCfg := learner.Config{
		MaxLag:              cfg.MaxLagDays,
		MinCorrelation:      cfg.MinCorrelation,
		ValidationThreshold: cfg.ValidationThreshold,
		MinClusterSize:      cfg.MinClusterSize,
		MaxReferenceMembers: cfg.MaxReferenceMembers,
	}

	a := &App{
		cfg:      cfg,
		store:    st,
		loader:   ingest.New(cfg.DataDir, logger),
		graph:    g,
		registry: reg,
		learner:  learner.New(learnerCfg, reg, g, newSignificance(cfg), newClusterer(cfg, logger), newNarrativeService(cfg, logger), logger),
		logger:   logger,
	}

	a.refreshGauges()

	return a, nil
}

// StartHealthServer starts the health check and metrics server. It blocks
// until ctx is canceled.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.store, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunDaemon runs the daemon mode: a learning cycle every LearnInterval, a
// decay pass every DecayInterval, and the health server alongside. Cycle
// failures are logged and the loop continues; only cancellation stops it.
func (a *App) RunDaemon(ctx context.Context) error {
	a.logger.Info().Msg("Starting daemon mode")

	go func() {
		if err := a.StartHealthServer(ctx); err != nil {
			a.logger.Error().Err(err).Msg("health check server error")
		}
	}()

	err := worker.Loop(ctx, worker.Config{
		Name:         learningWorkerName,
		PollInterval: a.cfg.LearnInterval,
		Process:      a.processCycle,
		PeriodicTasks: []worker.PeriodicTask{
			{
				Name:     decayTaskName,
				Interval: a.cfg.DecayInterval,
				Run:      a.runDecayTask,
			},
		},
		OnError: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return false
			}

			a.logger.Warn().Err(err).Msg("learning cycle failed")

			return true
		},
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("daemon loop: %w", err)
	}

	return nil
}

// RunCycle runs a single learning cycle against the snapshot files and saves
// the outcome. Unlike the daemon, a missing snapshot is an error here: the
// operator asked for a cycle explicitly.
func (a *App) RunCycle(ctx context.Context) error {
	a.logger.Info().Msg("Starting one-shot learning cycle")

	snap, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	return a.runCycle(ctx, snap)
}

// RunDecay applies the given number of days of freshness decay and saves the
// graph.
func (a *App) RunDecay(_ context.Context, days float64) error {
	a.logger.Info().Float64(logKeyDays, days).Msg("Starting decay pass")

	if days <= 0 {
		return fmt.Errorf("%w: decay days must be positive", errs.ErrInvalidInput)
	}

	a.graph.DecayFreshness(0, days)

	if err := a.store.SaveGraph(a.graph); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	a.refreshGauges()

	a.logger.Info().
		Int("edges", a.graph.EdgeCount()).
		Int(logKeyStale, len(a.graph.StaleEdges(a.cfg.StaleEdgeThreshold))).
		Msg("decay pass complete")

	return nil
}

// RunSubgraph prints the neighborhood around ticker as indented JSON. Depth
// values below one select the default of two hops. An unknown ticker prints
// an empty result.
func (a *App) RunSubgraph(_ context.Context, ticker string, depth int, out io.Writer) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("%w: ticker is required", errs.ErrInvalidInput)
	}

	if depth < 1 {
		depth = defaultSubgraphDepth
	}

	res := a.graph.Subgraph(ticker, depth, nil, graph.DefaultSubgraphMinStrength)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subgraph: %w", err)
	}

	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("write subgraph: %w", err)
	}

	return nil
}

// processCycle is the daemon's poll step: load the snapshot, run one cycle,
// persist the outcome. No snapshot means nothing to do, not a failure.
func (a *App) processCycle(ctx context.Context) error {
	snap, err := a.loader.Load()
	if err != nil {
		if errors.Is(err, errs.ErrSnapshotMissing) {
			a.logger.Debug().Msg("no snapshot available, skipping cycle")

			return nil
		}

		return fmt.Errorf("load snapshot: %w", err)
	}

	return a.runCycle(ctx, snap)
}

// runCycle runs the learner against one snapshot and persists whatever the
// cycle produced. A cycle interrupted by shutdown still saves: the completed
// phases already mutated the graph and registry.
func (a *App) runCycle(ctx context.Context, snap *domain.Snapshot) error {
	summary, runErr := a.learner.RunCycle(ctx, snap)

	if summary != nil {
		if err := a.saveCycleOutcome(summary); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("learning cycle: %w", runErr)
	}

	return nil
}

// saveCycleOutcome persists the mutated graph and registry and appends the
// cycle's journals.
func (a *App) saveCycleOutcome(summary *learner.CycleSummary) error {
	if err := a.store.SaveGraph(a.graph); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	if err := a.store.SaveThemes(a.registry); err != nil {
		return fmt.Errorf("save themes: %w", err)
	}

	if err := a.store.AppendHypotheses(summary.Hypotheses); err != nil {
		return fmt.Errorf("append hypotheses: %w", err)
	}

	if err := a.store.AppendCycleSummary(summary); err != nil {
		return fmt.Errorf("append learning log: %w", err)
	}

	a.refreshGauges()

	return nil
}

// runDecayTask is the daemon's maintenance pass: decay by exactly one
// interval's worth of days, then persist. Save failures are logged, not
// fatal; the next pass retries and /readyz exposes a broken data directory.
func (a *App) runDecayTask(_ context.Context) {
	days := a.cfg.DecayInterval.Hours() / hoursPerDay

	a.graph.DecayFreshness(0, days)

	if err := a.store.SaveGraph(a.graph); err != nil {
		a.logger.Warn().Err(err).Msg("save graph after decay failed")

		return
	}

	a.refreshGauges()

	a.logger.Info().
		Float64(logKeyDays, days).
		Int(logKeyStale, len(a.graph.StaleEdges(a.cfg.StaleEdgeThreshold))).
		Msg("decay pass applied")
}

// refreshGauges aligns the graph and theme gauges with in-memory state.
func (a *App) refreshGauges() {
	observability.GraphNodes.Set(float64(a.graph.NodeCount()))
	observability.GraphEdges.Set(float64(a.graph.EdgeCount()))
	observability.GraphStaleEdges.Set(float64(len(a.graph.StaleEdges(a.cfg.StaleEdgeThreshold))))
	observability.ThemesActive.Set(float64(len(a.registry.ActiveThemes())))
}

// newSignificance selects the significance test. The reduced implementation
// reports everything non-significant, which routes discovery through the
// fallback role classifier.
func newSignificance(cfg *config.Config) stats.Significance {
	if !cfg.SignificanceEnabled {
		return stats.NoSignificance{}
	}

	return stats.FisherZ{}
}

// newClusterer selects the news clusterer. Disabled means no news-based
// theme discovery; correlation discovery is unaffected.
func newClusterer(cfg *config.Config, logger *zerolog.Logger) cluster.Clusterer {
	if !cfg.ClusteringEnabled {
		return cluster.Disabled{}
	}

	return cluster.NewTFIDF(cluster.Config{
		SimilarityThreshold: cfg.ClusterSimilarity,
		MinGroupSize:        cfg.MinClusterSize,
		TopKeywords:         cfg.ClusterTopKeywords,
	}, *logger)
}

// newNarrativeService returns the OpenAI-backed service when an API key is
// configured and the no-op fallback otherwise.
func newNarrativeService(cfg *config.Config, logger *zerolog.Logger) narrative.Service {
	if !cfg.NarrativeEnabled() {
		logger.Info().Msg("Narrative service disabled, using rule-based fallbacks")

		return narrative.Disabled{}
	}

	return narrative.NewOpenAI(narrative.OpenAIConfig{
		APIKey:       cfg.NarrativeAPIKey,
		Model:        cfg.NarrativeModel,
		Timeout:      cfg.NarrativeTimeout,
		RateLimitRPS: cfg.NarrativeRPS,
	}, logger)
}
