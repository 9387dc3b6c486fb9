package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LearningCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "themegraph_learning_cycles_total",
		Help: "The total number of learning cycles by outcome",
	}, []string{"outcome"})

	LearningCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "themegraph_learning_cycle_duration_seconds",
		Help:    "Duration of learning cycles",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	MembersDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_members_discovered_total",
		Help: "Total number of theme members admitted by correlation",
	})

	MembersValidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_members_validated_total",
		Help: "Total number of member validations that passed",
	})

	MembersInvalidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_members_invalidated_total",
		Help: "Total number of member validations that failed",
	})

	MembersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_members_pruned_total",
		Help: "Total number of members removed after repeated invalidation",
	})

	StageTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_stage_transitions_total",
		Help: "Total number of theme stage changes",
	})

	HypothesesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_hypotheses_generated_total",
		Help: "Total number of theme hypotheses generated from news clusters",
	})

	ThemesConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_themes_confirmed_total",
		Help: "Total number of hypotheses promoted to learned themes",
	})

	// Correlation engine metrics
	CorrelationsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "themegraph_correlations_computed_total",
		Help: "Total number of pairwise correlation computations by outcome",
	}, []string{"outcome"})

	CorrelationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_correlation_cache_hits_total",
		Help: "Total number of pair results served from the cycle memo",
	})

	CorrelationCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_correlation_cache_misses_total",
		Help: "Total number of pair results computed fresh",
	})

	// Narrative service metrics
	NarrativeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "themegraph_narrative_requests_total",
		Help: "Total number of narrative service requests by task and outcome",
	}, []string{"task", "outcome"})

	NarrativeBreakerOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "themegraph_narrative_breaker_opens_total",
		Help: "Total number of times the narrative circuit breaker opened",
	})

	// Graph state gauges, refreshed after load, cycle, and decay passes
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "themegraph_graph_nodes",
		Help: "Current number of graph nodes",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "themegraph_graph_edges",
		Help: "Current number of graph edges",
	})

	GraphStaleEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "themegraph_graph_stale_edges",
		Help: "Current number of edges at or below the stale freshness threshold",
	})

	ThemesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "themegraph_themes_active",
		Help: "Current number of non-retired themes",
	})
)
