package learner

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
	"github.com/quantfold/themegraph/internal/graph"
	"github.com/quantfold/themegraph/internal/platform/observability"
	"github.com/quantfold/themegraph/internal/stats"
)

// discoverMembers scores every non-member ticker against each active theme's
// reference series and admits the ones whose strongest significant
// lag-correlation clears the acceptance threshold. Accepted members are also
// written to the relationship graph as adjacent edges from the reference
// that recruited them.
func (l *Learner) discoverMembers(ctx context.Context, engine *stats.Engine, snap *domain.Snapshot, summary *CycleSummary, logger *zerolog.Logger) {
	candidates := snap.Tickers()

	for _, theme := range l.registry.ActiveThemes() {
		summary.ThemesProcessed++

		refs := l.referenceSeries(theme, snap)
		if len(refs) == 0 {
			logger.Debug().
				Str(logKeyThemeID, theme.Template.ID).
				Msg("no reference series with return data, skipping discovery")

			continue
		}

		references := refTickers(refs)

		for _, ticker := range candidates {
			if ctx.Err() != nil {
				return
			}

			if _, ok := theme.Members[ticker]; ok {
				continue
			}

			best, recruiter := strongestReference(engine, refs, ticker, snap.Returns[ticker])
			if best == nil || math.Abs(best.LagCorrelation) < l.cfg.MinCorrelation {
				continue
			}

			member := l.buildMember(ctx, theme, ticker, references, best, logger)

			if err := l.registry.UpsertMember(theme.Template.ID, member); err != nil {
				logger.Warn().
					Err(err).
					Str(logKeyThemeID, theme.Template.ID).
					Str(logKeyTicker, ticker).
					Msg("failed to record discovered member")

				summary.Errors++

				continue
			}

			l.graph.TagTheme(ticker, theme.Template.ID)
			l.graph.AddEdge(recruiter, ticker, graph.RelAdjacent, math.Abs(best.LagCorrelation), &graph.EdgeAttrs{
				SubTheme: theme.Template.ID,
				Sources:  []string{string(domain.SourceCorrelation)},
			})

			summary.MembersDiscovered++
			observability.MembersDiscovered.Inc()

			logger.Info().
				Str(logKeyThemeID, theme.Template.ID).
				Str(logKeyTicker, ticker).
				Str(logKeyRole, string(member.Role)).
				Float64(logKeyCorrelation, best.LagCorrelation).
				Int(logKeyLag, best.OptimalLag).
				Msg("discovered theme member")
		}
	}
}

// strongestReference returns the strongest significant result of the
// candidate against any reference, with the reference ticker that produced
// it. Insufficient data for a single pair skips that pair only. References
// are scanned strongest-first, so equal magnitudes keep the earlier one.
func strongestReference(engine *stats.Engine, refs []reference, ticker string, series []float64) (*stats.Result, string) {
	var (
		best      *stats.Result
		recruiter string
	)

	for _, ref := range refs {
		res, err := engine.Pair(ref.ticker, ref.series, ticker, series)
		if err != nil {
			continue
		}

		if !res.Significant {
			continue
		}

		if best == nil || math.Abs(res.LagCorrelation) > math.Abs(best.LagCorrelation) {
			best = res
			recruiter = ref.ticker
		}
	}

	return best, recruiter
}

// buildMember assembles the membership record for an accepted candidate. The
// rule-based role is computed before any narrative call; the narrative
// service, when it answers with a usable label, overrides role and
// confidence but never the acceptance itself.
func (l *Learner) buildMember(ctx context.Context, theme *domain.LearnedTheme, ticker string, references []string, res *stats.Result, logger *zerolog.Logger) domain.ThemeMember {
	role := ClassifyRole(l.graph, ticker, references, res.OptimalLag)
	confidence := math.Min(maxDiscoveryConfidence, math.Abs(res.LagCorrelation))

	if assessment := l.assessRole(ctx, theme, ticker, res, logger); assessment != nil {
		role = domain.MemberRole(assessment.Label)
		confidence = assessment.Confidence
	}

	return domain.ThemeMember{
		Ticker:               ticker,
		Role:                 role,
		Confidence:           confidence,
		Source:               domain.SourceCorrelation,
		CorrelationToDrivers: res.LagCorrelation,
		LeadLagDays:          res.OptimalLag,
	}
}
