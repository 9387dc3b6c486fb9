package learner

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
	"github.com/quantfold/themegraph/internal/platform/observability"
	"github.com/quantfold/themegraph/internal/stats"
)

// validateMembers re-scores every non-driver member of every active theme
// against the theme's current drivers. Members at or above the threshold get
// a validation tick and an updated stored correlation; members below it get
// an invalidation tick, and the registry decides when repeated invalidation
// removes them. Members without fresh return data are skipped: absence of
// evidence is not contradiction.
func (l *Learner) validateMembers(ctx context.Context, engine *stats.Engine, snap *domain.Snapshot, summary *CycleSummary, logger *zerolog.Logger) {
	for _, theme := range l.registry.ActiveThemes() {
		drivers := theme.Drivers()
		if len(drivers) == 0 {
			continue
		}

		refs := make([]reference, 0, len(drivers))

		for _, d := range drivers {
			series, ok := snap.Returns[d.Ticker]
			if !ok || len(series) == 0 {
				continue
			}

			refs = append(refs, reference{ticker: d.Ticker, series: series})
		}

		if len(refs) == 0 {
			continue
		}

		for _, ticker := range memberTickers(theme) {
			if ctx.Err() != nil {
				return
			}

			member, ok := theme.Members[ticker]
			if !ok || member.Role == domain.RoleDriver {
				continue
			}

			series, ok := snap.Returns[ticker]
			if !ok || len(series) == 0 {
				continue
			}

			avg, pairs := avgAbsCorrelation(engine, refs, ticker, series)
			if pairs == 0 {
				continue
			}

			if avg >= l.cfg.ValidationThreshold {
				if err := l.registry.RecordValidation(theme.Template.ID, ticker, avg); err != nil {
					logger.Warn().
						Err(err).
						Str(logKeyThemeID, theme.Template.ID).
						Str(logKeyTicker, ticker).
						Msg("failed to record validation")

					summary.Errors++

					continue
				}

				summary.MembersValidated++
				observability.MembersValidated.Inc()

				continue
			}

			removed, err := l.registry.RecordInvalidation(theme.Template.ID, ticker)
			if err != nil {
				logger.Warn().
					Err(err).
					Str(logKeyThemeID, theme.Template.ID).
					Str(logKeyTicker, ticker).
					Msg("failed to record invalidation")

				summary.Errors++

				continue
			}

			summary.MembersInvalidated++
			observability.MembersInvalidated.Inc()

			logger.Info().
				Str(logKeyThemeID, theme.Template.ID).
				Str(logKeyTicker, ticker).
				Float64(logKeyCorrelation, avg).
				Bool("removed", removed).
				Msg("member failed validation")

			if removed {
				summary.MembersPruned++
				observability.MembersPruned.Inc()
			}
		}
	}
}

// avgAbsCorrelation averages the |lag-correlation| of the member against
// every driver with data, ignoring significance: validation asks whether the
// relationship still holds, not whether it would be admitted today. The
// second return is the number of driver pairs that produced a result.
func avgAbsCorrelation(engine *stats.Engine, refs []reference, ticker string, series []float64) (float64, int) {
	var (
		sum   float64
		pairs int
	)

	for _, ref := range refs {
		res, err := engine.Pair(ref.ticker, ref.series, ticker, series)
		if err != nil {
			continue
		}

		sum += math.Abs(res.LagCorrelation)
		pairs++
	}

	if pairs == 0 {
		return 0, 0
	}

	return sum / float64(pairs), pairs
}

// memberTickers returns the theme's member tickers in lexical order so
// validation walks the map-backed membership reproducibly.
func memberTickers(theme *domain.LearnedTheme) []string {
	out := make([]string, 0, len(theme.Members))
	for ticker := range theme.Members {
		out = append(out, ticker)
	}

	sort.Strings(out)

	return out
}
