package learner

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
	"github.com/quantfold/themegraph/internal/core/narrative"
	"github.com/quantfold/themegraph/internal/graph"
	"github.com/quantfold/themegraph/internal/stats"
)

// maxDiscoveryConfidence caps correlation-derived membership confidence.
// Only accumulated validation history should push a member toward 1.0.
const maxDiscoveryConfidence = 0.95

// Lag boundaries of the rule-based classifier. Negative lag means the
// candidate moves ahead of the theme's reference series.
const (
	driverLagBelow    = -1
	beneficiaryMaxLag = 3
)

// ClassifyRole is the deterministic rule-based role classifier. A known
// supplier edge from the candidate to any reference ticker wins outright;
// otherwise the role follows the lag alone. Call sites that consult the
// narrative service compute this first and fall back to it on any failure,
// so identical inputs always yield identical roles.
func ClassifyRole(g *graph.Graph, ticker string, references []string, lag int) domain.MemberRole {
	if suppliesAny(g, ticker, references) {
		return domain.RolePicksAndShovels
	}

	switch {
	case lag < driverLagBelow:
		return domain.RoleDriver
	case lag <= beneficiaryMaxLag:
		return domain.RoleBeneficiary
	default:
		return domain.RolePeripheral
	}
}

// suppliesAny reports whether ticker has a supplier edge into any of the
// reference tickers.
func suppliesAny(g *graph.Graph, ticker string, references []string) bool {
	if g == nil {
		return false
	}

	for _, ref := range references {
		for _, n := range g.Suppliers(ref) {
			if n.Ticker == ticker {
				return true
			}
		}
	}

	return false
}

// assessRole asks the narrative service for a role override. A nil return
// means the rule-based role stands: the service is unavailable, errored, or
// produced a label outside the closed role set.
func (l *Learner) assessRole(ctx context.Context, theme *domain.LearnedTheme, ticker string, res *stats.Result, logger *zerolog.Logger) *narrative.Assessment {
	if !l.narrative.IsAvailable() {
		return nil
	}

	assessment, err := l.narrative.AssessRole(ctx, narrative.RoleRequest{
		Ticker:      ticker,
		ThemeName:   theme.Template.Name,
		Keywords:    theme.Template.Keywords,
		Correlation: res.LagCorrelation,
		LeadLagDays: res.OptimalLag,
	})
	if err != nil {
		logger.Debug().
			Err(err).
			Str(logKeyTicker, ticker).
			Msg("narrative role assessment failed, keeping rule-based role")

		return nil
	}

	label := strings.ToLower(strings.TrimSpace(assessment.Label))
	if !domain.ValidRole(label) || assessment.Confidence <= 0 {
		logger.Debug().
			Str(logKeyTicker, ticker).
			Str(logKeyLabel, assessment.Label).
			Msg("narrative returned unusable role, keeping rule-based role")

		return nil
	}

	assessment.Label = label

	return assessment
}
