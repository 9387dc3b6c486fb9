package learner

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
	"github.com/quantfold/themegraph/internal/core/narrative"
	"github.com/quantfold/themegraph/internal/platform/observability"
)

// Stage-vote thresholds and weights. A transition is written back only when
// the winning score strictly exceeds stageWriteThreshold, which keeps a
// single signal from flapping the stage on its own.
const (
	stageWriteThreshold = 0.6
	narrativeStageVote  = 0.5

	emergingAgeDays = 30.0
	earlyAgeDays    = 90.0
	lateAgeDays     = 365.0

	voteAgeEmerging   = 0.3
	voteAgeYoungEarly = 0.2
	voteAgeEarly      = 0.3
	voteAgeLate       = 0.3

	recentWindowHours = 24.0
	priorWindowHours  = 72.0
	priorWindowDays   = 2.0

	accelRatioEarly = 1.5
	accelRatioLate  = 0.5
	voteAccelEarly  = 0.4
	voteAccelLate   = 0.3

	returnWindowDays = 20
	returnStrong     = 0.15
	returnMild       = 0.05

	voteReturnMiddle    = 0.4
	voteReturnEarly     = 0.3
	voteReturnLate      = 0.3
	voteReturnExhausted = 0.4

	heatNewsSaturation = 5.0
)

// detectStages runs the weighted stage vote for every active theme and
// writes back transitions that clear the threshold. Rolling heat, return,
// and news-velocity signals are refreshed on every theme regardless of
// whether the stage moved.
func (l *Learner) detectStages(ctx context.Context, snap *domain.Snapshot, summary *CycleSummary, logger *zerolog.Logger) {
	now := snap.AsOf
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for _, theme := range l.registry.ActiveThemes() {
		if ctx.Err() != nil {
			return
		}

		votes := make(map[domain.ThemeStage]float64)

		voteAge(votes, theme.AgeDays(now))

		velocity, accel, hasAccel := newsSignal(theme, snap.News, now)
		if hasAccel {
			voteAcceleration(votes, accel)
		}

		avgReturn, hasReturns := avgMemberReturn(theme, snap.Returns)
		if hasReturns {
			voteReturn(votes, avgReturn)
		}

		if l.narrative.IsAvailable() {
			if stage, ok := l.assessStage(ctx, theme, velocity, avgReturn, now, logger); ok {
				votes[stage] += narrativeStageVote
			}
		}

		stage, score := winningStage(votes)

		if err := l.registry.UpdateSignals(theme.Template.ID, themeHeat(velocity, avgReturn), avgReturn, velocity); err != nil {
			logger.Warn().
				Err(err).
				Str(logKeyThemeID, theme.Template.ID).
				Msg("failed to update theme signals")

			summary.Errors++
		}

		if score <= stageWriteThreshold || stage == theme.Stage {
			continue
		}

		from := theme.Stage

		if err := l.registry.SetStage(theme.Template.ID, stage, score); err != nil {
			logger.Warn().
				Err(err).
				Str(logKeyThemeID, theme.Template.ID).
				Str(logKeyStage, string(stage)).
				Msg("failed to set theme stage")

			summary.Errors++

			continue
		}

		summary.StageChanges++
		observability.StageTransitions.Inc()

		logger.Info().
			Str(logKeyThemeID, theme.Template.ID).
			Str("from", string(from)).
			Str("to", string(stage)).
			Float64(logKeyScore, score).
			Msg("theme stage transition")
	}
}

// voteAge adds the age-based votes: young themes lean emerging/early, themes
// past a year lean late.
func voteAge(votes map[domain.ThemeStage]float64, ageDays float64) {
	switch {
	case ageDays < emergingAgeDays:
		votes[domain.StageEmerging] += voteAgeEmerging
		votes[domain.StageEarly] += voteAgeYoungEarly
	case ageDays < earlyAgeDays:
		votes[domain.StageEarly] += voteAgeEarly
	case ageDays > lateAgeDays:
		votes[domain.StageLate] += voteAgeLate
	}
}

// voteAcceleration adds the news-volume vote: accelerating coverage leans
// early, cooling coverage leans late.
func voteAcceleration(votes map[domain.ThemeStage]float64, accel float64) {
	switch {
	case accel >= accelRatioEarly:
		votes[domain.StageEarly] += voteAccelEarly
	case accel <= accelRatioLate:
		votes[domain.StageLate] += voteAccelLate
	}
}

// voteReturn adds the 20-day return vote. The strong-positive band leans
// middle, mild-positive leans early, mild-negative leans late, and a drop
// past the strong band leans exhausted.
func voteReturn(votes map[domain.ThemeStage]float64, avgReturn float64) {
	switch {
	case avgReturn > returnStrong:
		votes[domain.StageMiddle] += voteReturnMiddle
	case avgReturn >= returnMild:
		votes[domain.StageEarly] += voteReturnEarly
	case avgReturn < -returnStrong:
		votes[domain.StageExhausted] += voteReturnExhausted
	case avgReturn <= -returnMild:
		votes[domain.StageLate] += voteReturnLate
	}
}

// newsSignal counts the theme's matching headlines in the last 24 hours
// (velocity) and compares that against the per-24h rate of the preceding
// 24-72h window (acceleration). With no prior coverage, fresh headlines
// count as accelerating; no coverage at all yields no acceleration signal.
func newsSignal(theme *domain.LearnedTheme, news []domain.NewsItem, now time.Time) (velocity, accel float64, hasAccel bool) {
	var recent, prior int

	for _, item := range news {
		if !matchesTheme(theme, item) {
			continue
		}

		age := item.AgeHours(now)

		switch {
		case age < 0:
			// future-dated, ignore
		case age <= recentWindowHours:
			recent++
		case age <= priorWindowHours:
			prior++
		}
	}

	velocity = float64(recent)
	priorRate := float64(prior) / priorWindowDays

	switch {
	case priorRate > 0:
		return velocity, velocity / priorRate, true
	case recent > 0:
		return velocity, accelRatioEarly, true
	default:
		return velocity, 0, false
	}
}

// matchesTheme reports whether a news item concerns the theme: any tagged
// ticker is a member, or any theme keyword appears in the title.
func matchesTheme(theme *domain.LearnedTheme, item domain.NewsItem) bool {
	for _, ticker := range item.Tickers {
		if _, ok := theme.Members[ticker]; ok {
			return true
		}
	}

	if len(theme.Template.Keywords) == 0 {
		return false
	}

	title := strings.ToLower(item.Title)

	for _, kw := range theme.Template.Keywords {
		if kw == "" {
			continue
		}

		if strings.Contains(title, strings.ToLower(kw)) {
			return true
		}
	}

	return false
}

// avgMemberReturn averages the members' summed returns over the trailing
// window. The second return is false when no member has return data.
func avgMemberReturn(theme *domain.LearnedTheme, returns map[string][]float64) (float64, bool) {
	var (
		sum     float64
		members int
	)

	for ticker := range theme.Members {
		series, ok := returns[ticker]
		if !ok || len(series) == 0 {
			continue
		}

		window := series
		if len(window) > returnWindowDays {
			window = window[len(window)-returnWindowDays:]
		}

		var total float64
		for _, r := range window {
			total += r
		}

		sum += total
		members++
	}

	if members == 0 {
		return 0, false
	}

	return sum / float64(members), true
}

// winningStage picks the highest-scoring stage, walking the detectable
// stages in their fixed order so ties resolve to the earlier lifecycle
// stage.
func winningStage(votes map[domain.ThemeStage]float64) (domain.ThemeStage, float64) {
	var (
		best      domain.ThemeStage
		bestScore float64
	)

	for _, stage := range domain.DetectableStages {
		if votes[stage] > bestScore {
			best = stage
			bestScore = votes[stage]
		}
	}

	return best, bestScore
}

// themeHeat blends news velocity and price momentum into a 0..1 heat score.
func themeHeat(velocity, avgReturn float64) float64 {
	newsPart := math.Min(1, velocity/heatNewsSaturation)
	returnPart := math.Min(1, math.Abs(avgReturn)/returnStrong)

	return (newsPart + returnPart) / 2
}

// assessStage asks the narrative service for a stage vote. The second
// return is false when the service is unavailable, errored, or answered
// with a label outside the detectable stages.
func (l *Learner) assessStage(ctx context.Context, theme *domain.LearnedTheme, velocity, avgReturn float64, now time.Time, logger *zerolog.Logger) (domain.ThemeStage, bool) {
	assessment, err := l.narrative.AssessStage(ctx, narrative.StageRequest{
		ThemeName:    theme.Template.Name,
		AgeDays:      theme.AgeDays(now),
		NewsVelocity: velocity,
		AvgReturn20D: avgReturn,
		MemberCount:  len(theme.Members),
	})
	if err != nil {
		logger.Debug().
			Err(err).
			Str(logKeyThemeID, theme.Template.ID).
			Msg("narrative stage assessment failed, voting without it")

		return "", false
	}

	label := strings.ToLower(strings.TrimSpace(assessment.Label))

	for _, stage := range domain.DetectableStages {
		if label == string(stage) {
			return stage, true
		}
	}

	logger.Debug().
		Str(logKeyThemeID, theme.Template.ID).
		Str(logKeyLabel, assessment.Label).
		Msg("narrative returned unusable stage")

	return "", false
}
