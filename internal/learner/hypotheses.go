package learner

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quantfold/themegraph/internal/cluster"
	"github.com/quantfold/themegraph/internal/core/domain"
	"github.com/quantfold/themegraph/internal/core/narrative"
	"github.com/quantfold/themegraph/internal/platform/observability"
)

// Hypothesis policy knobs. A cluster only becomes a hypothesis when its
// keywords do not already belong to a known theme; a hypothesis only becomes
// a theme when its size-derived confidence clears the auto-confirm bar.
const (
	hypothesisNewsMultiplier  = 2
	hypothesisEvidenceCap     = 5
	hypothesisConfidenceCap   = 0.9
	hypothesisFullSize        = 20.0
	autoConfirmThreshold      = 0.7
	confirmedMemberConfidence = 0.6
	confirmedThemeCategory    = "discovered"

	keywordOverlapCount = 2
	keywordOverlapShare = 0.5

	themeNameKeywords = 3
)

// discoverThemes clusters the snapshot's news and turns clusters that do not
// match any known theme into hypotheses. Hypotheses confident enough are
// promoted into the registry immediately and take part in the rest of this
// cycle; the others ride the summary out for separate persistence.
func (l *Learner) discoverThemes(ctx context.Context, snap *domain.Snapshot, summary *CycleSummary, logger *zerolog.Logger) {
	minItems := hypothesisNewsMultiplier * l.cfg.MinClusterSize
	if len(snap.News) < minItems {
		logger.Debug().
			Int(logKeyNews, len(snap.News)).
			Int("required", minItems).
			Msg("not enough news for theme discovery")

		return
	}

	items := make([]cluster.Item, len(snap.News))
	for i, n := range snap.News {
		items[i] = cluster.Item{Title: n.Title, Tickers: n.Tickers}
	}

	for _, group := range l.clusterer.Cluster(items) {
		if ctx.Err() != nil {
			return
		}

		if themeID, shared := l.matchingTheme(group.Keywords); themeID != "" {
			logger.Debug().
				Str(logKeyThemeID, themeID).
				Int("shared_keywords", shared).
				Strs("keywords", group.Keywords).
				Msg("news cluster belongs to an existing theme")

			continue
		}

		hypothesis := l.buildHypothesis(ctx, group, snap.AsOf, logger)

		summary.HypothesesCreated++
		observability.HypothesesGenerated.Inc()

		logger.Info().
			Str("hypothesis_id", hypothesis.ID).
			Str("name", hypothesis.Name).
			Int("items", len(group.Items)).
			Float64("confidence", hypothesis.Confidence).
			Msg("hypothesized new theme")

		if hypothesis.Confidence <= autoConfirmThreshold {
			summary.Hypotheses = append(summary.Hypotheses, hypothesis)

			continue
		}

		if err := l.confirmHypothesis(hypothesis, snap.AsOf); err != nil {
			logger.Warn().
				Err(err).
				Str("hypothesis_id", hypothesis.ID).
				Msg("failed to confirm hypothesis")

			summary.Errors++
			summary.Hypotheses = append(summary.Hypotheses, hypothesis)

			continue
		}

		summary.ThemesConfirmed++
		observability.ThemesConfirmed.Inc()

		logger.Info().
			Str(logKeyThemeID, hypothesis.ID).
			Str("name", hypothesis.Name).
			Msg("hypothesis auto-confirmed into registry")
	}
}

// matchingTheme checks the cluster keywords against every theme in the
// registry, retired ones included so a dead theme cannot be rediscovered as
// new. A cluster matches when it shares at least keywordOverlapCount terms
// or more than keywordOverlapShare of its keywords with a theme.
func (l *Learner) matchingTheme(keywords []string) (string, int) {
	if len(keywords) == 0 {
		return "", 0
	}

	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = true
	}

	for _, theme := range l.registry.Themes() {
		shared := 0

		for _, kw := range theme.Template.Keywords {
			if set[strings.ToLower(kw)] {
				shared++
			}
		}

		if shared >= keywordOverlapCount || float64(shared) > keywordOverlapShare*float64(len(keywords)) {
			return theme.Template.ID, shared
		}
	}

	return "", 0
}

// buildHypothesis assembles the hypothesis record for a surviving cluster.
// Confidence grows with cluster size and saturates below certainty; evidence
// keeps the first few headlines for the learning log.
func (l *Learner) buildHypothesis(ctx context.Context, group cluster.Group, asOf time.Time, logger *zerolog.Logger) domain.ThemeHypothesis {
	now := asOf
	if now.IsZero() {
		now = time.Now().UTC()
	}

	evidence := make([]string, 0, hypothesisEvidenceCap)

	for _, item := range group.Items {
		if len(evidence) == hypothesisEvidenceCap {
			break
		}

		evidence = append(evidence, item.Title)
	}

	return domain.ThemeHypothesis{
		ID:         uuid.New().String(),
		Name:       l.themeName(ctx, group, evidence, logger),
		Keywords:   group.Keywords,
		Tickers:    group.Tickers,
		Confidence: math.Min(hypothesisConfidenceCap, float64(len(group.Items))/hypothesisFullSize),
		Evidence:   evidence,
		CreatedAt:  now,
	}
}

// themeName names a cluster: the narrative service proposes a name when it
// can, otherwise the top keywords are title-cased into a provisional one.
func (l *Learner) themeName(ctx context.Context, group cluster.Group, headlines []string, logger *zerolog.Logger) string {
	fallback := titleFromKeywords(group.Keywords)

	if !l.narrative.IsAvailable() {
		return fallback
	}

	assessment, err := l.narrative.SuggestName(ctx, narrative.NameRequest{
		Keywords:  group.Keywords,
		Tickers:   group.Tickers,
		Headlines: headlines,
	})
	if err != nil {
		logger.Debug().Err(err).Msg("narrative naming failed, using keyword name")

		return fallback
	}

	name := strings.TrimSpace(assessment.Label)
	if name == "" {
		return fallback
	}

	return name
}

// titleFromKeywords title-cases the heaviest keywords into a readable name.
func titleFromKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "Unnamed Theme"
	}

	n := len(keywords)
	if n > themeNameKeywords {
		n = themeNameKeywords
	}

	return cases.Title(language.English).String(strings.Join(keywords[:n], " "))
}

// confirmHypothesis promotes a hypothesis into the registry as a learned
// theme. Every mentioned ticker joins as a beneficiary at the fixed starter
// confidence, pending correlation-based upgrade in later cycles.
func (l *Learner) confirmHypothesis(h domain.ThemeHypothesis, asOf time.Time) error {
	now := asOf
	if now.IsZero() {
		now = time.Now().UTC()
	}

	members := make(map[string]*domain.ThemeMember, len(h.Tickers))

	for _, ticker := range h.Tickers {
		members[ticker] = &domain.ThemeMember{
			Ticker:     ticker,
			Role:       domain.RoleBeneficiary,
			Confidence: confirmedMemberConfidence,
			Source:     domain.SourceClustering,
			CreatedAt:  now,
		}
	}

	theme := &domain.LearnedTheme{
		Template: domain.ThemeTemplate{
			ID:       h.ID,
			Name:     h.Name,
			Category: confirmedThemeCategory,
			Keywords: h.Keywords,
		},
		Stage:        domain.StageEmerging,
		Members:      members,
		DiscoveredAt: now,
		DiscoveredBy: domain.SourceClustering,
	}

	if err := l.registry.Add(theme); err != nil {
		return err
	}

	for _, ticker := range h.Tickers {
		l.graph.TagTheme(ticker, theme.Template.ID)
	}

	return nil
}
