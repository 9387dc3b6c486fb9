// Package registry is the canonical store of theme definitions and what has
// been learned about them: membership, lifecycle stage, and rolling signals.
// It owns the removal policy for repeatedly invalidated members; the learner
// only reports validation outcomes.
package registry

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
	errs "github.com/quantfold/themegraph/internal/core/errors"
)

// DefaultInvalidationThreshold is the number of consecutive failed
// validations after which a member is dropped from its theme.
const DefaultInvalidationThreshold = 3

const (
	logKeyTheme  = "theme_id"
	logKeyTicker = "ticker"
	logKeyStage  = "stage"
)

// Config tunes registry-owned accounting.
type Config struct {
	// InvalidationThreshold drops a member once its invalidation counter
	// reaches this value. Zero selects the default.
	InvalidationThreshold int
}

// Registry holds learned themes keyed by template id. It performs no
// internal locking: callers serialize mutation, one learning cycle at a time.
type Registry struct {
	themes    map[string]*domain.LearnedTheme
	threshold int

	createdAt time.Time
	updatedAt time.Time

	logger zerolog.Logger
}

// New returns an empty registry.
func New(cfg Config, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if cfg.InvalidationThreshold <= 0 {
		cfg.InvalidationThreshold = DefaultInvalidationThreshold
	}

	now := time.Now().UTC()

	return &Registry{
		themes:    make(map[string]*domain.LearnedTheme),
		threshold: cfg.InvalidationThreshold,
		createdAt: now,
		updatedAt: now,
		logger:    logger.With().Str("component", "registry").Logger(),
	}
}

// Add registers a new theme. The template id must be unique and non-empty.
func (r *Registry) Add(theme *domain.LearnedTheme) error {
	if theme == nil || theme.Template.ID == "" || theme.Template.Name == "" {
		return errs.ErrInvalidInput
	}

	if _, ok := r.themes[theme.Template.ID]; ok {
		return errs.ErrThemeExists
	}

	if theme.Stage == "" {
		theme.Stage = domain.StageEmerging
	}

	if theme.Members == nil {
		theme.Members = make(map[string]*domain.ThemeMember)
	}

	if theme.DiscoveredAt.IsZero() {
		theme.DiscoveredAt = time.Now().UTC()
	}

	r.themes[theme.Template.ID] = theme
	r.touch()

	r.logger.Info().
		Str(logKeyTheme, theme.Template.ID).
		Str("name", theme.Template.Name).
		Str(logKeyStage, string(theme.Stage)).
		Msg("theme registered")

	return nil
}

// Get returns the theme with the given id.
func (r *Registry) Get(id string) (*domain.LearnedTheme, error) {
	theme, ok := r.themes[id]
	if !ok {
		return nil, errs.ErrThemeNotFound
	}

	return theme, nil
}

// Themes returns all themes ordered by id.
func (r *Registry) Themes() []*domain.LearnedTheme {
	out := make([]*domain.LearnedTheme, 0, len(r.themes))
	for _, theme := range r.themes {
		out = append(out, theme)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Template.ID < out[j].Template.ID
	})

	return out
}

// ActiveThemes returns all non-retired themes ordered by id. Retired themes
// are invisible to every learning phase.
func (r *Registry) ActiveThemes() []*domain.LearnedTheme {
	out := make([]*domain.LearnedTheme, 0, len(r.themes))

	for _, theme := range r.themes {
		if theme.Retired() {
			continue
		}

		out = append(out, theme)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Template.ID < out[j].Template.ID
	})

	return out
}

// ThemeCount reports the number of registered themes, retired included.
func (r *Registry) ThemeCount() int {
	return len(r.themes)
}

// MemberCount reports memberships across all themes.
func (r *Registry) MemberCount() int {
	count := 0
	for _, theme := range r.themes {
		count += len(theme.Members)
	}

	return count
}

// Member returns one membership record.
func (r *Registry) Member(themeID, ticker string) (*domain.ThemeMember, error) {
	theme, ok := r.themes[themeID]
	if !ok {
		return nil, errs.ErrThemeNotFound
	}

	member, ok := theme.Members[ticker]
	if !ok {
		return nil, errs.ErrMemberNotFound
	}

	return member, nil
}

// UpsertMember adds a membership or updates an existing one. On update the
// creation timestamp and both validation counters survive; role, confidence,
// source, correlation, and lead/lag are overwritten. Retired themes reject
// all membership writes.
func (r *Registry) UpsertMember(themeID string, member domain.ThemeMember) error {
	theme, ok := r.themes[themeID]
	if !ok {
		return errs.ErrThemeNotFound
	}

	if theme.Retired() {
		return errs.ErrThemeRetired
	}

	if member.Ticker == "" || !domain.ValidRole(string(member.Role)) {
		return errs.ErrInvalidInput
	}

	member.Confidence = clamp01(member.Confidence)

	if existing, ok := theme.Members[member.Ticker]; ok {
		member.CreatedAt = existing.CreatedAt
		member.LastValidatedAt = existing.LastValidatedAt
		member.ValidationCount = existing.ValidationCount
		member.InvalidationCount = existing.InvalidationCount
	} else if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}

	theme.Members[member.Ticker] = &member
	r.touch()

	r.logger.Debug().
		Str(logKeyTheme, themeID).
		Str(logKeyTicker, member.Ticker).
		Str("role", string(member.Role)).
		Float64("confidence", member.Confidence).
		Msg("member upserted")

	return nil
}

// RecordValidation marks a member as confirmed by fresh data: bumps the
// validation counter, stamps the validation time, and stores the
// recomputed correlation.
func (r *Registry) RecordValidation(themeID, ticker string, correlation float64) error {
	member, err := r.Member(themeID, ticker)
	if err != nil {
		return err
	}

	member.ValidationCount++
	member.LastValidatedAt = time.Now().UTC()
	member.CorrelationToDrivers = correlation
	r.touch()

	return nil
}

// RecordInvalidation marks a member as contradicted by fresh data. Once the
// invalidation counter reaches the registry's threshold the member is
// removed; the returned bool reports whether that happened.
func (r *Registry) RecordInvalidation(themeID, ticker string) (bool, error) {
	theme, ok := r.themes[themeID]
	if !ok {
		return false, errs.ErrThemeNotFound
	}

	member, ok := theme.Members[ticker]
	if !ok {
		return false, errs.ErrMemberNotFound
	}

	member.InvalidationCount++
	r.touch()

	if member.InvalidationCount < r.threshold {
		return false, nil
	}

	delete(theme.Members, ticker)

	r.logger.Info().
		Str(logKeyTheme, themeID).
		Str(logKeyTicker, ticker).
		Int("invalidations", member.InvalidationCount).
		Msg("member pruned after repeated invalidation")

	return true, nil
}

// SetStage moves a theme to a new lifecycle stage, recording the change in
// the stage history. Unchanged stages are a no-op. Retirement must go
// through Retire, never through stage detection.
func (r *Registry) SetStage(themeID string, stage domain.ThemeStage, score float64) error {
	theme, ok := r.themes[themeID]
	if !ok {
		return errs.ErrThemeNotFound
	}

	if theme.Retired() {
		return errs.ErrThemeRetired
	}

	if stage == domain.StageRetired || !domain.ValidStage(string(stage)) {
		return errs.ErrInvalidInput
	}

	if theme.Stage == stage {
		return nil
	}

	from := theme.Stage
	r.recordStageChange(theme, stage, score)

	r.logger.Info().
		Str(logKeyTheme, themeID).
		Str("from", string(from)).
		Str(logKeyStage, string(stage)).
		Float64("score", score).
		Msg("theme stage changed")

	return nil
}

// Retire moves a theme to its terminal stage. Retiring an already retired
// theme is a no-op.
func (r *Registry) Retire(themeID string) error {
	theme, ok := r.themes[themeID]
	if !ok {
		return errs.ErrThemeNotFound
	}

	if theme.Retired() {
		return nil
	}

	r.recordStageChange(theme, domain.StageRetired, 1)

	r.logger.Info().
		Str(logKeyTheme, themeID).
		Msg("theme retired")

	return nil
}

// UpdateSignals stores the rolling heat, 20-day return, and news-velocity
// metrics computed by the learner.
func (r *Registry) UpdateSignals(themeID string, heat, avgReturn20d, newsVelocity float64) error {
	theme, ok := r.themes[themeID]
	if !ok {
		return errs.ErrThemeNotFound
	}

	theme.Heat = heat
	theme.AvgReturn20D = avgReturn20d
	theme.NewsVelocity = newsVelocity
	r.touch()

	return nil
}

func (r *Registry) recordStageChange(theme *domain.LearnedTheme, stage domain.ThemeStage, score float64) {
	theme.StageHistory = append(theme.StageHistory, domain.StageChange{
		From:  theme.Stage,
		To:    stage,
		Score: score,
		At:    time.Now().UTC(),
	})
	theme.Stage = stage
	r.touch()
}

func (r *Registry) touch() {
	r.updatedAt = time.Now().UTC()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
