package registry

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/core/domain"
)

// SchemaVersion identifies the themes document layout.
const SchemaVersion = 1

// Document is the serializable snapshot of the registry.
type Document struct {
	Themes   map[string]*domain.LearnedTheme `json:"themes"`
	Metadata DocumentMetadata                `json:"metadata"`
}

// DocumentMetadata describes the snapshot.
type DocumentMetadata struct {
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ThemeCount    int       `json:"theme_count"`
	MemberCount   int       `json:"member_count"`
}

// Document returns a deep copy of the registry state; later mutations of the
// registry do not leak into it.
func (r *Registry) Document() *Document {
	themes := make(map[string]*domain.LearnedTheme, len(r.themes))
	for id, theme := range r.themes {
		themes[id] = cloneTheme(theme)
	}

	return &Document{
		Themes: themes,
		Metadata: DocumentMetadata{
			SchemaVersion: SchemaVersion,
			CreatedAt:     r.createdAt,
			UpdatedAt:     r.updatedAt,
			ThemeCount:    r.ThemeCount(),
			MemberCount:   r.MemberCount(),
		},
	}
}

// FromDocument rebuilds a registry from a persisted document. Malformed
// entries are normalized or dropped with a log line, never a failure: a
// best-effort registry beats refusing to start.
func FromDocument(doc *Document, cfg Config, logger *zerolog.Logger) *Registry {
	r := New(cfg, logger)

	if doc == nil {
		return r
	}

	for id, theme := range doc.Themes {
		if theme == nil || id == "" {
			continue
		}

		if theme.Template.ID == "" {
			theme.Template.ID = id
		}

		if theme.Template.Name == "" {
			r.logger.Warn().
				Str(logKeyTheme, id).
				Msg("dropping persisted theme without a name")

			continue
		}

		if !domain.ValidStage(string(theme.Stage)) {
			r.logger.Warn().
				Str(logKeyTheme, id).
				Str(logKeyStage, string(theme.Stage)).
				Msg("coercing unknown persisted stage to emerging")

			theme.Stage = domain.StageEmerging
		}

		normalizeMembers(r, id, theme)

		r.themes[theme.Template.ID] = cloneTheme(theme)
	}

	if !doc.Metadata.CreatedAt.IsZero() {
		r.createdAt = doc.Metadata.CreatedAt
	}

	if !doc.Metadata.UpdatedAt.IsZero() {
		r.updatedAt = doc.Metadata.UpdatedAt
	}

	return r
}

func normalizeMembers(r *Registry, id string, theme *domain.LearnedTheme) {
	if theme.Members == nil {
		theme.Members = make(map[string]*domain.ThemeMember)
		return
	}

	for ticker, member := range theme.Members {
		if member == nil || ticker == "" {
			delete(theme.Members, ticker)
			continue
		}

		if member.Ticker == "" {
			member.Ticker = ticker
		}

		if !domain.ValidRole(string(member.Role)) {
			r.logger.Warn().
				Str(logKeyTheme, id).
				Str(logKeyTicker, ticker).
				Str("role", string(member.Role)).
				Msg("coercing unknown persisted role to peripheral")

			member.Role = domain.RolePeripheral
		}

		member.Confidence = clamp01(member.Confidence)
	}
}

func cloneTheme(theme *domain.LearnedTheme) *domain.LearnedTheme {
	out := *theme

	out.Template.Keywords = append([]string(nil), theme.Template.Keywords...)
	out.StageHistory = append([]domain.StageChange(nil), theme.StageHistory...)

	out.Members = make(map[string]*domain.ThemeMember, len(theme.Members))
	for ticker, member := range theme.Members {
		m := *member
		out.Members[ticker] = &m
	}

	return &out
}
