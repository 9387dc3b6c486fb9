package domain

import (
	"sort"
	"time"
)

// MemberRole classifies how a ticker participates in a theme.
type MemberRole string

const (
	RoleDriver          MemberRole = "driver"
	RoleBeneficiary     MemberRole = "beneficiary"
	RolePicksAndShovels MemberRole = "picks_and_shovels"
	RolePeripheral      MemberRole = "peripheral"
)

// ValidRole reports whether s is one of the four closed role variants.
func ValidRole(s string) bool {
	switch MemberRole(s) {
	case RoleDriver, RoleBeneficiary, RolePicksAndShovels, RolePeripheral:
		return true
	}

	return false
}

// DiscoverySource records how a membership or theme was established.
type DiscoverySource string

const (
	SourceManual      DiscoverySource = "manual"
	SourceCorrelation DiscoverySource = "correlation"
	SourceClustering  DiscoverySource = "clustering"
	SourceNarrative   DiscoverySource = "narrative"
)

// ThemeStage is the lifecycle stage of a learned theme.
type ThemeStage string

const (
	StageEmerging  ThemeStage = "emerging"
	StageEarly     ThemeStage = "early"
	StageMiddle    ThemeStage = "middle"
	StageLate      ThemeStage = "late"
	StageExhausted ThemeStage = "exhausted"
	StageRetired   ThemeStage = "retired"
)

// DetectableStages lists the stages the learner may vote on, in fixed order.
// Retired is excluded: only an explicit external action retires a theme.
var DetectableStages = []ThemeStage{StageEmerging, StageEarly, StageMiddle, StageLate, StageExhausted}

// ValidStage reports whether s is one of the closed stage variants.
func ValidStage(s string) bool {
	switch ThemeStage(s) {
	case StageEmerging, StageEarly, StageMiddle, StageLate, StageExhausted, StageRetired:
		return true
	}

	return false
}

// ThemeTemplate is the definition of a theme independent of what has been
// learned about it.
type ThemeTemplate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Description string   `json:"description,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
}

// ThemeMember is one stock's membership in one theme.
type ThemeMember struct {
	Ticker               string          `json:"ticker"`
	Role                 MemberRole      `json:"role"`
	Confidence           float64         `json:"confidence"`
	Source               DiscoverySource `json:"source"`
	CreatedAt            time.Time       `json:"created_at"`
	LastValidatedAt      time.Time       `json:"last_validated_at,omitempty"`
	CorrelationToDrivers float64         `json:"correlation_to_drivers"`
	LeadLagDays          int             `json:"lead_lag_days"`
	ValidationCount      int             `json:"validation_count"`
	InvalidationCount    int             `json:"invalidation_count"`
}

// StageChange is one entry in a theme's stage history.
type StageChange struct {
	From  ThemeStage `json:"from"`
	To    ThemeStage `json:"to"`
	Score float64    `json:"score"`
	At    time.Time  `json:"at"`
}

// LearnedTheme aggregates a template with its learned membership, lifecycle
// stage, and rolling metrics.
type LearnedTheme struct {
	Template     ThemeTemplate           `json:"template"`
	Stage        ThemeStage              `json:"stage"`
	Members      map[string]*ThemeMember `json:"members"`
	DiscoveredAt time.Time               `json:"discovered_at"`
	DiscoveredBy DiscoverySource         `json:"discovered_by"`
	Heat         float64                 `json:"heat"`
	AvgReturn20D float64                 `json:"avg_return_20d"`
	NewsVelocity float64                 `json:"news_velocity"`
	StageHistory []StageChange           `json:"stage_history,omitempty"`
}

// Retired reports whether the theme has reached its terminal stage.
func (t *LearnedTheme) Retired() bool {
	return t.Stage == StageRetired
}

// AgeDays returns the age of the theme in days at the given instant.
func (t *LearnedTheme) AgeDays(now time.Time) float64 {
	return now.Sub(t.DiscoveredAt).Hours() / 24
}

// Drivers returns the members holding the driver role, strongest first.
func (t *LearnedTheme) Drivers() []*ThemeMember {
	out := make([]*ThemeMember, 0, len(t.Members))

	for _, m := range t.Members {
		if m.Role == RoleDriver {
			out = append(out, m)
		}
	}

	sortMembersByConfidence(out)

	return out
}

// ReferenceMembers returns the members candidate series are correlated
// against: the explicit drivers, or absent any, the top-confidence members
// capped at max.
func (t *LearnedTheme) ReferenceMembers(max int) []*ThemeMember {
	drivers := t.Drivers()
	if len(drivers) > 0 {
		return drivers
	}

	all := make([]*ThemeMember, 0, len(t.Members))
	for _, m := range t.Members {
		all = append(all, m)
	}

	sortMembersByConfidence(all)

	if max > 0 && len(all) > max {
		all = all[:max]
	}

	return all
}

// sortMembersByConfidence orders members by descending confidence, breaking
// ties by ticker so iteration over map-backed members stays reproducible.
func sortMembersByConfidence(members []*ThemeMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Confidence != members[j].Confidence {
			return members[i].Confidence > members[j].Confidence
		}

		return members[i].Ticker < members[j].Ticker
	})
}

// ThemeHypothesis is an unconfirmed candidate theme discovered from news
// clustering. Hypotheses are persisted outside the registry until confirmed.
type ThemeHypothesis struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Keywords   []string  `json:"keywords,omitempty"`
	Tickers    []string  `json:"tickers,omitempty"`
	Confidence float64   `json:"confidence"`
	Evidence   []string  `json:"evidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
