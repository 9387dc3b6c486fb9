// Package narrative is the optional AI-backed assessment service used for
// role classification, stage detection, and emerging-theme naming. Every
// call site computes a rule-based result first and treats any error from
// this package as "service unavailable": narrative enrichment may improve a
// decision but must never block or fail one.
package narrative

import "context"

// Assessment is the structured result of a narrative call: a category label
// (role, stage, or suggested name depending on the task), the service's
// confidence in it, and free-text reasoning for the learning log.
type Assessment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// RoleRequest carries the quantitative signature of a candidate membership.
type RoleRequest struct {
	Ticker      string
	ThemeName   string
	Keywords    []string
	Correlation float64
	LeadLagDays int
}

// StageRequest carries a theme's rolling signals for lifecycle assessment.
type StageRequest struct {
	ThemeName    string
	AgeDays      float64
	NewsVelocity float64
	AvgReturn20D float64
	MemberCount  int
}

// NameRequest carries a news cluster for theme naming.
type NameRequest struct {
	Keywords  []string
	Tickers   []string
	Headlines []string
}

// Service assesses roles, stages, and names. Implementations must bound
// every call with a timeout and must surface all failure modes as errors
// wrapping errs.ErrNarrativeUnavailable; callers never retry, they fall back.
type Service interface {
	// Name identifies the implementation in logs.
	Name() string

	// IsAvailable reports whether calls currently have a chance of
	// succeeding (e.g. the circuit breaker is closed).
	IsAvailable() bool

	// AssessRole suggests a member role for a candidate. The returned label
	// is one of the four member roles.
	AssessRole(ctx context.Context, req RoleRequest) (*Assessment, error)

	// AssessStage votes on a theme's lifecycle stage. The returned label is
	// one of the five detectable stages.
	AssessStage(ctx context.Context, req StageRequest) (*Assessment, error)

	// SuggestName proposes a human-readable name for a news cluster. The
	// returned label is the suggested theme name.
	SuggestName(ctx context.Context, req NameRequest) (*Assessment, error)
}
