package narrative

import (
	"context"

	errs "github.com/quantfold/themegraph/internal/core/errors"
)

// Disabled is the Service wired in when no API key is configured: every call
// reports the service unavailable and the learner stays on its rule-based
// path.
type Disabled struct{}

var _ Service = Disabled{}

// Name implements Service.
func (Disabled) Name() string { return "disabled" }

// IsAvailable implements Service.
func (Disabled) IsAvailable() bool { return false }

// AssessRole implements Service.
func (Disabled) AssessRole(context.Context, RoleRequest) (*Assessment, error) {
	return nil, errs.ErrNarrativeUnavailable
}

// AssessStage implements Service.
func (Disabled) AssessStage(context.Context, StageRequest) (*Assessment, error) {
	return nil, errs.ErrNarrativeUnavailable
}

// SuggestName implements Service.
func (Disabled) SuggestName(context.Context, NameRequest) (*Assessment, error) {
	return nil, errs.ErrNarrativeUnavailable
}
