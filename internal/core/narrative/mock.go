package narrative

import "context"

// Mock is a deterministic in-memory Service for tests. Unset results fall
// back to fixed defaults; a non-nil Err fails every call with it.
type Mock struct {
	RoleResult  *Assessment
	StageResult *Assessment
	NameResult  *Assessment
	Err         error

	RoleCalls  int
	StageCalls int
	NameCalls  int
}

var _ Service = (*Mock)(nil)

// Name implements Service.
func (m *Mock) Name() string { return "mock" }

// IsAvailable implements Service.
func (m *Mock) IsAvailable() bool { return m.Err == nil }

// AssessRole implements Service.
func (m *Mock) AssessRole(_ context.Context, _ RoleRequest) (*Assessment, error) {
	m.RoleCalls++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.RoleResult != nil {
		return m.RoleResult, nil
	}

	return &Assessment{Label: "beneficiary", Confidence: 0.6, Reasoning: "mock role"}, nil
}

// AssessStage implements Service.
func (m *Mock) AssessStage(_ context.Context, _ StageRequest) (*Assessment, error) {
	m.StageCalls++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.StageResult != nil {
		return m.StageResult, nil
	}

	return &Assessment{Label: "early", Confidence: 0.7, Reasoning: "mock stage"}, nil
}

// SuggestName implements Service.
func (m *Mock) SuggestName(_ context.Context, _ NameRequest) (*Assessment, error) {
	m.NameCalls++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.NameResult != nil {
		return m.NameResult, nil
	}

	return &Assessment{Label: "Mock Theme", Confidence: 0.5, Reasoning: "mock name"}, nil
}
