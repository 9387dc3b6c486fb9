package narrative

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/quantfold/themegraph/internal/core/errors"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, zerolog.Nop())

	cb.RecordFailure()
	cb.RecordFailure()
	require.NoError(t, cb.Check())
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Check(), errs.ErrCircuitBreakerOpen)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, zerolog.Nop())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.False(t, cb.IsOpen())
	assert.NoError(t, cb.Check())
}

func TestCircuitBreakerClosesAfterReset(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, zerolog.Nop())

	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	time.Sleep(50 * time.Millisecond)

	assert.False(t, cb.IsOpen())
	assert.NoError(t, cb.Check())
}

func TestCircuitBreakerManualReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour, zerolog.Nop())

	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	cb.Reset()

	assert.False(t, cb.IsOpen())
}

func TestDisabledService(t *testing.T) {
	svc := Disabled{}
	ctx := context.Background()

	assert.False(t, svc.IsAvailable())

	_, err := svc.AssessRole(ctx, RoleRequest{Ticker: "NVDA"})
	assert.ErrorIs(t, err, errs.ErrNarrativeUnavailable)

	_, err = svc.AssessStage(ctx, StageRequest{ThemeName: "ai"})
	assert.ErrorIs(t, err, errs.ErrNarrativeUnavailable)

	_, err = svc.SuggestName(ctx, NameRequest{Keywords: []string{"ai"}})
	assert.ErrorIs(t, err, errs.ErrNarrativeUnavailable)
}

func TestMockService(t *testing.T) {
	m := &Mock{}
	ctx := context.Background()

	role, err := m.AssessRole(ctx, RoleRequest{})
	require.NoError(t, err)
	assert.Equal(t, "beneficiary", role.Label)

	m.RoleResult = &Assessment{Label: "driver", Confidence: 0.9}

	role, err = m.AssessRole(ctx, RoleRequest{})
	require.NoError(t, err)
	assert.Equal(t, "driver", role.Label)
	assert.Equal(t, 2, m.RoleCalls)

	m.Err = errs.ErrNarrativeUnavailable
	assert.False(t, m.IsAvailable())

	_, err = m.AssessStage(ctx, StageRequest{})
	assert.ErrorIs(t, err, errs.ErrNarrativeUnavailable)
}
