package learner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/themegraph/internal/core/domain"
	errs "github.com/quantfold/themegraph/internal/core/errors"
	"github.com/quantfold/themegraph/internal/graph"
	"github.com/quantfold/themegraph/internal/registry"
)

func TestRunCycleValidatesHealthyMember(t *testing.T) {
	reg := registry.New(registry.Config{}, nil)
	l := newTestLearner(reg, graph.New(nil), nil)

	seedTheme(t, reg, "battery-tech", nil,
		driverMember("ALB"),
		beneficiaryMember("SQM", 0.6),
	)

	wave := squareWave(40, 1, 0.01)
	snap := &domain.Snapshot{
		Returns: map[string][]float64{
			"ALB": wave,
			"SQM": append([]float64(nil), wave...),
		},
	}

	summary, err := l.RunCycle(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MembersValidated)
	assert.Zero(t, summary.MembersInvalidated)

	member, err := reg.Member("battery-tech", "SQM")
	require.NoError(t, err)

	assert.Equal(t, 1, member.ValidationCount)
	assert.Zero(t, member.InvalidationCount)
	assert.False(t, member.LastValidatedAt.IsZero())
	assert.InDelta(t, 1.0, member.CorrelationToDrivers, 1e-9)
}

func TestRunCycleInvalidationCountsExactlyOnce(t *testing.T) {
	reg := registry.New(registry.Config{}, nil)
	l := newTestLearner(reg, graph.New(nil), nil)

	member := beneficiaryMember("ORTH", 0.6)
	member.CorrelationToDrivers = 0.6

	seedTheme(t, reg, "battery-tech", nil, driverMember("ALB"), member)

	// the member's series is orthogonal to the driver's at every lag, so
	// its recomputed correlation collapses well below the threshold
	snap := &domain.Snapshot{
		Returns: map[string][]float64{
			"ALB":  squareWave(40, 1, 0.01),
			"ORTH": squareWave(40, 2, 0.01),
		},
	}

	summary, err := l.RunCycle(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MembersInvalidated)
	assert.Zero(t, summary.MembersValidated)
	assert.Zero(t, summary.MembersPruned)

	got, err := reg.Member("battery-tech", "ORTH")
	require.NoError(t, err)

	assert.Equal(t, 1, got.InvalidationCount)
	assert.Zero(t, got.ValidationCount)

	// the stored correlation is only rewritten on successful validation
	assert.Equal(t, 0.6, got.CorrelationToDrivers)
}

func TestRunCyclePrunesAtRegistryThreshold(t *testing.T) {
	reg := registry.New(registry.Config{InvalidationThreshold: 1}, nil)
	l := newTestLearner(reg, graph.New(nil), nil)

	seedTheme(t, reg, "battery-tech", nil,
		driverMember("ALB"),
		beneficiaryMember("ORTH", 0.6),
	)

	snap := &domain.Snapshot{
		Returns: map[string][]float64{
			"ALB":  squareWave(40, 1, 0.01),
			"ORTH": squareWave(40, 2, 0.01),
		},
	}

	summary, err := l.RunCycle(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MembersInvalidated)
	assert.Equal(t, 1, summary.MembersPruned)

	_, err = reg.Member("battery-tech", "ORTH")
	assert.ErrorIs(t, err, errs.ErrMemberNotFound)
}

func TestRunCycleValidationSkipsDriversAndMissingData(t *testing.T) {
	reg := registry.New(registry.Config{}, nil)
	l := newTestLearner(reg, graph.New(nil), nil)

	secondDriver := driverMember("DRV2")

	seedTheme(t, reg, "battery-tech", nil,
		driverMember("ALB"),
		secondDriver,
		beneficiaryMember("GHOST", 0.5),
	)

	// DRV2 is orthogonal to ALB but drivers are never validated against
	// each other; GHOST has no fresh data at all
	snap := &domain.Snapshot{
		Returns: map[string][]float64{
			"ALB":  squareWave(40, 1, 0.01),
			"DRV2": squareWave(40, 2, 0.01),
		},
	}

	summary, err := l.RunCycle(context.Background(), snap)
	require.NoError(t, err)

	assert.Zero(t, summary.MembersValidated)
	assert.Zero(t, summary.MembersInvalidated)
	assert.Zero(t, summary.Errors)

	drv2, err := reg.Member("battery-tech", "DRV2")
	require.NoError(t, err)
	assert.Zero(t, drv2.InvalidationCount)

	ghost, err := reg.Member("battery-tech", "GHOST")
	require.NoError(t, err)
	assert.Zero(t, ghost.InvalidationCount)
	assert.Zero(t, ghost.ValidationCount)
}

func TestRunCycleValidationWithoutDrivers(t *testing.T) {
	reg := registry.New(registry.Config{}, nil)
	l := newTestLearner(reg, graph.New(nil), nil)

	seedTheme(t, reg, "battery-tech", nil, beneficiaryMember("SQM", 0.6))

	snap := &domain.Snapshot{
		Returns: map[string][]float64{
			"SQM": squareWave(40, 1, 0.01),
		},
	}

	summary, err := l.RunCycle(context.Background(), snap)
	require.NoError(t, err)

	// nothing to validate against
	assert.Zero(t, summary.MembersValidated)
	assert.Zero(t, summary.MembersInvalidated)
}
