package budget

import (
	"testing"

	"github.com/jordanhubbard/cascadeflow/internal/cferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitsWithinCeiling(t *testing.T) {
	tr := New()
	assert.True(t, tr.Fits("tenant-a", 1.0, 0.3))
}

func TestFitsNoCeilingAlwaysFits(t *testing.T) {
	tr := New()
	assert.True(t, tr.Fits("tenant-a", 0, 1e9))
}

func TestChargeReducesRemaining(t *testing.T) {
	tr := New()
	tr.Charge("tenant-a", 1.0, 0.4)
	assert.InDelta(t, 0.6, tr.Remaining("tenant-a", 1.0), 1e-9)
}

func TestFitsFalseAfterOverspend(t *testing.T) {
	tr := New()
	tr.Charge("tenant-a", 1.0, 0.9)
	assert.False(t, tr.Fits("tenant-a", 1.0, 0.2))
}

func TestCheckDrafterFitsErrorsWhenExceeded(t *testing.T) {
	tr := New()
	tr.Charge("tenant-a", 1.0, 0.95)
	err := tr.CheckDrafterFits("tenant-a", 1.0, 0.2)
	require.Error(t, err)
	var be *cferrors.BudgetExceededError
	assert.ErrorAs(t, err, &be)
}

func TestCheckDrafterFitsOKWhenRoom(t *testing.T) {
	tr := New()
	err := tr.CheckDrafterFits("tenant-a", 1.0, 0.1)
	assert.NoError(t, err)
}
