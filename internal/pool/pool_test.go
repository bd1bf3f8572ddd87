package pool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/meta-engine/internal/effects"
	"github.com/pdiddy/meta-engine/pkg/types"
)

func readyRecord(study, outcome string, etype types.EffectType, est, lo, hi float64, unit string) types.EffectRecord {
	se := effects.SEFromCI(lo, hi)
	return types.EffectRecord{
		StudyID: study, Outcome: outcome, Type: etype,
		Estimate: est, CILow: lo, CIHigh: hi, SE: se, Unit: unit,
		Readiness: effects.Classify(est, se),
	}
}

// --- DerSimonianLaird ---

func TestDerSimonianLairdSingleStudy(t *testing.T) {
	dl, err := DerSimonianLaird([]float64{-0.5}, []float64{0.2})
	require.NoError(t, err)

	assert.Equal(t, 0.0, dl.Tau2)
	assert.Equal(t, -0.5, dl.Pooled)
	assert.InDelta(t, -0.5-effects.Z*0.2, dl.CILow, 1e-12)
	assert.InDelta(t, -0.5+effects.Z*0.2, dl.CIHigh, 1e-12)
	assert.Equal(t, 0.0, dl.I2)
}

func TestDerSimonianLairdHomogeneousPair(t *testing.T) {
	// Two HbA1c mean differences with identical precision: Q < k−1, so
	// τ² = 0 and the pooled estimate is the plain inverse-variance mean.
	se1 := effects.SEFromCI(-0.8, -0.2)
	se2 := effects.SEFromCI(-0.6, 0.0)
	require.InDelta(t, 0.153061, se1, 1e-6)
	require.InDelta(t, 0.153061, se2, 1e-6)

	dl, err := DerSimonianLaird([]float64{-0.5, -0.3}, []float64{se1, se2})
	require.NoError(t, err)

	assert.Equal(t, 0.0, dl.Tau2)
	assert.InDelta(t, -0.40, dl.Pooled, 1e-9)
	assert.Equal(t, 0.0, dl.I2)
	assert.Less(t, dl.CILow, dl.Pooled)
	assert.Greater(t, dl.CIHigh, dl.Pooled)
}

func TestDerSimonianLairdHeterogeneous(t *testing.T) {
	// Widely disagreeing precise estimates force τ² > 0 and I² > 0.
	dl, err := DerSimonianLaird([]float64{-1.0, 1.0}, []float64{0.1, 0.1})
	require.NoError(t, err)

	assert.Greater(t, dl.Tau2, 0.0)
	assert.Greater(t, dl.I2, 0.0)
	assert.LessOrEqual(t, dl.I2, 100.0)
	assert.InDelta(t, 0.0, dl.Pooled, 1e-9, "symmetric inputs pool to zero")
}

func TestDerSimonianLairdDegenerateWeights(t *testing.T) {
	_, err := DerSimonianLaird([]float64{0.5, 0.3}, []float64{0, 0.1})
	require.Error(t, err)

	_, err = DerSimonianLaird(nil, nil)
	require.Error(t, err)
}

// --- grouping ---

func TestGroupRecordsPartitionsByOutcomeAndType(t *testing.T) {
	records := []types.EffectRecord{
		readyRecord("s1", "HbA1c", types.EffectMD, -0.5, -0.8, -0.2, "%"),
		readyRecord("s2", "HbA1c", types.EffectMD, -0.3, -0.6, 0.0, "%"),
		readyRecord("s3", "HbA1c", types.EffectSMD, -0.4, -0.7, -0.1, ""),
		readyRecord("s4", "Weight", types.EffectMD, -2.0, -3.0, -1.0, "kg"),
	}

	groups := GroupRecords(records)
	require.Len(t, groups, 3)

	// Sorted by outcome, then type.
	assert.Equal(t, "HbA1c", groups[0].Outcome)
	assert.Equal(t, types.EffectMD, groups[0].Type)
	assert.Len(t, groups[0].Records, 2)
	assert.Equal(t, types.EffectSMD, groups[1].Type)
	assert.Equal(t, "Weight", groups[2].Outcome)
}

// --- Pool ---

func TestPoolHomogeneousGroup(t *testing.T) {
	groups := GroupRecords([]types.EffectRecord{
		readyRecord("s1", "HbA1c", types.EffectMD, -0.5, -0.8, -0.2, "%"),
		readyRecord("s2", "HbA1c", types.EffectMD, -0.3, -0.6, 0.0, "%"),
	})

	results := Pool(groups, 2)
	require.Len(t, results, 1)

	p := results[0]
	assert.Equal(t, "OK", p.Note)
	assert.Equal(t, 2, p.K)
	assert.InDelta(t, -0.40, p.Pooled, 1e-9)
	assert.Equal(t, 0.0, p.Tau2)
	assert.Equal(t, 0.0, p.I2)
	assert.Equal(t, "%", p.Unit)
}

func TestPoolUnitMismatchNeverPools(t *testing.T) {
	// Estimates agree perfectly; the unit clash still rejects the group.
	groups := GroupRecords([]types.EffectRecord{
		readyRecord("s1", "HbA1c", types.EffectMD, -0.5, -0.8, -0.2, "%"),
		readyRecord("s2", "HbA1c", types.EffectMD, -0.5, -0.8, -0.2, "mmol/mol"),
	})

	results := Pool(groups, 2)
	require.Len(t, results, 1)

	p := results[0]
	assert.Equal(t, "Unit mismatch within group; skipping pooling", p.Note)
	assert.True(t, math.IsNaN(p.Pooled))
	assert.True(t, math.IsNaN(p.CILow))
	assert.True(t, math.IsNaN(p.Tau2))
	assert.True(t, math.IsNaN(p.I2))
	assert.Empty(t, p.Unit)
}

func TestPoolBelowMinKNeverPools(t *testing.T) {
	groups := GroupRecords([]types.EffectRecord{
		readyRecord("s1", "HbA1c", types.EffectMD, -0.5, -0.8, -0.2, "%"),
	})

	results := Pool(groups, 2)
	require.Len(t, results, 1)

	p := results[0]
	assert.Equal(t, "Less than min-k (2); skipping pooling", p.Note)
	assert.Equal(t, 1, p.K)
	assert.True(t, math.IsNaN(p.Pooled))
}

func TestPoolEmitsRowForNotReadyOnlyGroup(t *testing.T) {
	// A group whose records all fail readiness still gets its explicit row.
	rec := types.EffectRecord{
		StudyID: "s1", Outcome: "HbA1c", Type: types.EffectMD,
		Estimate: math.NaN(), SE: math.NaN(),
		Readiness: types.NotReadyNoEstimate,
	}

	results := Pool(GroupRecords([]types.EffectRecord{rec}), 2)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].K)
	assert.Equal(t, "Less than min-k (2); skipping pooling", results[0].Note)
}

func TestPoolRejectsZeroSEGroup(t *testing.T) {
	groups := GroupRecords([]types.EffectRecord{
		readyRecord("s1", "HbA1c", types.EffectMD, -0.5, -0.5, -0.5, "%"),
		readyRecord("s2", "HbA1c", types.EffectMD, -0.3, -0.6, 0.0, "%"),
	})

	results := Pool(groups, 2)
	require.Len(t, results, 1)

	p := results[0]
	assert.Equal(t, "non-finite weights; skipping pooling", p.Note)
	assert.True(t, math.IsNaN(p.Pooled))
}

func TestPoolIsAllOrNothingPerGroup(t *testing.T) {
	groups := GroupRecords([]types.EffectRecord{
		readyRecord("s1", "HbA1c", types.EffectMD, -0.5, -0.8, -0.2, "%"),
		readyRecord("s2", "HbA1c", types.EffectMD, -0.3, -0.6, 0.0, "%"),
		readyRecord("s3", "Weight", types.EffectMD, -2.0, -3.0, -1.0, "kg"),
	})

	results := Pool(groups, 2)
	require.Len(t, results, 2)

	for _, p := range results {
		if p.Note == "OK" {
			assert.False(t, math.IsNaN(p.Pooled))
			assert.False(t, math.IsNaN(p.CILow))
			assert.False(t, math.IsNaN(p.CIHigh))
			assert.False(t, math.IsNaN(p.Tau2))
			assert.False(t, math.IsNaN(p.I2))
		} else {
			assert.True(t, math.IsNaN(p.Pooled))
			assert.True(t, math.IsNaN(p.CILow))
			assert.True(t, math.IsNaN(p.CIHigh))
			assert.True(t, math.IsNaN(p.Tau2))
			assert.True(t, math.IsNaN(p.I2))
		}
	}
}
