// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pool groups ready effect records and computes DerSimonian-Laird
// random-effects estimates with heterogeneity statistics.
// Implements: prd007-analysis (R5);
//
//	docs/ARCHITECTURE § Pooling.
package pool

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/meta-engine/internal/effects"
	"github.com/pdiddy/meta-engine/pkg/types"
)

// DefaultMinK is the minimum number of Ready records required to pool a
// group when no configuration overrides it.
const DefaultMinK = 2

// NoteOK marks a successfully pooled group.
const NoteOK = "OK"

// Group is the set of effect records sharing one (outcome, effect type)
// pair, before readiness filtering.
type Group struct {
	Outcome string
	Type    types.EffectType
	Records []types.EffectRecord
}

// Ready returns the subset of records that passed the readiness gate and
// carry a usable estimate and standard error.
func (g Group) Ready() []types.EffectRecord {
	var ready []types.EffectRecord
	for _, r := range g.Records {
		if !r.IsReady() {
			continue
		}
		if math.IsNaN(r.Estimate) || math.IsNaN(r.SE) {
			continue
		}
		ready = append(ready, r)
	}
	return ready
}

// GroupRecords partitions records by (outcome, type). Grouping is a
// read-only pass: records are never mutated or shared across groups.
// Groups come back sorted by outcome then type so re-running with identical
// inputs reproduces identical output (R5.1).
func GroupRecords(records []types.EffectRecord) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, r := range records {
		key := strings.ToLower(r.Outcome) + "\x00" + string(r.Type)
		if i, ok := index[key]; ok {
			groups[i].Records = append(groups[i].Records, r)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Outcome: r.Outcome, Type: r.Type, Records: []types.EffectRecord{r}})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Outcome != groups[j].Outcome {
			return groups[i].Outcome < groups[j].Outcome
		}
		return groups[i].Type < groups[j].Type
	})
	return groups
}

// Pool runs the pooling pipeline over all groups. Exactly one PooledResult
// is emitted per observed group, success or explicit skip; no group ever
// carries partially computed fields (R5.5, R5.6).
func Pool(groups []Group, minK int) []types.PooledResult {
	if minK <= 0 {
		minK = DefaultMinK
	}

	results := make([]types.PooledResult, 0, len(groups))
	for _, g := range groups {
		results = append(results, poolGroup(g, minK))
	}
	return results
}

func poolGroup(g Group, minK int) types.PooledResult {
	ready := g.Ready()

	skip := func(unit, note string) types.PooledResult {
		return types.PooledResult{
			Outcome: g.Outcome, Type: g.Type, K: len(ready),
			Pooled: math.NaN(), CILow: math.NaN(), CIHigh: math.NaN(),
			Tau2: math.NaN(), I2: math.NaN(),
			Unit: unit, Note: note,
		}
	}

	unit, consistent := unitOf(ready)
	if !consistent {
		return skip("", "Unit mismatch within group; skipping pooling")
	}

	if len(ready) < minK {
		return skip(unit, fmt.Sprintf("Less than min-k (%d); skipping pooling", minK))
	}

	ests := make([]float64, len(ready))
	ses := make([]float64, len(ready))
	for i, r := range ready {
		ests[i] = r.Estimate
		ses[i] = r.SE
	}

	dl, err := DerSimonianLaird(ests, ses)
	if err != nil {
		return skip(unit, fmt.Sprintf("%s; skipping pooling", err))
	}

	return types.PooledResult{
		Outcome: g.Outcome, Type: g.Type, K: len(ready),
		Pooled: dl.Pooled, CILow: dl.CILow, CIHigh: dl.CIHigh,
		Tau2: dl.Tau2, I2: dl.I2,
		Unit: unit, Note: NoteOK,
	}
}

// unitOf collects the distinct non-empty unit strings among the ready
// records. More than one distinct value rejects the group (R5.2).
func unitOf(ready []types.EffectRecord) (string, bool) {
	unit := ""
	for _, r := range ready {
		u := strings.TrimSpace(r.Unit)
		if u == "" {
			continue
		}
		if unit == "" {
			unit = u
			continue
		}
		if u != unit {
			return "", false
		}
	}
	return unit, true
}

// DLResult holds the output of one DerSimonian-Laird pooling.
type DLResult struct {
	Pooled float64
	CILow  float64
	CIHigh float64
	Tau2   float64
	I2     float64
}

// DerSimonianLaird pools estimates under a random-effects model (R5.3):
//
//	wᵢ = 1/SEᵢ²; fixed = Σwᵢeᵢ/Σwᵢ; Q = Σwᵢ(eᵢ − fixed)²
//	k = 1: τ² = 0. Else C = Σwᵢ − Σwᵢ²/Σwᵢ; τ² = max(0, (Q − (k−1))/C)
//	w*ᵢ = 1/(SEᵢ² + τ²); pooled = Σw*ᵢeᵢ/Σw*ᵢ; SE = sqrt(1/Σw*ᵢ)
//	I² = max(0, (Q − (k−1))/Q)·100 when k > 1 and Q > 0, else 0
//
// Degenerate weights (an SE of 0 or a non-finite total) return an error so
// the caller can reject the whole group rather than emit NaN fields.
func DerSimonianLaird(ests, ses []float64) (DLResult, error) {
	k := len(ests)
	if k == 0 || k != len(ses) {
		return DLResult{}, fmt.Errorf("mismatched or empty inputs")
	}

	w := make([]float64, k)
	var sumW, sumW2, sumWE float64
	for i, se := range ses {
		if se <= 0 || math.IsNaN(se) || math.IsInf(se, 0) {
			return DLResult{}, fmt.Errorf("non-finite weights")
		}
		w[i] = 1 / (se * se)
		sumW += w[i]
		sumW2 += w[i] * w[i]
		sumWE += w[i] * ests[i]
	}
	if sumW <= 0 || math.IsInf(sumW, 0) {
		return DLResult{}, fmt.Errorf("non-finite weights")
	}

	fixed := sumWE / sumW

	var q float64
	for i := range ests {
		diff := ests[i] - fixed
		q += w[i] * diff * diff
	}

	tau2 := 0.0
	if k > 1 {
		c := sumW - sumW2/sumW
		tau2 = math.Max(0, (q-float64(k-1))/c)
	}

	var sumWStar, sumWStarE float64
	for i, se := range ses {
		ws := 1 / (se*se + tau2)
		sumWStar += ws
		sumWStarE += ws * ests[i]
	}
	if sumWStar <= 0 || math.IsInf(sumWStar, 0) {
		return DLResult{}, fmt.Errorf("zero total weight")
	}

	pooled := sumWStarE / sumWStar
	sePooled := math.Sqrt(1 / sumWStar)

	i2 := 0.0
	if k > 1 && q > 0 {
		i2 = math.Max(0, (q-float64(k-1))/q) * 100
	}

	return DLResult{
		Pooled: pooled,
		CILow:  pooled - effects.Z*sePooled,
		CIHigh: pooled + effects.Z*sePooled,
		Tau2:   tau2,
		I2:     i2,
	}, nil
}
