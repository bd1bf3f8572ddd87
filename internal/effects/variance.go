// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package effects

import (
	"fmt"
	"math"
)

// SEFromCI derives a standard error from a symmetric 95% confidence
// interval: (high - low) / (2·Z). Either bound being non-finite makes the
// result NaN, which propagates as "missing SE". A zero-width interval is a
// legitimate SE of 0, distinct from missing (R3.1).
func SEFromCI(low, high float64) float64 {
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return math.NaN()
	}
	return (high - low) / (2 * Z)
}

// ArmSummary holds the summary statistics of one trial arm used for effect
// synthesis: mean, standard deviation, and sample size.
type ArmSummary struct {
	Mean float64
	SD   float64
	N    float64
}

func (a ArmSummary) complete() bool {
	for _, v := range []float64{a.Mean, a.SD, a.N} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// GResult is a synthesized Hedges' g effect with its uncertainty.
type GResult struct {
	// G is the bias-corrected standardized mean difference.
	G float64

	// SE is sqrt(Var(g)).
	SE float64

	// CILow, CIHigh are g ± Z·SE.
	CILow  float64
	CIHigh float64
}

// HedgesG synthesizes a bias-corrected standardized mean difference from an
// intervention/control arm pair (R3.2):
//
//	df  = n1 + n0 − 2
//	sp² = ((n1−1)s1² + (n0−1)s0²) / df
//	d   = (m1 − m0) / sqrt(sp²)
//	J   = 1 − 3/(4·df − 1)
//	g   = J·d
//	Var(g) = J² · [ (n1+n0)/(n1·n0) + d²/(2·df) ]
//
// Degenerate inputs (missing statistics, df ≤ 0, sp² ≤ 0) return an error
// naming the condition; the caller skips only the affected pair.
func HedgesG(intervention, control ArmSummary) (GResult, error) {
	if !intervention.complete() || !control.complete() {
		return GResult{}, fmt.Errorf("incomplete arm statistics")
	}

	n1, n0 := intervention.N, control.N
	df := n1 + n0 - 2
	if df <= 0 {
		return GResult{}, fmt.Errorf("non-positive degrees of freedom (%g)", df)
	}

	s1, s0 := intervention.SD, control.SD
	sp2 := ((n1-1)*s1*s1 + (n0-1)*s0*s0) / df
	if sp2 <= 0 {
		return GResult{}, fmt.Errorf("non-positive pooled variance (%g)", sp2)
	}

	d := (intervention.Mean - control.Mean) / math.Sqrt(sp2)
	j := 1 - 3/(4*df-1)
	g := j * d

	varG := j * j * ((n1+n0)/(n1*n0) + d*d/(2*df))
	se := math.Sqrt(varG)

	return GResult{
		G:      g,
		SE:     se,
		CILow:  g - Z*se,
		CIHigh: g + Z*se,
	}, nil
}

// MeanDifference computes an unstandardized mean difference and its
// standard error from two arm summaries: md = m1 − m0,
// SE = sqrt(s1²/n1 + s0²/n0). Used by the imputation pass (prd008 R3.1).
func MeanDifference(intervention, control ArmSummary) (md, se float64, err error) {
	if !intervention.complete() || !control.complete() {
		return 0, 0, fmt.Errorf("incomplete arm statistics")
	}
	if intervention.N <= 0 || control.N <= 0 {
		return 0, 0, fmt.Errorf("non-positive sample size")
	}

	md = intervention.Mean - control.Mean
	se = math.Sqrt(intervention.SD*intervention.SD/intervention.N +
		control.SD*control.SD/control.N)
	return md, se, nil
}
