// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package effects

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/meta-engine/pkg/types"
)

// Strategy builds effect records from one study document, or declines when
// the document lacks the inputs it needs. Strategies are tried in order and
// the first non-declining one wins, per the Strategy pattern (R2.4).
type Strategy interface {
	Name() string
	Records(doc *types.StudyDocument, w io.Writer) StrategyResult
}

// StrategyResult is the outcome of applying one strategy to one document.
type StrategyResult struct {
	// Records are the effect records produced; empty is a valid outcome.
	Records []types.EffectRecord

	// Unpairable counts (outcome, timepoint) arm groups that lacked exactly
	// one intervention and one control arm and were surfaced, not pooled.
	Unpairable int

	// Declined reports that the document lacks this strategy's inputs and
	// the next strategy should be tried.
	Declined bool
}

// DefaultStrategies returns the ordered strategy list: precomputed effects
// first, arm-level Hedges' g synthesis as the fallback (R2.4, R3.2).
func DefaultStrategies() []Strategy {
	return []Strategy{directEffects{}, armSynthesis{}}
}

// LoadSummary holds counts from a record-building run.
type LoadSummary struct {
	Studies     int
	Direct      int
	Synthesized int
	Unpairable  int
}

// Total returns the number of records built.
func (s LoadSummary) Total() int {
	return s.Direct + s.Synthesized
}

// BuildRecords applies the strategy list to each document and collects the
// resulting effect records. Per-document progress is written to w; a
// document all strategies decline contributes nothing and the run continues.
func BuildRecords(docs []*types.StudyDocument, strategies []Strategy, w io.Writer) ([]types.EffectRecord, LoadSummary) {
	var records []types.EffectRecord
	var summary LoadSummary

	for _, doc := range docs {
		summary.Studies++

		applied := false
		for _, strat := range strategies {
			res := strat.Records(doc, w)
			if res.Declined {
				continue
			}
			applied = true
			records = append(records, res.Records...)
			summary.Unpairable += res.Unpairable

			switch strat.Name() {
			case "direct":
				summary.Direct += len(res.Records)
				fmt.Fprintf(w, "direct  %s (%d records)\n", doc.StudyID(), len(res.Records))
			case "arm-synthesis":
				summary.Synthesized += len(res.Records)
				fmt.Fprintf(w, "synthesized %s (%d records, %d unpairable)\n",
					doc.StudyID(), len(res.Records), res.Unpairable)
			}
			break
		}
		if !applied {
			fmt.Fprintf(w, "empty   %s: no effects or arm data\n", doc.StudyID())
		}
	}

	return records, summary
}

// directEffects converts the extractor's precomputed effect list (R2.3).
type directEffects struct{}

func (directEffects) Name() string { return "direct" }

func (directEffects) Records(doc *types.StudyDocument, _ io.Writer) StrategyResult {
	if len(doc.Effects) == 0 {
		return StrategyResult{Declined: true}
	}

	records := make([]types.EffectRecord, 0, len(doc.Effects))
	for _, e := range doc.Effects {
		records = append(records, recordFromEffect(doc, e))
	}
	return StrategyResult{Records: records}
}

func recordFromEffect(doc *types.StudyDocument, e types.EffectInput) types.EffectRecord {
	estimate := e.Estimate.Float64()
	ciLow := e.CILow.Float64()
	ciHigh := e.CIHigh.Float64()
	se := SEFromCI(ciLow, ciHigh)

	rec := types.EffectRecord{
		File:           doc.SourceFile,
		StudyID:        doc.StudyID(),
		Outcome:        strings.TrimSpace(e.Name),
		Type:           NormalizeType(e.Type),
		TimepointWeeks: e.TimepointWeeks.Float64(),
		Estimate:       estimate,
		CILow:          ciLow,
		CIHigh:         ciHigh,
		PValue:         e.PValue.Float64(),
		Adjusted:       e.Adjusted,
		Unit:           e.Unit,
		Notes:          e.Notes,
		SE:             se,
		Readiness:      Classify(estimate, se),
	}
	if doc.Metadata != nil {
		rec.Design = doc.Metadata.Design
		rec.Species = doc.Metadata.Species
	}
	return rec
}

// armSynthesis builds Hedges' g records from raw arm statistics when no
// precomputed effects exist (R3.2). Synthesized records are standardized
// mean differences in "SD units", so they are always unit-consistent.
type armSynthesis struct{}

func (armSynthesis) Name() string { return "arm-synthesis" }

const smdUnit = "SD units"

func (armSynthesis) Records(doc *types.StudyDocument, w io.Writer) StrategyResult {
	if len(doc.Arms) == 0 {
		return StrategyResult{Declined: true}
	}

	groups := groupArms(doc.Arms)
	var res StrategyResult

	for _, grp := range groups {
		intervention, control, ok := pairByRole(grp.arms)
		if !ok {
			res.Unpairable++
			fmt.Fprintf(w, "unpairable %s: %s at %s weeks\n", doc.StudyID(), grp.outcome, formatTimepoint(grp.timepoint))
			continue
		}

		g, err := HedgesG(followupSummary(intervention), followupSummary(control))
		if err != nil {
			res.Unpairable++
			fmt.Fprintf(w, "unpairable %s: %s at %s weeks: %v\n", doc.StudyID(), grp.outcome, formatTimepoint(grp.timepoint), err)
			continue
		}

		se := SEFromCI(g.CILow, g.CIHigh)
		adjusted := false
		rec := types.EffectRecord{
			File:           doc.SourceFile,
			StudyID:        doc.StudyID(),
			Outcome:        grp.outcome,
			Type:           types.EffectSMD,
			TimepointWeeks: grp.timepoint,
			Estimate:       g.G,
			CILow:          g.CILow,
			CIHigh:         g.CIHigh,
			PValue:         math.NaN(),
			Adjusted:       &adjusted,
			Unit:           smdUnit,
			Notes:          "Hedges' g synthesized from follow-up arm statistics",
			SE:             se,
			Readiness:      Classify(g.G, se),
		}
		if doc.Metadata != nil {
			rec.Design = doc.Metadata.Design
			rec.Species = doc.Metadata.Species
		}
		res.Records = append(res.Records, rec)
	}

	return res
}

// armGroup collects the arm rows of one (outcome, timepoint) key.
type armGroup struct {
	outcome   string
	timepoint float64
	arms      []types.ArmInput
}

// groupArms partitions arm rows by (outcome name, timepoint), matching the
// outcome case-insensitively. Groups come back in a deterministic order so
// identical inputs reproduce identical output.
func groupArms(arms []types.ArmInput) []armGroup {
	index := make(map[string]int)
	var groups []armGroup

	for _, arm := range arms {
		tp := arm.TimepointWeeks.Float64()
		key := strings.ToLower(strings.TrimSpace(arm.Name)) + "|" + formatTimepoint(tp)
		if i, ok := index[key]; ok {
			groups[i].arms = append(groups[i].arms, arm)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, armGroup{
			outcome:   strings.TrimSpace(arm.Name),
			timepoint: tp,
			arms:      []types.ArmInput{arm},
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].outcome != groups[j].outcome {
			return groups[i].outcome < groups[j].outcome
		}
		return formatTimepoint(groups[i].timepoint) < formatTimepoint(groups[j].timepoint)
	})
	return groups
}

// pairByRole finds exactly one intervention and one control arm in the
// group. Any other composition is unpairable.
func pairByRole(arms []types.ArmInput) (intervention, control types.ArmInput, ok bool) {
	var interventions, controls []types.ArmInput
	for _, arm := range arms {
		switch ClassifyArm(arm.ArmName) {
		case types.ArmIntervention:
			interventions = append(interventions, arm)
		case types.ArmControl:
			controls = append(controls, arm)
		}
	}
	if len(interventions) != 1 || len(controls) != 1 {
		return types.ArmInput{}, types.ArmInput{}, false
	}
	return interventions[0], controls[0], true
}

func followupSummary(arm types.ArmInput) ArmSummary {
	return ArmSummary{
		Mean: arm.FollowupMean.Float64(),
		SD:   arm.FollowupSD.Float64(),
		N:    arm.N.Float64(),
	}
}

func formatTimepoint(tp float64) string {
	if math.IsNaN(tp) {
		return "NA"
	}
	return fmt.Sprintf("%g", tp)
}
