// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package impute backfills missing estimate/CI pairs in a study's effect
// list from raw arm-level measurements. The pass writes into a derived copy
// of the document; the loaded input is never mutated.
// Implements: prd008-imputation (R1-R4);
//
//	docs/ARCHITECTURE § Imputation.
package impute

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/meta-engine/internal/effects"
	"github.com/pdiddy/meta-engine/internal/studies"
	"github.com/pdiddy/meta-engine/pkg/types"
)

const (
	noteFilled   = "imputed 95% CI from raw arm data"
	noteAppended = "computed from raw (unadjusted)"
)

// drugLexicon names interventions common in the reviews this pipeline
// serves. An arm label containing one of these classifies as intervention
// when the declared labels and generic tokens fail (R2.2).
var drugLexicon = []string{
	"resveratrol",
	"metformin",
	"rapamycin",
	"semaglutide",
	"liraglutide",
}

// Summary holds counts from imputing one document (R4.2).
type Summary struct {
	// Filled counts existing effect records whose missing CI (and possibly
	// estimate) were backfilled.
	Filled int

	// Appended counts new unadjusted MD records added for outcomes with no
	// matching effect record.
	Appended int

	// Unpairable counts (outcome, timepoint) arm groups that could not
	// yield a clean intervention/control pair.
	Unpairable int
}

// Add accumulates another summary.
func (s *Summary) Add(other Summary) {
	s.Filled += other.Filled
	s.Appended += other.Appended
	s.Unpairable += other.Unpairable
}

// Study runs the imputation pass over one document and returns a derived
// copy plus counts. For each (outcome, timepoint) arm group it pairs arms
// on follow-up statistics, falling back to change scores, computes a mean
// difference with its 95% CI, and either fills a matching CI-less effect
// record or appends a new unadjusted one. Populated values are never
// overwritten (R3.2).
func Study(doc *types.StudyDocument, w io.Writer) (*types.StudyDocument, Summary) {
	out := doc.Clone()
	var summary Summary

	for _, grp := range groupArms(doc.Arms) {
		intervention, control, ok := classifyGroup(grp.arms, doc.Metadata)
		if !ok {
			summary.Unpairable++
			fmt.Fprintf(w, "unpairable %s: %s at %s weeks\n", doc.StudyID(), grp.outcome, formatTimepoint(grp.timepoint))
			continue
		}

		md, se, err := pairDifference(intervention, control)
		if err != nil {
			summary.Unpairable++
			fmt.Fprintf(w, "unpairable %s: %s at %s weeks: %v\n", doc.StudyID(), grp.outcome, formatTimepoint(grp.timepoint), err)
			continue
		}

		ciLow := md - effects.Z*se
		ciHigh := md + effects.Z*se

		if i := matchEffect(out.Effects, grp.outcome, grp.timepoint); i >= 0 {
			e := &out.Effects[i]
			if e.CILow.Valid || e.CIHigh.Valid {
				fmt.Fprintf(w, "kept    %s: %s (CI already present)\n", doc.StudyID(), grp.outcome)
				continue
			}
			e.CILow = types.Some(ciLow)
			e.CIHigh = types.Some(ciHigh)
			if !e.Estimate.Valid {
				e.Estimate = types.Some(md)
			}
			e.Notes = appendNote(e.Notes, noteFilled)
			summary.Filled++
			fmt.Fprintf(w, "filled  %s: %s at %s weeks\n", doc.StudyID(), grp.outcome, formatTimepoint(grp.timepoint))
			continue
		}

		adjusted := false
		out.Effects = append(out.Effects, types.EffectInput{
			Name:           grp.outcome,
			Type:           string(types.EffectMD),
			TimepointWeeks: optionalTimepoint(grp.timepoint),
			Estimate:       types.Some(md),
			CILow:          types.Some(ciLow),
			CIHigh:         types.Some(ciHigh),
			Adjusted:       &adjusted,
			Unit:           grp.units,
			Notes:          noteAppended,
		})
		summary.Appended++
		fmt.Fprintf(w, "appended %s: %s at %s weeks\n", doc.StudyID(), grp.outcome, formatTimepoint(grp.timepoint))
	}

	return out, summary
}

// BatchSummary holds counts from a directory-level imputation run.
type BatchSummary struct {
	Documents Summary
	Loaded    int
	Failed    int
}

// Studies imputes every document in inputDir and writes derived copies to
// outputDir under the same filenames. Unreadable documents are skipped; the
// batch continues (R4.1).
func Studies(inputDir, outputDir string, w io.Writer) (BatchSummary, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return BatchSummary{}, fmt.Errorf("creating output directory: %w", err)
	}

	docs, loadSummary, err := studies.LoadAll(inputDir, w)
	if err != nil {
		return BatchSummary{}, err
	}

	summary := BatchSummary{Loaded: loadSummary.Loaded, Failed: loadSummary.Failed}

	for _, doc := range docs {
		derived, docSummary := Study(doc, w)
		summary.Documents.Add(docSummary)

		outPath := filepath.Join(outputDir, doc.SourceFile)
		if err := studies.Write(outPath, derived); err != nil {
			fmt.Fprintf(w, "failed  %s: write error: %v\n", doc.SourceFile, err)
			summary.Failed++
			continue
		}
	}

	fmt.Fprintf(w, "\nloaded: %d, failed: %d, filled: %d, appended: %d, unpairable: %d\n",
		summary.Loaded, summary.Failed,
		summary.Documents.Filled, summary.Documents.Appended, summary.Documents.Unpairable)

	return summary, nil
}

// --- arm grouping and classification ---

type armGroup struct {
	outcome   string
	timepoint float64
	units     string
	arms      []types.ArmInput
}

func groupArms(arms []types.ArmInput) []armGroup {
	index := make(map[string]int)
	var groups []armGroup

	for _, arm := range arms {
		tp := arm.TimepointWeeks.Float64()
		key := strings.ToLower(strings.TrimSpace(arm.Name)) + "|" + formatTimepoint(tp)
		if i, ok := index[key]; ok {
			groups[i].arms = append(groups[i].arms, arm)
			if groups[i].units == "" {
				groups[i].units = arm.Units
			}
			continue
		}
		index[key] = len(groups)
		groups = append(groups, armGroup{
			outcome:   strings.TrimSpace(arm.Name),
			timepoint: tp,
			units:     arm.Units,
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

// classifyGroup assigns roles to the group's arms and requires exactly one
// intervention and one control. Declared exposure/comparator labels take
// precedence over the generic token sets and the drug lexicon. With exactly
// two arms where one matches control and the other stays unclassified, the
// other is assigned intervention (R2.3).
func classifyGroup(arms []types.ArmInput, meta *types.StudyMetadata) (intervention, control types.ArmInput, ok bool) {
	roles := make([]types.ArmRole, len(arms))
	for i, arm := range arms {
		roles[i] = classifyArm(arm.ArmName, meta)
	}

	if len(arms) == 2 {
		if roles[0] == types.ArmControl && roles[1] == types.ArmUnclassified {
			roles[1] = types.ArmIntervention
		} else if roles[1] == types.ArmControl && roles[0] == types.ArmUnclassified {
			roles[0] = types.ArmIntervention
		}
	}

	var interventions, controls []types.ArmInput
	for i, arm := range arms {
		switch roles[i] {
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

func classifyArm(label string, meta *types.StudyMetadata) types.ArmRole {
	l := strings.ToLower(strings.TrimSpace(label))

	if meta != nil {
		exposure := strings.ToLower(strings.TrimSpace(meta.Exposure))
		comparator := strings.ToLower(strings.TrimSpace(meta.Comparator))
		expMatch := exposure != "" && strings.Contains(l, exposure)
		compMatch := comparator != "" && strings.Contains(l, comparator)
		if expMatch && !compMatch {
			return types.ArmIntervention
		}
		if compMatch && !expMatch {
			return types.ArmControl
		}
	}

	if role := effects.ClassifyArm(label); role != types.ArmUnclassified {
		return role
	}

	for _, drug := range drugLexicon {
		if strings.Contains(l, drug) {
			return types.ArmIntervention
		}
	}
	return types.ArmUnclassified
}

// pairDifference computes the mean difference and its SE, preferring
// follow-up statistics and falling back to change scores (R3.1).
func pairDifference(intervention, control types.ArmInput) (md, se float64, err error) {
	md, se, err = effects.MeanDifference(followup(intervention), followup(control))
	if err == nil {
		return md, se, nil
	}
	md, se, err = effects.MeanDifference(change(intervention), change(control))
	if err != nil {
		return 0, 0, fmt.Errorf("no usable follow-up or change statistics")
	}
	return md, se, nil
}

func followup(arm types.ArmInput) effects.ArmSummary {
	return effects.ArmSummary{
		Mean: arm.FollowupMean.Float64(),
		SD:   arm.FollowupSD.Float64(),
		N:    arm.N.Float64(),
	}
}

func change(arm types.ArmInput) effects.ArmSummary {
	return effects.ArmSummary{
		Mean: arm.ChangeMean.Float64(),
		SD:   arm.ChangeSD.Float64(),
		N:    arm.N.Float64(),
	}
}

// matchEffect finds the first effect record with the same outcome name
// (case-insensitive, trimmed) and the same timepoint; two missing
// timepoints count as equal.
func matchEffect(list []types.EffectInput, outcome string, timepoint float64) int {
	for i, e := range list {
		if !strings.EqualFold(strings.TrimSpace(e.Name), outcome) {
			continue
		}
		if timepointEqual(e.TimepointWeeks.Float64(), timepoint) {
			return i
		}
	}
	return -1
}

func timepointEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

func optionalTimepoint(tp float64) types.OptionalFloat {
	if math.IsNaN(tp) {
		return types.OptionalFloat{}
	}
	return types.Some(tp)
}

func formatTimepoint(tp float64) string {
	if math.IsNaN(tp) {
		return "NA"
	}
	return fmt.Sprintf("%g", tp)
}
