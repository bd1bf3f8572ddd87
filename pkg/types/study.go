// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
)

// StudyMetadata holds the study-level fields of an extraction document.
// Per prd007-analysis R1.1.
type StudyMetadata struct {
	// StudyID is the extractor-assigned identifier, when present.
	StudyID string `json:"study_id,omitempty" yaml:"study_id,omitempty"`

	// DOI is the article DOI, used as an identifier fallback.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the article title, used as a last-resort identifier.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Design is the study design (e.g. "RCT", "cohort").
	Design string `json:"design,omitempty" yaml:"design,omitempty"`

	// Species is the study population species.
	Species string `json:"species,omitempty" yaml:"species,omitempty"`

	// NTotal is the total number of participants.
	NTotal OptionalFloat `json:"n_total,omitempty" yaml:"n_total,omitempty"`

	// Exposure is the declared intervention label, used to classify arms
	// during imputation (prd008-imputation R2.2).
	Exposure string `json:"exposure,omitempty" yaml:"exposure,omitempty"`

	// Comparator is the declared control label.
	Comparator string `json:"comparator,omitempty" yaml:"comparator,omitempty"`
}

// EffectInput is one precomputed effect estimate as the extractor reports it.
// Numeric fields are explicitly optional; absence degrades to readiness
// failure downstream, never to a load error. Per prd007-analysis R1.2.
type EffectInput struct {
	// Name is the outcome name (e.g. "HbA1c").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type is the free-text effect-type label, canonicalized at load time.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// TimepointWeeks is the measurement timepoint in weeks.
	TimepointWeeks OptionalFloat `json:"timepoint_weeks" yaml:"timepoint_weeks"`

	// Estimate is the effect estimate on the scale implied by Type.
	Estimate OptionalFloat `json:"estimate" yaml:"estimate"`

	// CILow and CIHigh are the symmetric 95% confidence bounds.
	CILow  OptionalFloat `json:"ci_low" yaml:"ci_low"`
	CIHigh OptionalFloat `json:"ci_high" yaml:"ci_high"`

	// PValue is the reported p-value, carried through unused.
	PValue OptionalFloat `json:"p_value" yaml:"p_value"`

	// Adjusted reports whether the estimate is covariate-adjusted.
	// Nil means the extractor did not say.
	Adjusted *bool `json:"adjusted,omitempty" yaml:"adjusted,omitempty"`

	// Unit is the measurement unit (e.g. "%", "mmol/L").
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Subgroup is an optional subgroup label.
	Subgroup string `json:"subgroup,omitempty" yaml:"subgroup,omitempty"`

	// Notes is free model/context text from the extractor.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ArmInput is one raw per-arm measurement at one (outcome, timepoint).
// Per prd007-analysis R1.2, prd008-imputation R1.1.
type ArmInput struct {
	// Name is the outcome name this measurement belongs to.
	Name string `json:"name" yaml:"name" validate:"required"`

	// TimepointWeeks is the measurement timepoint in weeks.
	TimepointWeeks OptionalFloat `json:"timepoint_weeks" yaml:"timepoint_weeks"`

	// ArmName is the arm label as printed in the paper (e.g. "placebo").
	ArmName string `json:"arm_name" yaml:"arm_name" validate:"required"`

	// N is the arm sample size.
	N OptionalFloat `json:"n" yaml:"n"`

	// Baseline, follow-up, and change-score summary statistics.
	BaselineMean OptionalFloat `json:"baseline_mean" yaml:"baseline_mean"`
	BaselineSD   OptionalFloat `json:"baseline_sd" yaml:"baseline_sd"`
	FollowupMean OptionalFloat `json:"followup_mean" yaml:"followup_mean"`
	FollowupSD   OptionalFloat `json:"followup_sd" yaml:"followup_sd"`
	ChangeMean   OptionalFloat `json:"change_mean" yaml:"change_mean"`
	ChangeSD     OptionalFloat `json:"change_sd" yaml:"change_sd"`

	// Units is the measurement unit label.
	Units string `json:"units,omitempty" yaml:"units,omitempty"`
}

// StudyDocument is one extractor JSON document: study metadata plus either
// a precomputed effect list, raw arm-level rows, or both.
// Per prd007-analysis R1.1-R1.4.
type StudyDocument struct {
	// SourceFile is the basename of the JSON file this document came from.
	// Set by the loader, not part of the document itself.
	SourceFile string `json:"-" yaml:"-"`

	// Metadata holds the study-level fields. Required.
	Metadata *StudyMetadata `json:"study_metadata" yaml:"study_metadata" validate:"required"`

	// Effects is the precomputed effect list, possibly empty.
	Effects []EffectInput `json:"effects_by_outcome,omitempty" yaml:"effects_by_outcome,omitempty" validate:"dive"`

	// Arms is the arm-level raw measurement list, possibly empty.
	Arms []ArmInput `json:"raw_arm_data,omitempty" yaml:"raw_arm_data,omitempty" validate:"dive"`
}

// StudyID returns the best available study identifier: study_id, then DOI,
// then title, then the source filename without extension.
func (d *StudyDocument) StudyID() string {
	if d.Metadata != nil {
		if d.Metadata.StudyID != "" {
			return d.Metadata.StudyID
		}
		if d.Metadata.DOI != "" {
			return d.Metadata.DOI
		}
		if d.Metadata.Title != "" {
			return d.Metadata.Title
		}
	}
	base := filepath.Base(d.SourceFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Clone returns a deep copy of the document. The imputation pass writes its
// backfills into a clone so the loaded input is never mutated.
func (d *StudyDocument) Clone() *StudyDocument {
	out := &StudyDocument{SourceFile: d.SourceFile}
	if d.Metadata != nil {
		meta := *d.Metadata
		out.Metadata = &meta
	}
	if d.Effects != nil {
		out.Effects = make([]EffectInput, len(d.Effects))
		copy(out.Effects, d.Effects)
		for i, e := range d.Effects {
			if e.Adjusted != nil {
				adj := *e.Adjusted
				out.Effects[i].Adjusted = &adj
			}
		}
	}
	if d.Arms != nil {
		out.Arms = make([]ArmInput, len(d.Arms))
		copy(out.Arms, d.Arms)
	}
	return out
}
