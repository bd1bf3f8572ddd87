// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EffectType is the canonical code for an effect-size scale.
// Unrecognized labels pass through uppercased as their own code.
// Per prd007-analysis R2.1.
type EffectType string

const (
	EffectMD    EffectType = "MD"
	EffectSMD   EffectType = "SMD"
	EffectRR    EffectType = "RR"
	EffectOR    EffectType = "OR"
	EffectHR    EffectType = "HR"
	EffectLogRR EffectType = "LOGRR"
	EffectLogOR EffectType = "LOGOR"
	EffectLogHR EffectType = "LOGHR"
)

// Readiness classifies whether an effect record can enter pooling.
// Per prd007-analysis R4.1-R4.3.
type Readiness string

const (
	// Ready: finite estimate and a derivable standard error.
	Ready Readiness = "Ready"

	// NotReadyNoEstimate: the estimate is missing or unparsable. Reported
	// before the CI check.
	NotReadyNoEstimate Readiness = "No effect estimate"

	// NotReadyMissingCI: estimate present, but no usable confidence interval.
	NotReadyMissingCI Readiness = "Missing CI (or unparsable)"
)

// ArmRole classifies a trial arm by its label.
// Per prd007-analysis R3.3, prd008-imputation R2.1.
type ArmRole string

const (
	ArmIntervention ArmRole = "intervention"
	ArmControl      ArmRole = "control"
	ArmUnclassified ArmRole = "unclassified"
)

// EffectRecord is one normalized per-study effect. Records are built once
// (from the extractor's effect list or synthesized from arm statistics) and
// read-only afterwards; the pooling stage consumes them exactly once per run.
// Missing numerics are NaN. Per prd007-analysis R2-R4.
type EffectRecord struct {
	// File is the source document basename.
	File string `json:"file" yaml:"file"`

	// StudyID identifies the contributing study.
	StudyID string `json:"study_id" yaml:"study_id"`

	// Design and Species are carried from study metadata for the report.
	Design  string `json:"design,omitempty" yaml:"design,omitempty"`
	Species string `json:"species,omitempty" yaml:"species,omitempty"`

	// Outcome is the outcome name.
	Outcome string `json:"outcome" yaml:"outcome"`

	// Type is the canonical effect-type code.
	Type EffectType `json:"type" yaml:"type"`

	// TimepointWeeks is the measurement timepoint in weeks (NaN if unknown).
	TimepointWeeks float64 `json:"timepoint_weeks" yaml:"timepoint_weeks"`

	// Estimate is the effect estimate on the scale implied by Type.
	Estimate float64 `json:"estimate" yaml:"estimate"`

	// CILow and CIHigh are the 95% confidence bounds.
	CILow  float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh float64 `json:"ci_high" yaml:"ci_high"`

	// PValue is the reported p-value (NaN if unknown).
	PValue float64 `json:"p_value" yaml:"p_value"`

	// Adjusted reports covariate adjustment; nil when the source did not say.
	Adjusted *bool `json:"adjusted,omitempty" yaml:"adjusted,omitempty"`

	// Unit is the measurement unit. Synthesized standardized records use
	// "SD units".
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Notes is free text carried from the source or added at synthesis.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`

	// SE is the standard error derived from the confidence interval
	// (NaN when not derivable).
	SE float64 `json:"se" yaml:"se"`

	// Readiness is the pooling-eligibility classification.
	Readiness Readiness `json:"readiness" yaml:"readiness"`
}

// IsReady reports whether the record passes the readiness gate.
func (r EffectRecord) IsReady() bool {
	return r.Readiness == Ready
}

// PooledResult is one row of the pooled summary: the random-effects pool of
// one (outcome, effect type) group, or an explicit skip. Exactly one result
// is produced per observed group per run; failure is represented, never
// omitted. Per prd007-analysis R5.5, R5.6.
type PooledResult struct {
	// Outcome and Type identify the group.
	Outcome string     `json:"outcome" yaml:"outcome"`
	Type    EffectType `json:"type" yaml:"type"`

	// K is the number of Ready records actually pooled.
	K int `json:"k" yaml:"k"`

	// Pooled, CILow, CIHigh hold the random-effects estimate and its 95%
	// interval. NaN when the group was skipped.
	Pooled float64 `json:"pooled" yaml:"pooled"`
	CILow  float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh float64 `json:"ci_high" yaml:"ci_high"`

	// Tau2 is the DerSimonian-Laird between-study variance.
	Tau2 float64 `json:"tau2" yaml:"tau2"`

	// I2 is the heterogeneity percentage.
	I2 float64 `json:"i2" yaml:"i2"`

	// Unit is the group's common unit, when one exists.
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Note is "OK" on success, or the skip reason.
	Note string `json:"note" yaml:"note"`
}

// Pooled reports whether the group pooled successfully.
func (p PooledResult) PooledOK() bool {
	return p.Note == "OK"
}
