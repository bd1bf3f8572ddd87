// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReportFormat selects the tabular output format.
// Per prd007-analysis R6.2-R6.3.
type ReportFormat string

const (
	FormatCSV  ReportFormat = "csv"
	FormatXLSX ReportFormat = "xlsx"
)

// ExportFormat selects the optional pooled-summary export format.
type ExportFormat string

const (
	ExportNone ExportFormat = ""
	ExportYAML ExportFormat = "yaml"
	ExportJSON ExportFormat = "json"
)

// AnalysisConfig holds settings for the analysis stage.
// Per prd007-analysis R5.2, R6.1-R6.4.
type AnalysisConfig struct {
	// InputDir is the directory of extractor JSON documents.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// OutputDir is the directory for the analysis tables.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MinK is the minimum number of Ready records required to pool a
	// (outcome, type) group (default 2).
	MinK int `json:"min_k" yaml:"min_k"`

	// Format selects the table format: csv or xlsx.
	Format ReportFormat `json:"format" yaml:"format"`

	// Export selects an optional pooled-summary export: yaml or json.
	Export ExportFormat `json:"export,omitempty" yaml:"export,omitempty"`
}

// ImputationConfig holds settings for the imputation stage.
// Per prd008-imputation R4.1.
type ImputationConfig struct {
	// InputDir is the directory of extractor JSON documents.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// OutputDir is the directory for the derived (imputed) copies.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}
