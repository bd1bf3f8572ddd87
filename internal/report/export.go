// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/meta-engine/pkg/types"
)

// ExportEntry is one pooled-summary row in a form that serializes cleanly:
// numeric fields are pointers so a skipped group exports nulls, not NaN.
type ExportEntry struct {
	Outcome string   `json:"outcome" yaml:"outcome"`
	Type    string   `json:"type" yaml:"type"`
	K       int      `json:"k" yaml:"k"`
	Pooled  *float64 `json:"pooled" yaml:"pooled"`
	CILow   *float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh  *float64 `json:"ci_high" yaml:"ci_high"`
	Tau2    *float64 `json:"tau2" yaml:"tau2"`
	I2      *float64 `json:"i2" yaml:"i2"`
	Unit    string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Note    string   `json:"note" yaml:"note"`
}

// Export writes the pooled summary to outDir as pooled_summary.yaml or
// pooled_summary.json (R6.4).
func Export(outDir string, format types.ExportFormat, pooled []types.PooledResult) error {
	entries := exportEntries(pooled)

	switch format {
	case types.ExportYAML:
		data, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return os.WriteFile(filepath.Join(outDir, "pooled_summary.yaml"), data, 0o644)
	case types.ExportJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return os.WriteFile(filepath.Join(outDir, "pooled_summary.json"), data, 0o644)
	case types.ExportNone:
		return nil
	default:
		return fmt.Errorf("unsupported export format %q: use yaml or json", format)
	}
}

func exportEntries(pooled []types.PooledResult) []ExportEntry {
	entries := make([]ExportEntry, len(pooled))
	for i, p := range pooled {
		entries[i] = ExportEntry{
			Outcome: p.Outcome,
			Type:    string(p.Type),
			K:       p.K,
			Pooled:  floatPtr(p.Pooled),
			CILow:   floatPtr(p.CILow),
			CIHigh:  floatPtr(p.CIHigh),
			Tau2:    floatPtr(p.Tau2),
			I2:      floatPtr(p.I2),
			Unit:    p.Unit,
			Note:    p.Note,
		}
	}
	return entries
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
