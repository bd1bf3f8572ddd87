// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes the per-record effects table, the readiness table,
// and the pooled summary as flat tabular files. The forest-plot collaborator
// consumes effects.csv together with pooled_summary.csv.
// Implements: prd007-analysis (R6);
//
//	docs/ARCHITECTURE § Reporting.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdiddy/meta-engine/pkg/types"
)

const (
	effectsFile   = "effects.csv"
	readinessFile = "readiness.csv"
	pooledFile    = "pooled_summary.csv"
)

var (
	effectsHeader = []string{
		"file", "study_id", "design", "species", "outcome", "type",
		"timepoint_weeks", "estimate", "ci_low", "ci_high", "p_value",
		"adjusted", "unit", "notes", "SE", "readiness",
	}
	readinessHeader = []string{
		"file", "study_id", "outcome", "type", "timepoint_weeks", "readiness",
	}
	pooledHeader = []string{
		"outcome", "type", "k", "pooled", "ci_low", "ci_high", "tau2", "I2",
		"unit", "note",
	}
)

// WriteTables writes the analysis tables to outDir in the requested format.
func WriteTables(outDir string, format types.ReportFormat, records []types.EffectRecord, pooled []types.PooledResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	switch format {
	case types.FormatCSV, "":
		return writeCSVTables(outDir, records, pooled)
	case types.FormatXLSX:
		return writeWorkbook(outDir, records, pooled)
	default:
		return fmt.Errorf("unsupported format %q: use csv or xlsx", format)
	}
}

func writeCSVTables(outDir string, records []types.EffectRecord, pooled []types.PooledResult) error {
	if err := writeCSV(filepath.Join(outDir, effectsFile), effectsHeader, effectsRows(records)); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(outDir, readinessFile), readinessHeader, readinessRows(records)); err != nil {
		return err
	}
	return writeCSV(filepath.Join(outDir, pooledFile), pooledHeader, pooledRows(pooled))
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

func effectsRows(records []types.EffectRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.File, r.StudyID, r.Design, r.Species, r.Outcome, string(r.Type),
			fmtFloat(r.TimepointWeeks), fmtFloat(r.Estimate),
			fmtFloat(r.CILow), fmtFloat(r.CIHigh), fmtFloat(r.PValue),
			fmtBool(r.Adjusted), r.Unit, r.Notes,
			fmtFloat(r.SE), string(r.Readiness),
		})
	}
	return rows
}

func readinessRows(records []types.EffectRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.File, r.StudyID, r.Outcome, string(r.Type),
			fmtFloat(r.TimepointWeeks), string(r.Readiness),
		})
	}
	return rows
}

func pooledRows(pooled []types.PooledResult) [][]string {
	rows := make([][]string, 0, len(pooled))
	for _, p := range pooled {
		rows = append(rows, []string{
			p.Outcome, string(p.Type), strconv.Itoa(p.K),
			fmtFloat(p.Pooled), fmtFloat(p.CILow), fmtFloat(p.CIHigh),
			fmtFloat(p.Tau2), fmtFloat(p.I2),
			p.Unit, p.Note,
		})
	}
	return rows
}

// fmtFloat renders a float for tabular output; missing values are empty cells.
func fmtFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func fmtBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
