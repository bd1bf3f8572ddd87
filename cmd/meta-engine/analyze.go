// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/meta-engine/internal/effects"
	"github.com/pdiddy/meta-engine/internal/pool"
	"github.com/pdiddy/meta-engine/internal/report"
	"github.com/pdiddy/meta-engine/internal/studies"
	"github.com/pdiddy/meta-engine/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Normalize effect records and compute pooled random-effects estimates",
	Long: `Analyze loads extractor JSON study documents, builds normalized effect
records (from precomputed effects, or synthesized as Hedges' g from raw arm
statistics), gates each record for pooling readiness, groups ready records
by (outcome, effect type), and pools each group with the DerSimonian-Laird
random-effects model.

Outputs: effects.csv (per-record table with derived SE and readiness),
readiness.csv, and pooled_summary.csv with one row per observed group,
pooled or explicitly skipped. Use --format xlsx for a workbook instead.`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := analysisConfig(cmd)

	docs, summary, err := studies.LoadAll(cfg.InputDir, os.Stdout)
	if err != nil {
		return err
	}

	records, loadSummary := effects.BuildRecords(docs, effects.DefaultStrategies(), os.Stdout)
	fmt.Printf("\nstudies: %d, records: %d (direct: %d, synthesized: %d, unpairable: %d)\n",
		loadSummary.Studies, loadSummary.Total(),
		loadSummary.Direct, loadSummary.Synthesized, loadSummary.Unpairable)

	groups := pool.GroupRecords(records)
	pooled := pool.Pool(groups, cfg.MinK)

	if err := report.WriteTables(cfg.OutputDir, cfg.Format, records, pooled); err != nil {
		return err
	}
	if err := report.Export(cfg.OutputDir, cfg.Export, pooled); err != nil {
		return err
	}

	okCount := 0
	for _, p := range pooled {
		if p.PooledOK() {
			okCount++
		}
	}
	fmt.Printf("groups: %d, pooled: %d, skipped: %d\n", len(pooled), okCount, len(pooled)-okCount)
	fmt.Printf("Tables written to %s\n", cfg.OutputDir)

	if summary.HasFailures() {
		return fmt.Errorf("%d document(s) failed to load", summary.Failed)
	}
	return nil
}

// analysisConfig resolves settings: explicit flag, then config file, then default.
func analysisConfig(cmd *cobra.Command) types.AnalysisConfig {
	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		input = viper.GetString("analysis.input_dir")
	}
	if input == "" {
		input = "extracted"
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = viper.GetString("analysis.output_dir")
	}
	if output == "" {
		output = "analysis"
	}

	minK, _ := cmd.Flags().GetInt("min-k")
	if minK <= 0 {
		minK = viper.GetInt("analysis.min_k")
	}
	if minK <= 0 {
		minK = pool.DefaultMinK
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = viper.GetString("analysis.format")
	}

	export, _ := cmd.Flags().GetString("export")
	if export == "" {
		export = viper.GetString("analysis.export")
	}

	return types.AnalysisConfig{
		InputDir:  input,
		OutputDir: output,
		MinK:      minK,
		Format:    types.ReportFormat(format),
		Export:    types.ExportFormat(export),
	}
}

func init() {
	analyzeCmd.Flags().String("input", "", "directory of extractor JSON documents (default \"extracted\")")
	analyzeCmd.Flags().String("output", "", "directory for analysis tables (default \"analysis\")")
	analyzeCmd.Flags().Int("min-k", 0, "minimum ready records per (outcome, type) group to pool (default 2)")
	analyzeCmd.Flags().String("format", "", "table format: csv or xlsx (default csv)")
	analyzeCmd.Flags().String("export", "", "additionally export the pooled summary: yaml or json")

	rootCmd.AddCommand(analyzeCmd)
}
