// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/meta-engine/internal/impute"
	"github.com/pdiddy/meta-engine/pkg/types"
)

var imputeCmd = &cobra.Command{
	Use:   "impute",
	Short: "Backfill missing confidence intervals from raw arm statistics",
	Long: `Impute runs a batch pass over each study's arm-level measurements. For
every (outcome, timepoint) group with a clean intervention/control pair it
computes a mean difference and its 95% CI, fills effect records whose CI is
missing, and appends new unadjusted records where none exist. Populated
values are never overwritten.

Derived copies are written to the output directory; input documents are
never modified in place. Feed the output directory to analyze.`,
	RunE: runImpute,
}

func runImpute(cmd *cobra.Command, args []string) error {
	cfg := imputationConfig(cmd)

	summary, err := impute.Studies(cfg.InputDir, cfg.OutputDir, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("Derived copies written to %s\n", cfg.OutputDir)
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed", summary.Failed)
	}
	return nil
}

// imputationConfig resolves settings: explicit flag, then config file, then default.
func imputationConfig(cmd *cobra.Command) types.ImputationConfig {
	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		input = viper.GetString("imputation.input_dir")
	}
	if input == "" {
		input = "extracted"
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = viper.GetString("imputation.output_dir")
	}
	if output == "" {
		output = "imputed"
	}

	return types.ImputationConfig{InputDir: input, OutputDir: output}
}

func init() {
	imputeCmd.Flags().String("input", "", "directory of extractor JSON documents (default \"extracted\")")
	imputeCmd.Flags().String("output", "", "directory for derived copies (default \"imputed\")")

	rootCmd.AddCommand(imputeCmd)
}
