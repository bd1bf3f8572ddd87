// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the meta-engine CLI.
// Implements: prd007-analysis, prd008-imputation (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the meta-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "meta-engine",
	Short: "Effect-size normalization and random-effects pooling for systematic reviews",
	Long: `meta-engine aggregates per-study treatment-effect records extracted from
biomedical literature, normalizes them onto comparable statistical scales,
imputes missing uncertainty from raw per-arm measurements, and computes
pooled DerSimonian-Laird random-effects estimates with heterogeneity
statistics.

Upstream collaborators (search, screening, PDF extraction) produce the JSON
study documents this CLI consumes; downstream rendering consumes the tables
it writes. Each stage is a subcommand: impute and analyze.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./meta-engine.yaml or ~/.config/meta-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("meta-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "meta-engine"))
		}
	}

	viper.SetEnvPrefix("META_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
