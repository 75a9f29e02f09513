// Nexis - Behavioral credit trust scoring for people without a credit file.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command nexisctl scores behavioral records offline and issues lender tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags)
var Version = "dev"

var (
	outputFormat string
	subjectFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "nexisctl",
	Short: "Offline tooling for the Nexis scoring engine",
	Long: `nexisctl runs the Nexis scoring pipeline locally against a record file.

Records are read from JSON or YAML. A file may hold a bare record or an
object with subjectId, documentationMonths and record keys. Use "-" to
read from stdin.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&subjectFlag, "subject", "", "subject id when the file does not name one")

	rootCmd.AddCommand(scoreCmd, explainCmd, planCmd, rulesCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
