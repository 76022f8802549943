package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hostmeta/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger <file>",
	Short: "Print a saved assumption ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedger,
}

func init() {
	ledgerCmd.Flags().String("depends", "", "only show entries that depend on this type")
	ledgerCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runLedger(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if err := checkFormat(format); err != nil {
		return err
	}
	depends, err := cmd.Flags().GetString("depends")
	if err != nil {
		return fmt.Errorf("failed to get depends flag: %w", err)
	}

	s, err := ledger.Load(args[0])
	if err != nil {
		return err
	}
	entries := s.Entries
	if depends != "" {
		entries = s.DependentsOf(depends)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		view := *s
		view.Entries = entries
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	renderSessionPretty(out, s, entries)
	return nil
}
