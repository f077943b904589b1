package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"memoflux/internal/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <memo-id>",
	Short: "Analyze one memo now and print the stored response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid memo id: %w", err)
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		resp, err := a.analyzer.Analyze(cmd.Context(), id)
		if err != nil {
			if kind := analysis.KindOf(err); kind != "" {
				return fmt.Errorf("analysis failed (%s): %w", kind, err)
			}
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}
