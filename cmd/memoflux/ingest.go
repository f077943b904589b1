package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"memoflux/internal/memo"
)

var ingestTags []string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Import an image file as a new memo and queue its analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		m, err := a.inbox.Ingest(cmd.Context(), data, memo.SourceManual, ingestTags...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), m.ID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tag", nil, "tag to attach, repeatable")
}
