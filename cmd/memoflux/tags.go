package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"memoflux/internal/tags"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Tag registry maintenance",
}

var tagsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove registry entries no memo uses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		removed, err := a.tags.Sweep(cmd.Context(), a.memos)
		if err != nil {
			return err
		}
		for _, n := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var (
	listRecent bool
	listLimit  int
)

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		var rows []tags.Entry
		if listRecent {
			rows, err = a.tags.Recent(cmd.Context(), listLimit)
		} else {
			rows, err = a.tags.MostUsed(cmd.Context(), listLimit)
		}
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tUSES\tLAST USED")
		for _, e := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.UsageCount, e.LastUsedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	tagsListCmd.Flags().BoolVar(&listRecent, "recent", false, "order by last use instead of usage count")
	tagsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of tags")
	tagsCmd.AddCommand(tagsSweepCmd, tagsListCmd)
}
