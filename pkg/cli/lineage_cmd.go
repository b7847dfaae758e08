package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newGetCmd(opts *rootOptions) *cobra.Command {
	var q LineageQuery

	cmd := &cobra.Command{
		Use:   "get <table>",
		Short: "Show the lineage graph of a table",
		Example: `  lineage get main.sales.orders
  lineage get main.sales.orders --direction upstream --depth 5
  lineage get main.sales.orders --include-columns -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.DaysBack == 0 {
				q.DaysBack = opts.daysBack
			}
			resp, err := opts.client.GetLineage(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), resp)
			}
			renderLineage(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	addLineageQueryFlags(cmd.Flags(), &q)

	return cmd
}

func addLineageQueryFlags(fs *pflag.FlagSet, q *LineageQuery) {
	fs.StringVarP(&q.Direction, "direction", "d", "", "Traversal direction: upstream, downstream or both (server default: downstream)")
	fs.IntVar(&q.Depth, "depth", 0, "Maximum traversal depth, 1-10 (server default: 3)")
	fs.IntVar(&q.DaysBack, "days-back", 0, "Only consider lineage observed in the last N days")
	fs.BoolVar(&q.IncludeColumns, "include-columns", false, "Include column-level lineage of the table")
}

func newImpactCmd(opts *rootOptions) *cobra.Command {
	var (
		depth        int
		includeGraph bool
	)

	cmd := &cobra.Command{
		Use:   "impact <table>",
		Short: "Show the entities affected by a change to a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.client.GetImpact(cmd.Context(), args[0], depth, includeGraph)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			renderImpact(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum impact depth, 1-10 (server default: 3)")
	cmd.Flags().BoolVar(&includeGraph, "include-graph", false, "Include the impact subgraph (json output)")

	return cmd
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the server's lineage cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show lineage cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := opts.client.CacheStats(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), stats)
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached lineage result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client.ClearCache(cmd.Context()); err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{"status": "ok"})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Lineage cache cleared")
			return nil
		},
	})

	return cmd
}
