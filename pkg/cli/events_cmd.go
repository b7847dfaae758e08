package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/api"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Record or list raw lineage events",
	}
	cmd.AddCommand(newEventsRecordCmd(opts))
	cmd.AddCommand(newEventsListCmd(opts))
	return cmd
}

func newEventsRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		file        string
		edge        api.EdgeEvent
		statementID string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record lineage events",
		Long: `Record a single table edge with --source/--target, or a batch from a JSON
file (use "-" for stdin) shaped as {"edges": [...], "columns": [...]}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req api.RecordEventsRequest
			switch {
			case file != "":
				if edge.Source != "" || edge.Target != "" {
					return fmt.Errorf("--file cannot be combined with --source/--target")
				}
				var err error
				if req, err = readEventsFile(cmd.InOrStdin(), file); err != nil {
					return err
				}
			case edge.Source != "" && edge.Target != "":
				edge.StatementID = statementID
				req.Edges = []api.EdgeEvent{edge}
			default:
				return fmt.Errorf("either --file or both --source and --target are required")
			}

			resp, err := opts.client.RecordEvents(cmd.Context(), req)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), resp)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d table and %d column events\n", len(resp.Edges), len(resp.Columns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON file with events ("-" reads stdin)`)
	cmd.Flags().StringVar(&edge.Source, "source", "", "Source table")
	cmd.Flags().StringVar(&edge.Target, "target", "", "Target table")
	cmd.Flags().StringVar(&edge.SourceType, "source-type", "", "Source entity type (default TABLE)")
	cmd.Flags().StringVar(&edge.TargetType, "target-type", "", "Target entity type (default TABLE)")
	cmd.Flags().StringVar(&statementID, "statement-id", "", "Statement that produced the edge")

	return cmd
}

func readEventsFile(stdin io.Reader, path string) (api.RecordEventsRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return api.RecordEventsRequest{}, fmt.Errorf("open events file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	var req api.RecordEventsRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return api.RecordEventsRequest{}, fmt.Errorf("parse events file: %w", err)
	}
	return req, nil
}

func newEventsListCmd(opts *rootOptions) *cobra.Command {
	var (
		table string
		page  domain.PageRequest
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded lineage events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var events []api.EdgeEvent
			next := page
			for {
				resp, err := opts.client.ListEvents(cmd.Context(), table, next)
				if err != nil {
					return err
				}
				events = append(events, resp.Data...)
				next.PageToken = resp.NextPageToken
				if !all || next.PageToken == "" {
					break
				}
			}

			if getOutputFormat(cmd) == outputJSON {
				return PrintJSON(cmd.OutOrStdout(), api.ListEventsResponse{Data: events, NextPageToken: next.PageToken})
			}
			renderEvents(cmd.OutOrStdout(), events)
			if next.PageToken != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "More results: --page-token %s\n", next.PageToken)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Only events where the table is source or target")
	cmd.Flags().IntVar(&page.MaxResults, "max-results", 0, "Page size (server default: 100)")
	cmd.Flags().StringVar(&page.PageToken, "page-token", "", "Token of the page to fetch")
	cmd.Flags().BoolVar(&all, "all", false, "Follow page tokens until every event is listed")

	return cmd
}
