// Package cli implements the lineage command-line client.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == outputJSON {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
			}
			_ = PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// rootOptions carries the resolved global settings to subcommands.
type rootOptions struct {
	host     string
	output   string
	profile  string
	timeout  time.Duration
	daysBack int
	client   *Client
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "lineage",
		Short:         "Lineage service CLI",
		Long:          "Command-line interface for querying table lineage, impact and the lineage cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			p, err := cfg.ActiveProfile(opts.profile)
			if err != nil {
				return err
			}

			// Apply precedence: flag > env > profile > default
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("LINEAGE_HOST"); v != "" {
					opts.host = v
				} else if p.Host != "" {
					opts.host = p.Host
				}
			}
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("LINEAGE_OUTPUT"); v != "" {
					opts.output = v
				} else if p.Output != "" {
					opts.output = p.Output
				} else {
					opts.output = defaultOutputFormat()
				}
				// Keep the flag in sync so getOutputFormat sees the resolved value.
				_ = cmd.Root().PersistentFlags().Set("output", opts.output)
			}
			opts.daysBack = p.DaysBack

			if err := validateOutputFormat(opts.output); err != nil {
				return err
			}
			if err := validateHostURL(opts.host); err != nil {
				return err
			}
			opts.client = NewClient(opts.host, opts.timeout)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.host, "host", "http://localhost:8080", "Lineage API host URL")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", DefaultTimeout, "Request timeout")

	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newImpactCmd(opts))
	rootCmd.AddCommand(newCacheCmd(opts))
	rootCmd.AddCommand(newEventsCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
