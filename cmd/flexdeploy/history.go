package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/shell/store"
)

type historyOptions struct {
	output string
	plugin string
	limit  int
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past deploys recorded on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(root.configPath)
			if err != nil {
				return &CLIError{Op: "load config", Err: err, ExitCode: ExitConfigError}
			}

			ledger, err := openLedger(cfg)
			if err != nil {
				return &CLIError{Op: "open ledger", Err: err, ExitCode: ExitLedgerError}
			}
			defer ledger.Close()

			records, err := ledger.List(cmd.Context(), store.ListOptions{Plugin: opts.plugin, Limit: opts.limit})
			if err != nil {
				return &CLIError{Op: "list deploys", Err: err, ExitCode: ExitLedgerError}
			}

			return renderHistory(cmd.OutOrStdout(), opts.output, records)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
	cmd.Flags().StringVar(&opts.plugin, "plugin", "", "only show deploys of this plugin")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of deploys to show")
	return cmd
}

func renderHistory(w io.Writer, format string, records []domain.DeployRecord) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(records)

	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tPLUGIN\tVERSION\tVISIBILITY\tURL")
		for _, r := range records {
			visibility := "private"
			if r.IsPublic {
				visibility = "public"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.CreatedAt.Local().Format(time.DateTime), r.Plugin, r.Version, visibility, r.PluginURL)
		}
		return tw.Flush()

	default:
		return &CLIError{
			Op:       "render history",
			Err:      fmt.Errorf("unknown output format %q", format),
			ExitCode: ExitInvalidArgument,
		}
	}
}
