package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "flexdeploy",
		Short: "Publish front-end plugins to a hosted serverless runtime",
		Long: `flexdeploy uploads a built plugin bundle to the hosted runtime's asset
storage and rolls the service environment onto a new build that serves it.

Credentials are read from FLEXDEPLOY_AUTH_USERNAME and FLEXDEPLOY_AUTH_PASSWORD,
the config file, or the plugin project's .env file.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")

	cmd.AddCommand(newDeployCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	return cmd
}
