package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/core/version"
	"github.com/artpar/flexdeploy/internal/shell/deploy"
	"github.com/artpar/flexdeploy/internal/shell/flex"
	"github.com/artpar/flexdeploy/internal/shell/mirror"
	"github.com/artpar/flexdeploy/internal/shell/progress"
	"github.com/artpar/flexdeploy/internal/shell/project"
	"github.com/artpar/flexdeploy/internal/shell/prompt"
	"github.com/artpar/flexdeploy/internal/shell/serverless"
	"github.com/artpar/flexdeploy/internal/shell/store"
)

type deployOptions struct {
	dir                string
	public             bool
	overwrite          bool
	disallowVersioning bool
	pilot              bool
}

func newDeployCmd(root *rootOptions) *cobra.Command {
	opts := &deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy [major|minor|patch|version|overwrite] [explicit-version]",
		Short: "Deploy the built plugin",
		Long: `Deploy uploads build/<plugin>.js and its source map under
/plugins/<plugin>/<version>/ and creates a new build and deployment.

The bump directive defaults to patch. "version" takes the explicit version as
a second argument; "overwrite" redeploys the current version in place.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bump := version.BumpPatch
			if len(args) > 0 {
				parsed, err := version.ParseBump(args[0])
				if err != nil {
					return err
				}
				bump = parsed
			}
			explicit := ""
			if len(args) > 1 {
				explicit = args[1]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := runDeploy(ctx, root, opts, deploy.Request{
				Bump:            bump,
				ExplicitVersion: explicit,
				Options: domain.DeployOptions{
					IsPublic:           opts.public,
					Overwrite:          opts.overwrite,
					DisallowVersioning: opts.disallowVersioning,
					IsPluginsPilot:     opts.pilot,
				},
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", ".", "plugin project directory")
	cmd.Flags().BoolVar(&opts.public, "public", false, "upload assets with public visibility")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace an existing deploy of the same version")
	cmd.Flags().BoolVar(&opts.disallowVersioning, "disallow-versioning", false, "always deploy as 0.0.0, overwriting in place")
	cmd.Flags().BoolVar(&opts.pilot, "pilot", false, "deploy through the plugins pilot API")
	return cmd
}

func runDeploy(ctx context.Context, root *rootOptions, opts *deployOptions, req deploy.Request, stderr io.Writer) (domain.DeployResult, error) {
	// The project .env may carry FLEXDEPLOY_ settings, so it is loaded first
	if err := project.LoadEnv(opts.dir); err != nil {
		return domain.DeployResult{}, &CLIError{Op: "load .env", Err: err, ExitCode: ExitConfigError}
	}

	cfg, err := LoadConfig(root.configPath)
	if err != nil {
		return domain.DeployResult{}, &CLIError{Op: "load config", Err: err, ExitCode: ExitConfigError}
	}
	if err := cfg.Validate(); err != nil {
		return domain.DeployResult{}, &CLIError{Op: "validate config", Err: err, ExitCode: ExitConfigError}
	}
	logger := SetupLogger(cfg)

	proj, err := project.Load(opts.dir)
	if err != nil {
		return domain.DeployResult{}, domain.NewDeployError("load project", domain.ErrPreconditionFailed, "", err)
	}

	creds := domain.NewCredentials(cfg.Auth.Username, cfg.Auth.Password)
	runtimeClient := serverless.NewClient(serverless.Config{
		BaseURL:      cfg.Endpoints.Serverless,
		UploadURL:    cfg.Endpoints.ServerlessUpload,
		AccountsURL:  cfg.Endpoints.Accounts,
		ServiceName:  cfg.Endpoints.ServiceName,
		Credentials:  creds,
		Timeout:      cfg.Endpoints.Timeout,
		PollInterval: cfg.Build.PollInterval,
		PollTimeout:  cfg.Build.PollTimeout,
	}, logger)
	flexClient := flex.NewClient(flex.Config{
		BaseURL:     cfg.Endpoints.Flex,
		PilotFlag:   cfg.Features.PilotFlag,
		Credentials: creds,
		Timeout:     cfg.Endpoints.Timeout,
	}, logger)

	deps := deploy.Deps{
		Project:     proj,
		Runtime:     runtimeClient,
		Accounts:    runtimeClient,
		Flags:       flexClient,
		UIConfig:    flexClient,
		Uploader:    runtimeClient,
		Builds:      runtimeClient,
		Deployments: runtimeClient,
		Prompter:    prompt.NewStdio(),
	}

	if cfg.Ledger.Enabled {
		ledger, err := openLedger(cfg)
		if err != nil {
			logger.Warn("deploy ledger unavailable", "error", err)
		} else {
			defer ledger.Close()
			deps.Ledger = ledger
		}
	}

	if cfg.Mirror.Enabled {
		archiver, err := mirror.New(cfg.Mirror.Archive(), logger)
		if err != nil {
			logger.Warn("bundle mirror unavailable", "error", err)
		} else {
			deps.Mirror = archiver
		}
	}

	if cfg.Features.PluginsPilot {
		req.Options.IsPluginsPilot = true
	}

	orchestrator := deploy.New(deps, deploy.Config{
		Credentials:         creds,
		AllowUnbundledReact: cfg.Features.AllowUnbundledReact,
	}, progress.New(stderr, logger), logger)

	return orchestrator.Deploy(ctx, req)
}

func openLedger(cfg *Config) (*store.SQLiteStore, error) {
	dsn, err := cfg.Ledger.LedgerPath()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(dsn)
}

func printResult(w io.Writer, result domain.DeployResult) {
	visibility := "private"
	if result.IsPublic {
		visibility = "public"
	}
	fmt.Fprintf(w, "Plugin URL:  %s\n", result.PluginURL)
	fmt.Fprintf(w, "Version:     %s\n", result.NextVersion)
	fmt.Fprintf(w, "Visibility:  %s\n", visibility)
	fmt.Fprintf(w, "Account:     %s\n", result.AccountSid)
	fmt.Fprintf(w, "Service:     %s\n", result.ServiceSid)
	fmt.Fprintf(w, "Environment: %s (%s)\n", result.EnvironmentSid, result.DomainName)
}
