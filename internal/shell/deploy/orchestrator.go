// Package deploy publishes a built plugin to the hosted runtime.
//
// A deploy is a linear sequence of stages. Each stage either feeds the next
// or aborts the whole run with a *domain.DeployError. Nothing is retried and
// nothing is rolled back: assets or builds created before a failure remain.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/flexdeploy/internal/core/assets"
	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/core/validation"
	"github.com/artpar/flexdeploy/internal/core/version"
	"github.com/artpar/flexdeploy/internal/shell/mirror"
	"github.com/artpar/flexdeploy/internal/shell/progress"
)

// =============================================================================
// Configuration
// =============================================================================

// Deps are the collaborators an Orchestrator drives. Ledger and Mirror are
// optional.
type Deps struct {
	Project     ProjectFS
	Runtime     RuntimeReader
	Accounts    AccountReader
	Flags       FlagReader
	UIConfig    ConfigurationClient
	Uploader    AssetUploader
	Builds      BuildWriter
	Deployments DeploymentWriter
	Prompter    Prompter
	Ledger      Ledger
	Mirror      Mirror
}

// Config holds process-wide toggles.
type Config struct {
	// Credentials decide how the owning account is resolved.
	Credentials domain.Credentials

	// AllowUnbundledReact turns on the host UI compatibility check.
	AllowUnbundledReact bool
}

// Request is one deploy invocation.
type Request struct {
	Bump            version.Bump
	ExplicitVersion string
	Options         domain.DeployOptions
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs deploys.
type Orchestrator struct {
	project     ProjectFS
	runtime     RuntimeReader
	accounts    AccountReader
	flags       FlagReader
	uiConfig    ConfigurationClient
	uploader    AssetUploader
	builds      BuildWriter
	deployments DeploymentWriter
	prompter    Prompter
	ledger      Ledger
	mirror      Mirror

	creds               domain.Credentials
	allowUnbundledReact bool

	progress *progress.Reporter
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, reporter *progress.Reporter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = progress.New(nil, logger)
	}
	return &Orchestrator{
		project:             deps.Project,
		runtime:             deps.Runtime,
		accounts:            deps.Accounts,
		flags:               deps.Flags,
		uiConfig:            deps.UIConfig,
		uploader:            deps.Uploader,
		builds:              deps.Builds,
		deployments:         deps.Deployments,
		prompter:            deps.Prompter,
		ledger:              deps.Ledger,
		mirror:              deps.Mirror,
		creds:               cfg.Credentials,
		allowUnbundledReact: cfg.AllowUnbundledReact,
		progress:            reporter,
		logger:              logger.With("component", "deploy"),
		now:                 time.Now,
	}
}

// Deploy publishes the plugin and returns the outcome.
func (o *Orchestrator) Deploy(ctx context.Context, req Request) (domain.DeployResult, error) {
	plugin := o.project.PluginName()

	resolution, err := version.Resolve(o.project.CurrentVersion(), req.Bump, req.ExplicitVersion, req.Options.DisallowVersioning)
	if err != nil {
		return domain.DeployResult{}, err
	}
	nextVersion := resolution.Version
	overwrite := req.Options.Overwrite || resolution.ForceOverwrite

	logger := o.logger.With("plugin", plugin, "version", nextVersion)
	logger.Info("starting deploy", "overwrite", overwrite, "public", req.Options.IsPublic)

	// Preflight
	if ok, reason := validation.ValidatePluginName(plugin); !ok {
		return domain.DeployResult{}, domain.NewDeployError("preflight", domain.ErrPreconditionFailed, reason, nil)
	}
	bundlePath := o.project.BundlePath()
	sourceMapPath := o.project.SourceMapPath()
	if !o.project.CheckFilesExist(bundlePath) {
		return domain.DeployResult{}, domain.NewDeployError("preflight", domain.ErrPreconditionFailed,
			fmt.Sprintf("bundle %s not found; run build first", bundlePath), nil)
	}

	// Pilot gate
	if req.Options.IsPluginsPilot {
		if err := o.checkPilot(ctx); err != nil {
			return domain.DeployResult{}, err
		}
	}

	// Runtime discovery
	runtime, err := o.runtime.GetRuntime(ctx)
	if err != nil {
		return domain.DeployResult{}, discoveryError(err)
	}
	if !runtime.HasEnvironment() {
		return domain.DeployResult{}, domain.NewDeployError("get runtime", domain.ErrPreconditionFailed,
			fmt.Sprintf("service %s has no environment", runtime.Service.Sid), nil)
	}
	logger.Debug("runtime discovered",
		"service_sid", runtime.Service.Sid,
		"environment_sid", runtime.Environment.Sid,
		"has_build", runtime.Build != nil)

	account, err := o.getAccount(ctx, runtime)
	if err != nil {
		return domain.DeployResult{}, err
	}

	// Compatibility
	if o.allowUnbundledReact {
		uiVersion, err := o.uiConfig.GetFlexUIVersion(ctx)
		if err != nil {
			return domain.DeployResult{}, domain.NewDeployError(opCompat, domain.ErrRemote, "get host UI version", err)
		}
		declared, err := o.uiConfig.GetUIDependencies(ctx)
		if err != nil {
			return domain.DeployResult{}, domain.NewDeployError(opCompat, domain.ErrRemote, "get host UI dependencies", err)
		}
		if err := o.verifyFlexUIConfiguration(ctx, uiVersion, declared); err != nil {
			return domain.DeployResult{}, err
		}
	}

	// Collision check
	baseURL := assets.BaseURL(plugin, nextVersion)
	collided := false
	if colliding := assets.CollidingPath(baseURL, runtime.Build); colliding != "" {
		if !overwrite {
			return domain.DeployResult{}, domain.NewDeployError("verify path", domain.ErrConflict, fmt.Sprintf(
				"plugin %s@%s is already deployed at %s; bump the version or overwrite it",
				plugin, nextVersion, colliding), nil)
		}
		collided = true
		if !req.Options.DisallowVersioning {
			o.progress.Warn("plugin %s@%s already exists and will be overwritten", plugin, nextVersion)
		}
	}

	// Upload
	isPrivate := !req.Options.IsPublic
	uploaded, err := progress.Run(ctx, o.progress, "Uploading your plugin bundle",
		func(ctx context.Context) ([]domain.VersionRecord, error) {
			return o.upload(ctx, runtime.Service.Sid, plugin, baseURL, bundlePath, sourceMapPath, isPrivate)
		})
	if err != nil {
		return domain.DeployResult{}, err
	}
	o.archive(ctx, plugin, nextVersion, bundlePath, sourceMapPath)

	// Build composition
	data := assets.ComposeBuild(runtime.CurrentBuild(), baseURL, collided, uploaded)

	// Registration
	if err := o.uiConfig.RegisterSid(ctx, runtime.Service.Sid); err != nil {
		return domain.DeployResult{}, domain.NewDeployError("register service", domain.ErrRemote, "", err)
	}

	// Build and deployment
	err = progress.Step(ctx, o.progress, "Deploying a new build of your runtime service",
		func(ctx context.Context) error {
			return o.rollOut(ctx, runtime, data)
		})
	if err != nil {
		return domain.DeployResult{}, err
	}

	if err := o.project.UpdateAppVersion(nextVersion); err != nil {
		o.progress.Warn("deployed, but could not save version %s to package.json: %v", nextVersion, err)
	}

	result := domain.DeployResult{
		ServiceSid:     runtime.Service.Sid,
		AccountSid:     account.Sid,
		EnvironmentSid: runtime.Environment.Sid,
		DomainName:     runtime.Environment.DomainName,
		IsPublic:       req.Options.IsPublic,
		NextVersion:    nextVersion,
		PluginURL:      assets.PluginURL(runtime.Environment.DomainName, baseURL),
	}

	visibility := "private"
	if result.IsPublic {
		visibility = "public"
	}
	o.progress.Success("plugin %s@%s deployed as %s to account %s: %s",
		plugin, nextVersion, visibility, result.AccountSid, result.PluginURL)
	logger.Info("deploy finished", "service_sid", result.ServiceSid, "url", result.PluginURL)

	o.record(ctx, plugin, result)
	return result, nil
}

// =============================================================================
// Stages
// =============================================================================

func (o *Orchestrator) checkPilot(ctx context.Context) error {
	enabled, err := o.flags.HasFlag(ctx)
	if err != nil {
		return domain.NewDeployError("pilot gate", domain.ErrForbidden, "could not read the plugins pilot flag", err)
	}
	if !enabled {
		return domain.NewDeployError("pilot gate", domain.ErrForbidden, "this account is not enrolled in the plugins pilot", nil)
	}
	o.progress.Warn("deploying through the plugins pilot; this API is a preview and may change")
	return nil
}

// upload uploads the bundle and its source map concurrently. Both must
// succeed; the records are returned bundle first.
func (o *Orchestrator) upload(ctx context.Context, serviceSid, plugin, baseURL, bundlePath, sourceMapPath string, isPrivate bool) ([]domain.VersionRecord, error) {
	var bundle, sourceMap domain.VersionRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := o.uploader.Upload(gctx, serviceSid, plugin, assets.BundlePath(baseURL), bundlePath, isPrivate)
		if err != nil {
			return fmt.Errorf("upload bundle: %w", err)
		}
		bundle = rec
		return nil
	})
	g.Go(func() error {
		rec, err := o.uploader.Upload(gctx, serviceSid, plugin, assets.SourceMapPath(baseURL), sourceMapPath, isPrivate)
		if err != nil {
			return fmt.Errorf("upload source map: %w", err)
		}
		sourceMap = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.NewDeployError("upload", domain.ErrRemote, "", err)
	}

	return []domain.VersionRecord{bundle, sourceMap}, nil
}

func (o *Orchestrator) rollOut(ctx context.Context, runtime domain.Runtime, data domain.BuildData) error {
	buildSid, err := o.builds.CreateBuild(ctx, runtime.Service.Sid, data)
	if err != nil {
		return domain.NewDeployError("create build", domain.ErrRemote, "", err)
	}

	deploymentSid, err := o.deployments.CreateDeployment(ctx, runtime.Service.Sid, runtime.Environment.Sid, buildSid)
	if err != nil {
		return domain.NewDeployError("create deployment", domain.ErrRemote,
			fmt.Sprintf("build %s was created but not deployed", buildSid), err)
	}

	o.logger.Debug("deployment created", "build_sid", buildSid, "deployment_sid", deploymentSid)
	return nil
}

// archive copies the artifacts to the mirror. Failures only warn.
func (o *Orchestrator) archive(ctx context.Context, plugin, nextVersion, bundlePath, sourceMapPath string) {
	if o.mirror == nil {
		return
	}
	err := o.mirror.Archive(ctx, plugin, nextVersion,
		mirror.File{Name: "bundle.js", LocalPath: bundlePath},
		mirror.File{Name: "bundle.js.map", LocalPath: sourceMapPath},
	)
	if err != nil {
		o.progress.Warn("could not archive bundle to mirror: %v", err)
	}
}

// record adds the deploy to the ledger. Failures only warn.
func (o *Orchestrator) record(ctx context.Context, plugin string, result domain.DeployResult) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.Record(ctx, domain.NewDeployRecord(plugin, result, o.now())); err != nil {
		o.logger.Warn("failed to record deploy", "error", err)
	}
}

func discoveryError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewDeployError("get runtime", domain.ErrNotFound, "no default service found", err)
	}
	return domain.NewDeployError("get runtime", domain.ErrRemote, "", err)
}
