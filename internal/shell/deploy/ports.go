package deploy

import (
	"context"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/shell/mirror"
)

// =============================================================================
// Collaborators
// =============================================================================

// Remote clients are bound to the deploy credentials when constructed.

// RuntimeReader fetches the current service, environment and build.
type RuntimeReader interface {
	GetRuntime(ctx context.Context) (domain.Runtime, error)
}

// AccountReader looks up an account resource.
type AccountReader interface {
	GetAccount(ctx context.Context, accountSid string) (domain.Account, error)
}

// FlagReader reports whether the pilot feature flag is enabled.
type FlagReader interface {
	HasFlag(ctx context.Context) (bool, error)
}

// ConfigurationClient reads the host UI configuration and registers services
// with it.
type ConfigurationClient interface {
	GetFlexUIVersion(ctx context.Context) (string, error)
	GetUIDependencies(ctx context.Context) (map[string]string, error)
	RegisterSid(ctx context.Context, serviceSid string) error
}

// AssetUploader uploads one local file as a new asset version.
type AssetUploader interface {
	Upload(ctx context.Context, serviceSid, appName, destinationURI, localPath string, isPrivate bool) (domain.VersionRecord, error)
}

// BuildWriter creates a build and returns its sid once it is usable.
type BuildWriter interface {
	CreateBuild(ctx context.Context, serviceSid string, data domain.BuildData) (string, error)
}

// DeploymentWriter points an environment at a build.
type DeploymentWriter interface {
	CreateDeployment(ctx context.Context, serviceSid, environmentSid, buildSid string) (string, error)
}

// ProjectFS is the local plugin project.
type ProjectFS interface {
	PluginName() string
	CurrentVersion() string
	BundlePath() string
	SourceMapPath() string
	CheckFilesExist(paths ...string) bool
	InstalledVersions(pkgs ...string) (map[string]string, error)
	UpdateAppVersion(version string) error
}

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, message string, defaultYes bool) (bool, error)
}

// Ledger records completed deploys.
type Ledger interface {
	Record(ctx context.Context, record domain.DeployRecord) error
}

// Mirror archives uploaded artifacts.
type Mirror interface {
	Archive(ctx context.Context, plugin, version string, files ...mirror.File) error
}
