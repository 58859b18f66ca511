package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/core/version"
	"github.com/artpar/flexdeploy/internal/shell/progress"
)

// =============================================================================
// Test Helpers
// =============================================================================

const (
	testServiceSid = "ZS00000000000000000000000000000001"
	testAccountSid = "AC00000000000000000000000000000001"
	testEnvSid     = "ZE00000000000000000000000000000001"
	testDomain     = "default-1234-dev.example.io"
)

type fixture struct {
	project     *fakeProject
	runtime     *fakeRuntime
	accounts    *fakeAccounts
	flags       *fakeFlags
	uiConfig    *fakeUIConfig
	uploader    *fakeUploader
	builds      *fakeBuilds
	deployments *fakeDeployments
	prompter    *fakePrompter
	ledger      *fakeLedger
	mirror      *fakeMirror
	cfg         Config
	out         bytes.Buffer
}

func newFixture() *fixture {
	return &fixture{
		project: &fakeProject{
			name:        "plugin-sample",
			version:     "1.2.3",
			bundleReady: true,
			installed:   map[string]string{"react": "16.5.2", "react-dom": "16.5.2"},
		},
		runtime: &fakeRuntime{runtime: domain.Runtime{
			Service:     domain.Service{Sid: testServiceSid, AccountSid: testAccountSid, UniqueName: "default"},
			Environment: &domain.Environment{Sid: testEnvSid, DomainName: testDomain},
		}},
		accounts:    &fakeAccounts{},
		flags:       &fakeFlags{},
		uiConfig:    &fakeUIConfig{uiVersion: "1.20.0", dependencies: map[string]string{"react": "16.5.2", "react-dom": "16.5.2"}},
		uploader:    &fakeUploader{},
		builds:      &fakeBuilds{},
		deployments: &fakeDeployments{},
		prompter:    &fakePrompter{},
		ledger:      &fakeLedger{},
		mirror:      &fakeMirror{},
		cfg:         Config{Credentials: domain.NewCredentials("SK0123", "secret")},
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	o := New(Deps{
		Project:     f.project,
		Runtime:     f.runtime,
		Accounts:    f.accounts,
		Flags:       f.flags,
		UIConfig:    f.uiConfig,
		Uploader:    f.uploader,
		Builds:      f.builds,
		Deployments: f.deployments,
		Prompter:    f.prompter,
		Ledger:      f.ledger,
		Mirror:      f.mirror,
	}, f.cfg, progress.New(&f.out, nil), nil)
	o.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return o
}

func (f *fixture) deploy(t *testing.T, req Request) (domain.DeployResult, error) {
	t.Helper()
	return f.orchestrator().Deploy(context.Background(), req)
}

func existingBuild(versionPath string) *domain.Build {
	return &domain.Build{
		Sid: "ZBold",
		AssetVersions: []domain.VersionRecord{
			{Sid: "ZNother", Path: "/plugins/other/1.0.0/bundle.js"},
			{Sid: "ZNold-bundle", Path: versionPath + "/bundle.js"},
			{Sid: "ZNold-map", Path: versionPath + "/bundle.js.map"},
		},
		FunctionVersions: []domain.VersionRecord{
			{Sid: "ZNfn", Path: "/hello"},
		},
		Dependencies: []domain.Dependency{{Name: "lodash", Version: "4.17.21"}},
	}
}

// =============================================================================
// Happy Path
// =============================================================================

func TestDeploy_FreshService(t *testing.T) {
	f := newFixture()

	result, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{IsPublic: true}})
	require.NoError(t, err)

	assert.Equal(t, domain.DeployResult{
		ServiceSid:     testServiceSid,
		AccountSid:     testAccountSid,
		EnvironmentSid: testEnvSid,
		DomainName:     testDomain,
		IsPublic:       true,
		NextVersion:    "1.2.4",
		PluginURL:      "https://" + testDomain + "/plugins/plugin-sample/1.2.4/bundle.js",
	}, result)

	require.Len(t, f.builds.created, 1)
	assert.Equal(t, []string{"ZNnew-bundle", "ZNnew-map"}, f.builds.created[0].AssetVersionSids)
	assert.Empty(t, f.builds.created[0].FunctionVersionSids)
	assert.Empty(t, f.builds.created[0].Dependencies)

	require.Len(t, f.deployments.calls, 1)
	assert.Equal(t, deploymentCall{testServiceSid, testEnvSid, "ZBnew1"}, f.deployments.calls[0])

	assert.Equal(t, []string{testServiceSid}, f.uiConfig.registered)
	assert.Equal(t, []string{"1.2.4"}, f.project.updated)
	assert.Contains(t, f.out.String(), "success: plugin plugin-sample@1.2.4 deployed as public")
}

func TestDeploy_NextVersionMatchesResolver(t *testing.T) {
	tests := []struct {
		bump     version.Bump
		explicit string
		want     string
	}{
		{version.BumpMajor, "", "2.0.0"},
		{version.BumpMinor, "", "1.3.0"},
		{version.BumpPatch, "", "1.2.4"},
		{version.BumpOverwrite, "", "1.2.3"},
		{version.BumpVersion, "5.0.0-beta.1", "5.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.bump), func(t *testing.T) {
			f := newFixture()

			result, err := f.deploy(t, Request{Bump: tt.bump, ExplicitVersion: tt.explicit})
			require.NoError(t, err)

			resolution, err := version.Resolve("1.2.3", tt.bump, tt.explicit, false)
			require.NoError(t, err)
			assert.Equal(t, resolution.Version, result.NextVersion)
			assert.Equal(t, tt.want, result.NextVersion)
		})
	}
}

func TestDeploy_UploadsUnderVersionPath(t *testing.T) {
	f := newFixture()

	_, err := f.deploy(t, Request{Bump: version.BumpMinor})
	require.NoError(t, err)

	require.Len(t, f.uploader.calls, 2)
	byPath := map[string]uploadCall{}
	for _, c := range f.uploader.calls {
		byPath[c.destinationURI] = c
	}

	bundle := byPath["/plugins/plugin-sample/1.3.0/bundle.js"]
	assert.Equal(t, f.project.BundlePath(), bundle.localPath)
	assert.Equal(t, "plugin-sample", bundle.appName)
	assert.Equal(t, testServiceSid, bundle.serviceSid)
	assert.True(t, bundle.isPrivate)

	sourceMap := byPath["/plugins/plugin-sample/1.3.0/bundle.js.map"]
	assert.Equal(t, f.project.SourceMapPath(), sourceMap.localPath)
	assert.True(t, sourceMap.isPrivate)
}

func TestDeploy_PublicUploadsAreNotPrivate(t *testing.T) {
	f := newFixture()

	_, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{IsPublic: true}})
	require.NoError(t, err)

	for _, c := range f.uploader.calls {
		assert.False(t, c.isPrivate)
	}
}

// =============================================================================
// Version Resolution and Preflight
// =============================================================================

func TestDeploy_InvalidBumpBeforeAnyIO(t *testing.T) {
	f := newFixture()

	_, err := f.deploy(t, Request{Bump: version.Bump("huge")})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Zero(t, f.runtime.calls)
}

func TestDeploy_VersionBumpRequiresLiteral(t *testing.T) {
	f := newFixture()

	_, err := f.deploy(t, Request{Bump: version.BumpVersion})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Zero(t, f.runtime.calls)
}

func TestDeploy_MissingBundle(t *testing.T) {
	f := newFixture()
	f.project.bundleReady = false

	_, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{IsPluginsPilot: true}})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "run build first")
	assert.Zero(t, f.runtime.calls)
	assert.Zero(t, f.flags.calls)
}

func TestDeploy_InvalidPluginName(t *testing.T) {
	f := newFixture()
	f.project.name = "@acme/plugin-sample"

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "scoped package name")
	assert.Zero(t, f.runtime.calls)
	assert.Zero(t, f.uploader.count())
}

// =============================================================================
// Pilot Gate
// =============================================================================

func TestDeploy_PilotGate(t *testing.T) {
	t.Run("flag absent", func(t *testing.T) {
		f := newFixture()

		_, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{IsPluginsPilot: true}})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Zero(t, f.runtime.calls)
	})

	t.Run("flag lookup fails", func(t *testing.T) {
		f := newFixture()
		f.flags.err = errors.New("unexpected status 503")

		_, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{IsPluginsPilot: true}})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("flag present", func(t *testing.T) {
		f := newFixture()
		f.flags.enabled = true

		_, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{IsPluginsPilot: true}})
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "plugins pilot")
	})

	t.Run("not requested", func(t *testing.T) {
		f := newFixture()

		_, err := f.deploy(t, Request{Bump: version.BumpPatch})
		require.NoError(t, err)
		assert.Zero(t, f.flags.calls)
	})
}

// =============================================================================
// Runtime Discovery and Account Resolution
// =============================================================================

func TestDeploy_NoEnvironment(t *testing.T) {
	f := newFixture()
	f.runtime.runtime.Environment = nil

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Zero(t, f.uploader.count())
}

func TestDeploy_NoService(t *testing.T) {
	f := newFixture()
	f.runtime.err = fmt.Errorf("service %q: %w", "default", domain.ErrNotFound)

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.ErrNotFound, domain.KindOf(err))
}

func TestDeploy_RuntimeRemoteError(t *testing.T) {
	f := newFixture()
	f.runtime.err = errors.New("unexpected status 500: boom")

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Contains(t, err.Error(), "boom")
}

func TestGetAccount(t *testing.T) {
	t.Run("account credentials fetch the account", func(t *testing.T) {
		f := newFixture()
		f.cfg.Credentials = domain.NewCredentials("AC99999999999999999999999999999999", "token")

		result, err := f.deploy(t, Request{Bump: version.BumpPatch})
		require.NoError(t, err)
		assert.Equal(t, []string{"AC99999999999999999999999999999999"}, f.accounts.calls)
		assert.Equal(t, "AC99999999999999999999999999999999", result.AccountSid)
	})

	t.Run("api key credentials use the runtime", func(t *testing.T) {
		f := newFixture()

		result, err := f.deploy(t, Request{Bump: version.BumpPatch})
		require.NoError(t, err)
		assert.Empty(t, f.accounts.calls)
		assert.Equal(t, testAccountSid, result.AccountSid)
	})

	t.Run("account lookup fails", func(t *testing.T) {
		f := newFixture()
		f.cfg.Credentials = domain.NewCredentials("AC99999999999999999999999999999999", "token")
		f.accounts.err = errors.New("unexpected status 401")

		_, err := f.deploy(t, Request{Bump: version.BumpPatch})
		assert.ErrorIs(t, err, domain.ErrRemote)
		assert.Zero(t, f.uploader.count())
	})
}

// =============================================================================
// Compatibility Validation
// =============================================================================

func TestDeploy_CompatDisabledNeverPromptsOrFails(t *testing.T) {
	f := newFixture()
	f.uiConfig.uiVersion = "1.10.0"
	f.project.installed = map[string]string{"react": "15.0.0"}

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	require.NoError(t, err)
	assert.Empty(t, f.prompter.asked)
	assert.Zero(t, f.uiConfig.reads)
}

func TestDeploy_CompatHostTooOld(t *testing.T) {
	f := newFixture()
	f.cfg.AllowUnbundledReact = true
	f.uiConfig.uiVersion = "1.18.0"
	f.prompter.answer = true

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "1.18.0")
	assert.Empty(t, f.prompter.asked)
	assert.Zero(t, f.uploader.count())
}

func TestDeploy_CompatDependenciesNotConfigured(t *testing.T) {
	f := newFixture()
	f.cfg.AllowUnbundledReact = true
	f.uiConfig.dependencies = map[string]string{"react": "16.5.2"}

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Contains(t, err.Error(), "dependency versions not configured")
	assert.Empty(t, f.prompter.asked)
}

func TestDeploy_CompatMismatch(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		f := newFixture()
		f.cfg.AllowUnbundledReact = true
		f.project.installed = map[string]string{"react": "17.0.0", "react-dom": "16.5.2"}

		_, err := f.deploy(t, Request{Bump: version.BumpPatch})
		assert.ErrorIs(t, err, domain.ErrUserRejected)
		assert.Len(t, f.prompter.asked, 1)
		assert.Contains(t, f.out.String(), "react: installed 17.0.0")
		assert.Zero(t, f.uploader.count())
	})

	t.Run("accepted", func(t *testing.T) {
		f := newFixture()
		f.cfg.AllowUnbundledReact = true
		f.project.installed = map[string]string{"react": "17.0.0", "react-dom": "16.5.2"}
		f.prompter.answer = true

		_, err := f.deploy(t, Request{Bump: version.BumpPatch})
		require.NoError(t, err)
		assert.Len(t, f.prompter.asked, 1)
		assert.Len(t, f.deployments.calls, 1)
	})

	t.Run("prompt fails", func(t *testing.T) {
		f := newFixture()
		f.cfg.AllowUnbundledReact = true
		f.project.installed = map[string]string{}
		f.prompter.err = context.Canceled

		_, err := f.deploy(t, Request{Bump: version.BumpPatch})
		assert.ErrorIs(t, err, domain.ErrUserRejected)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("matching versions do not prompt", func(t *testing.T) {
		f := newFixture()
		f.cfg.AllowUnbundledReact = true

		_, err := f.deploy(t, Request{Bump: version.BumpPatch})
		require.NoError(t, err)
		assert.Empty(t, f.prompter.asked)
	})
}

// =============================================================================
// Collision Handling and Build Composition
// =============================================================================

func TestDeploy_CollisionWithoutOverwrite(t *testing.T) {
	f := newFixture()
	f.runtime.runtime.Build = existingBuild("/plugins/plugin-sample/1.2.4")

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "/plugins/plugin-sample/1.2.4/bundle.js")
	assert.Zero(t, f.uploader.count())
	assert.Empty(t, f.builds.created)
}

func TestDeploy_CollisionWithOverwrite(t *testing.T) {
	f := newFixture()
	f.runtime.runtime.Build = existingBuild("/plugins/plugin-sample/1.2.3")

	_, err := f.deploy(t, Request{Bump: version.BumpOverwrite})
	require.NoError(t, err)

	require.Len(t, f.builds.created, 1)
	data := f.builds.created[0]
	assert.Equal(t, []string{"ZNother", "ZNnew-bundle", "ZNnew-map"}, data.AssetVersionSids)
	assert.Equal(t, []string{"ZNfn"}, data.FunctionVersionSids)
	assert.Equal(t, []domain.Dependency{{Name: "lodash", Version: "4.17.21"}}, data.Dependencies)
	assert.Contains(t, f.out.String(), "will be overwritten")
}

func TestDeploy_CollisionWithOverwriteFlag(t *testing.T) {
	f := newFixture()
	f.runtime.runtime.Build = existingBuild("/plugins/plugin-sample/1.2.4")

	_, err := f.deploy(t, Request{Bump: version.BumpPatch, Options: domain.DeployOptions{Overwrite: true}})
	require.NoError(t, err)
	assert.NotContains(t, f.builds.created[0].AssetVersionSids, "ZNold-bundle")
	assert.NotContains(t, f.builds.created[0].AssetVersionSids, "ZNold-map")
}

func TestDeploy_DisallowVersioning(t *testing.T) {
	f := newFixture()
	f.runtime.runtime.Build = existingBuild("/plugins/plugin-sample/0.0.0")

	result, err := f.deploy(t, Request{Bump: version.BumpMajor, Options: domain.DeployOptions{DisallowVersioning: true}})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0", result.NextVersion)
	assert.Equal(t, []string{"ZNother", "ZNnew-bundle", "ZNnew-map"}, f.builds.created[0].AssetVersionSids)
	assert.NotContains(t, f.out.String(), "will be overwritten")
}

func TestDeploy_ExistingBuildWithoutCollision(t *testing.T) {
	f := newFixture()
	f.runtime.runtime.Build = existingBuild("/plugins/plugin-sample/1.2.3")

	_, err := f.deploy(t, Request{Bump: version.BumpMinor})
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"ZNother", "ZNold-bundle", "ZNold-map", "ZNnew-bundle", "ZNnew-map"},
		f.builds.created[0].AssetVersionSids)
}

// =============================================================================
// Remote Failures
// =============================================================================

func TestDeploy_PartialUploadAborts(t *testing.T) {
	f := newFixture()
	f.uploader.failPath = "/plugins/plugin-sample/1.2.4/bundle.js.map"

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Contains(t, err.Error(), "upload source map")
	assert.Empty(t, f.builds.created)
	assert.Empty(t, f.uiConfig.registered)
	assert.Empty(t, f.mirror.calls)
}

func TestDeploy_RegisterFails(t *testing.T) {
	f := newFixture()
	f.uiConfig.registerErr = errors.New("unexpected status 500")

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Empty(t, f.builds.created)
}

func TestDeploy_BuildFails(t *testing.T) {
	f := newFixture()
	f.builds.err = errors.New("build ZB1 failed")

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Empty(t, f.deployments.calls)
	assert.Empty(t, f.project.updated)
	assert.Empty(t, f.ledger.records)
}

func TestDeploy_DeploymentFails(t *testing.T) {
	f := newFixture()
	f.deployments.err = errors.New("unexpected status 409")

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Contains(t, err.Error(), "ZBnew1")
	assert.Empty(t, f.project.updated)

	var deployErr *domain.DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, "create deployment", deployErr.Op)
}

// =============================================================================
// Side Records
// =============================================================================

func TestDeploy_RecordsLedger(t *testing.T) {
	f := newFixture()

	result, err := f.deploy(t, Request{Bump: version.BumpPatch})
	require.NoError(t, err)

	require.Len(t, f.ledger.records, 1)
	rec := f.ledger.records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "plugin-sample", rec.Plugin)
	assert.Equal(t, result.NextVersion, rec.Version)
	assert.Equal(t, result.PluginURL, rec.PluginURL)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestDeploy_SideRecordFailuresAreNotFatal(t *testing.T) {
	f := newFixture()
	f.ledger.err = errors.New("disk full")
	f.mirror.err = errors.New("bucket denied")
	f.project.updateErr = errors.New("read-only file system")

	result, err := f.deploy(t, Request{Bump: version.BumpPatch})
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", result.NextVersion)
	assert.Contains(t, f.out.String(), "could not archive bundle")
	assert.Contains(t, f.out.String(), "could not save version 1.2.4")
}

func TestDeploy_ArchivesToMirror(t *testing.T) {
	f := newFixture()

	_, err := f.deploy(t, Request{Bump: version.BumpPatch})
	require.NoError(t, err)

	require.Len(t, f.mirror.calls, 1)
	call := f.mirror.calls[0]
	assert.Equal(t, "plugin-sample", call.plugin)
	assert.Equal(t, "1.2.4", call.version)
	require.Len(t, call.files, 2)
	assert.Equal(t, "bundle.js", call.files[0].Name)
	assert.Equal(t, f.project.BundlePath(), call.files[0].LocalPath)
	assert.Equal(t, "bundle.js.map", call.files[1].Name)
}

func TestDeploy_OptionalCollaborators(t *testing.T) {
	f := newFixture()
	o := New(Deps{
		Project:     f.project,
		Runtime:     f.runtime,
		Accounts:    f.accounts,
		Flags:       f.flags,
		UIConfig:    f.uiConfig,
		Uploader:    f.uploader,
		Builds:      f.builds,
		Deployments: f.deployments,
		Prompter:    f.prompter,
	}, f.cfg, nil, nil)

	_, err := o.Deploy(context.Background(), Request{Bump: version.BumpPatch})
	require.NoError(t, err)
}
