package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/artpar/flexdeploy/internal/core/domain"
	"github.com/artpar/flexdeploy/internal/shell/mirror"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeProject struct {
	name        string
	version     string
	bundleReady bool
	installed   map[string]string
	updateErr   error
	updated     []string
}

func (p *fakeProject) PluginName() string     { return p.name }
func (p *fakeProject) CurrentVersion() string { return p.version }
func (p *fakeProject) BundlePath() string     { return "/work/" + p.name + "/build/" + p.name + ".js" }
func (p *fakeProject) SourceMapPath() string  { return p.BundlePath() + ".map" }

func (p *fakeProject) CheckFilesExist(paths ...string) bool {
	return p.bundleReady
}

func (p *fakeProject) InstalledVersions(pkgs ...string) (map[string]string, error) {
	return p.installed, nil
}

func (p *fakeProject) UpdateAppVersion(version string) error {
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updated = append(p.updated, version)
	return nil
}

type fakeRuntime struct {
	runtime domain.Runtime
	err     error
	calls   int
}

func (f *fakeRuntime) GetRuntime(ctx context.Context) (domain.Runtime, error) {
	f.calls++
	return f.runtime, f.err
}

type fakeAccounts struct {
	err   error
	calls []string
}

func (f *fakeAccounts) GetAccount(ctx context.Context, sid string) (domain.Account, error) {
	f.calls = append(f.calls, sid)
	if f.err != nil {
		return domain.Account{}, f.err
	}
	return domain.Account{Sid: sid}, nil
}

type fakeFlags struct {
	enabled bool
	err     error
	calls   int
}

func (f *fakeFlags) HasFlag(ctx context.Context) (bool, error) {
	f.calls++
	return f.enabled, f.err
}

type fakeUIConfig struct {
	uiVersion    string
	dependencies map[string]string
	registerErr  error
	reads        int
	registered   []string
}

func (f *fakeUIConfig) GetFlexUIVersion(ctx context.Context) (string, error) {
	f.reads++
	return f.uiVersion, nil
}

func (f *fakeUIConfig) GetUIDependencies(ctx context.Context) (map[string]string, error) {
	f.reads++
	return f.dependencies, nil
}

func (f *fakeUIConfig) RegisterSid(ctx context.Context, serviceSid string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, serviceSid)
	return nil
}

type uploadCall struct {
	serviceSid     string
	appName        string
	destinationURI string
	localPath      string
	isPrivate      bool
}

type fakeUploader struct {
	mu       sync.Mutex
	failPath string
	calls    []uploadCall
}

func (f *fakeUploader) Upload(ctx context.Context, serviceSid, appName, destinationURI, localPath string, isPrivate bool) (domain.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, uploadCall{serviceSid, appName, destinationURI, localPath, isPrivate})
	if destinationURI == f.failPath {
		return domain.VersionRecord{}, errors.New("unexpected status 500: upload failed")
	}
	sid := "ZNnew-bundle"
	if strings.HasSuffix(destinationURI, ".map") {
		sid = "ZNnew-map"
	}
	return domain.VersionRecord{Sid: sid, Path: destinationURI}, nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBuilds struct {
	err     error
	created []domain.BuildData
}

func (f *fakeBuilds) CreateBuild(ctx context.Context, serviceSid string, data domain.BuildData) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, data)
	return fmt.Sprintf("ZBnew%d", len(f.created)), nil
}

type deploymentCall struct {
	serviceSid     string
	environmentSid string
	buildSid       string
}

type fakeDeployments struct {
	err   error
	calls []deploymentCall
}

func (f *fakeDeployments) CreateDeployment(ctx context.Context, serviceSid, environmentSid, buildSid string) (string, error) {
	f.calls = append(f.calls, deploymentCall{serviceSid, environmentSid, buildSid})
	if f.err != nil {
		return "", f.err
	}
	return "ZDnew", nil
}

type fakePrompter struct {
	answer bool
	err    error
	asked  []string
}

func (f *fakePrompter) Confirm(ctx context.Context, message string, defaultYes bool) (bool, error) {
	f.asked = append(f.asked, message)
	if f.err != nil {
		return false, f.err
	}
	return f.answer, nil
}

type fakeLedger struct {
	err     error
	records []domain.DeployRecord
}

func (f *fakeLedger) Record(ctx context.Context, record domain.DeployRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

type archiveCall struct {
	plugin  string
	version string
	files   []mirror.File
}

type fakeMirror struct {
	err   error
	calls []archiveCall
}

func (f *fakeMirror) Archive(ctx context.Context, plugin, version string, files ...mirror.File) error {
	f.calls = append(f.calls, archiveCall{plugin, version, files})
	return f.err
}
