// Package domain holds the value types shared by the deploy pipeline: the
// remote runtime snapshot, deploy options and results, credentials, and the
// error taxonomy. Nothing here performs I/O.
package domain

// =============================================================================
// Runtime Snapshot
// =============================================================================

// Service is the hosted-runtime service that owns plugin assets.
type Service struct {
	Sid        string `json:"sid"`
	AccountSid string `json:"account_sid"`
	UniqueName string `json:"unique_name"`
}

// Environment is a deployment target bound to a domain name.
type Environment struct {
	Sid        string `json:"sid"`
	DomainName string `json:"domain_name"`
	BuildSid   string `json:"build_sid,omitempty"`
}

// VersionRecord is an uploaded asset or function revision.
type VersionRecord struct {
	Sid  string `json:"sid"`
	Path string `json:"path"`
}

// Dependency is a package pinned into a build.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Build is the set of asset versions, function versions and dependencies an
// environment currently serves.
type Build struct {
	Sid              string          `json:"sid"`
	AssetVersions    []VersionRecord `json:"asset_versions"`
	FunctionVersions []VersionRecord `json:"function_versions"`
	Dependencies     []Dependency    `json:"dependencies"`
}

// Runtime is a fresh snapshot of remote state for one deploy invocation.
// Environment and Build are nil when they do not exist yet.
type Runtime struct {
	Service     Service
	Environment *Environment
	Build       *Build
}

// HasEnvironment reports whether the runtime can be deployed to.
func (r Runtime) HasEnvironment() bool {
	return r.Environment != nil
}

// CurrentBuild returns the existing build, or an empty one on first deploy.
func (r Runtime) CurrentBuild() Build {
	if r.Build == nil {
		return Build{}
	}
	return *r.Build
}

// BuildData is the payload submitted to create a new build.
type BuildData struct {
	FunctionVersionSids []string     `json:"function_versions"`
	AssetVersionSids    []string     `json:"asset_versions"`
	Dependencies        []Dependency `json:"dependencies"`
}
