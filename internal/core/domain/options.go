package domain

// =============================================================================
// Deploy Options and Result
// =============================================================================

// DeployOptions controls how a plugin is published.
type DeployOptions struct {
	// IsPublic uploads assets without the private visibility flag.
	IsPublic bool

	// Overwrite permits replacing assets that already exist at the target path.
	Overwrite bool

	// DisallowVersioning pins the version to 0.0.0 and implies Overwrite.
	DisallowVersioning bool

	// IsPluginsPilot routes the deploy through the gated preview API.
	IsPluginsPilot bool
}

// DeployResult describes a completed deploy. It is returned by value and
// never modified after construction.
type DeployResult struct {
	ServiceSid     string `json:"service_sid"`
	AccountSid     string `json:"account_sid"`
	EnvironmentSid string `json:"environment_sid"`
	DomainName     string `json:"domain_name"`
	IsPublic       bool   `json:"is_public"`
	NextVersion    string `json:"next_version"`
	PluginURL      string `json:"plugin_url"`
}

// Account is the owning account of a service.
type Account struct {
	Sid string `json:"sid"`
}
