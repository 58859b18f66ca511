package domain

import "strings"

// =============================================================================
// Credentials
// =============================================================================

// AccountSidPrefix marks a principal that is itself an account identifier.
const AccountSidPrefix = "AC"

// CredentialKind discriminates the credential shapes the deploy understands.
type CredentialKind string

const (
	// CredentialAccount is an account sid + auth token pair.
	CredentialAccount CredentialKind = "account"

	// CredentialAPIKey is an API key + secret pair. API keys do not resolve to
	// a fetchable account resource.
	CredentialAPIKey CredentialKind = "api_key"
)

// Credentials authenticate every remote call made during a deploy.
type Credentials struct {
	Kind     CredentialKind
	Username string
	Password string
}

// NewCredentials classifies a username/password pair by its principal prefix.
// Any principal that is not an account sid is treated as an API key.
func NewCredentials(username, password string) Credentials {
	kind := CredentialAPIKey
	if strings.HasPrefix(username, AccountSidPrefix) {
		kind = CredentialAccount
	}
	return Credentials{
		Kind:     kind,
		Username: username,
		Password: password,
	}
}

// IsZero reports whether no credentials were supplied.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}
