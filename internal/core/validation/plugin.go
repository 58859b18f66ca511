package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Plugin Validation Functions
// =============================================================================

// PluginNamePrefix is required on every plugin package name.
const PluginNamePrefix = "plugin-"

// pluginNameRegex matches names usable as a single URL path segment.
var pluginNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidatePluginName checks that name can be deployed under
// /plugins/<name>/<version>/.
// Returns whether the name is allowed and a reason if not.
//
// Example:
//
//	ok, reason := ValidatePluginName("plugin-sample")
//	if !ok {
//	    // Abort with reason
//	}
func ValidatePluginName(name string) (ok bool, reason string) {
	if name == "" {
		return false, "plugin name is required"
	}
	if strings.HasPrefix(name, "@") {
		return false, fmt.Sprintf("scoped package name %q cannot be deployed as a plugin", name)
	}
	if !pluginNameRegex.MatchString(name) {
		return false, fmt.Sprintf("plugin name %q may only contain lowercase letters, digits, '.', '_' and '-'", name)
	}
	if !strings.HasPrefix(name, PluginNamePrefix) || name == PluginNamePrefix {
		return false, fmt.Sprintf("plugin name %q must start with %q", name, PluginNamePrefix)
	}
	return true, ""
}
