package assets

import (
	"fmt"
	"strings"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// =============================================================================
// Path Helpers
// =============================================================================

const (
	bundleFile    = "bundle.js"
	sourceMapFile = "bundle.js.map"
)

// BaseURL returns the asset directory for a plugin version.
func BaseURL(pluginName, version string) string {
	return fmt.Sprintf("/plugins/%s/%s", pluginName, version)
}

// BundlePath returns the served path of the bundle under baseURL.
func BundlePath(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + bundleFile
}

// SourceMapPath returns the served path of the source map under baseURL.
func SourceMapPath(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + sourceMapFile
}

// PluginURL returns the public URL of the bundle on the environment domain.
func PluginURL(domainName, baseURL string) string {
	return "https://" + domainName + BundlePath(baseURL)
}

// =============================================================================
// Collision Detection
// =============================================================================

// VerifyPath reports whether neither the bundle nor the source map path under
// baseURL is already registered in build. A nil build never collides.
func VerifyPath(baseURL string, build *domain.Build) bool {
	return CollidingPath(baseURL, build) == ""
}

// CollidingPath returns the first candidate path already present in build,
// or "" when there is none.
func CollidingPath(baseURL string, build *domain.Build) string {
	if build == nil {
		return ""
	}

	existing := make(map[string]struct{}, len(build.AssetVersions)+len(build.FunctionVersions))
	for _, v := range build.AssetVersions {
		existing[v.Path] = struct{}{}
	}
	for _, v := range build.FunctionVersions {
		existing[v.Path] = struct{}{}
	}

	for _, candidate := range []string{BundlePath(baseURL), SourceMapPath(baseURL)} {
		if _, ok := existing[candidate]; ok {
			return candidate
		}
	}
	return ""
}
