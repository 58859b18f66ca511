package assets

import "github.com/artpar/flexdeploy/internal/core/domain"

// =============================================================================
// Build Composition
// =============================================================================

// ComposeBuild builds the payload for a new build from the current one.
//
// Function versions and dependencies are carried over verbatim. Asset versions
// are carried over too, except those at the bundle or source map path under
// baseURL when replaced is true (an overwrite of a colliding deploy). The
// uploaded asset versions are appended last.
func ComposeBuild(current domain.Build, baseURL string, replaced bool, uploaded []domain.VersionRecord) domain.BuildData {
	skip := map[string]bool{}
	if replaced {
		skip[BundlePath(baseURL)] = true
		skip[SourceMapPath(baseURL)] = true
	}

	functionSids := make([]string, 0, len(current.FunctionVersions))
	for _, v := range current.FunctionVersions {
		functionSids = append(functionSids, v.Sid)
	}

	assetSids := make([]string, 0, len(current.AssetVersions)+len(uploaded))
	for _, v := range current.AssetVersions {
		if skip[v.Path] {
			continue
		}
		assetSids = append(assetSids, v.Sid)
	}
	for _, v := range uploaded {
		assetSids = append(assetSids, v.Sid)
	}

	deps := make([]domain.Dependency, len(current.Dependencies))
	copy(deps, current.Dependencies)

	return domain.BuildData{
		FunctionVersionSids: functionSids,
		AssetVersionSids:    assetSids,
		Dependencies:        deps,
	}
}
