// Package assets provides pure functions for plugin asset paths and build
// composition.
//
// # Functions
//
//   - Paths: BaseURL, BundlePath, SourceMapPath, PluginURL
//   - Collision detection: VerifyPath, CollidingPath
//   - Composition: ComposeBuild
//
// # Usage
//
// The deploy orchestrator (internal/shell/deploy) checks the target paths
// against the environment's current build, uploads, then composes the new
// build from the old one:
//
//	base := assets.BaseURL(pluginName, nextVersion)
//	if !assets.VerifyPath(base, runtime.Build) && !overwrite {
//	    // conflict
//	}
//	data := assets.ComposeBuild(runtime.CurrentBuild(), base, replaced, uploaded)
package assets
