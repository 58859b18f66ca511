// Package version resolves the next plugin version from a bump directive.
// All functions are pure.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// Unversioned is the fixed version used when versioning is disallowed.
const Unversioned = "0.0.0"

// Bump is the requested kind of version increment.
type Bump string

const (
	BumpMajor     Bump = "major"
	BumpMinor     Bump = "minor"
	BumpPatch     Bump = "patch"
	BumpVersion   Bump = "version"
	BumpOverwrite Bump = "overwrite"
)

// Resolution is the outcome of resolving a bump directive.
type Resolution struct {
	// Version is the version the plugin will be deployed as.
	Version string

	// ForceOverwrite is set when the directive implies replacing an existing
	// deploy regardless of the caller's overwrite flag.
	ForceOverwrite bool
}

// ParseBump validates a directive string.
func ParseBump(s string) (Bump, error) {
	switch b := Bump(s); b {
	case BumpMajor, BumpMinor, BumpPatch, BumpVersion, BumpOverwrite:
		return b, nil
	}
	return "", domain.NewDeployError("resolve version", domain.ErrInvalidArgument,
		"bump can only be one of major, minor, patch, version, overwrite", nil)
}

// Resolve computes the next version from the current one.
//
// disallowVersioning wins over any directive: the result is always 0.0.0 with
// overwrite forced. For BumpVersion the explicit literal is returned as is;
// parsing it is left to whoever consumes it.
func Resolve(current string, bump Bump, explicit string, disallowVersioning bool) (Resolution, error) {
	if disallowVersioning {
		return Resolution{Version: Unversioned, ForceOverwrite: true}, nil
	}

	switch bump {
	case BumpOverwrite:
		return Resolution{Version: current, ForceOverwrite: true}, nil

	case BumpVersion:
		if explicit == "" {
			return Resolution{}, domain.NewDeployError("resolve version", domain.ErrInvalidArgument,
				"custom version cannot be empty", nil)
		}
		return Resolution{Version: explicit}, nil

	case BumpMajor, BumpMinor, BumpPatch:
		v, err := semver.NewVersion(current)
		if err != nil {
			return Resolution{}, domain.NewDeployError("resolve version", domain.ErrInvalidArgument,
				fmt.Sprintf("current version %q is not valid semver", current), err)
		}
		var next semver.Version
		switch bump {
		case BumpMajor:
			next = v.IncMajor()
		case BumpMinor:
			next = v.IncMinor()
		default:
			next = v.IncPatch()
		}
		return Resolution{Version: next.String()}, nil
	}

	_, err := ParseBump(string(bump))
	return Resolution{}, err
}
