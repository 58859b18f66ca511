// Package compat checks a plugin's React dependencies against what the host
// UI declares it supports. All functions are pure; prompting for an override
// is left to the caller.
package compat

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// MinimumUIVersion is the first host UI release that lets plugins bring their
// own React.
const MinimumUIVersion = "1.19.0"

// CheckedPackages are compared between the host declaration and the plugin's
// installed modules.
var CheckedPackages = []string{"react", "react-dom"}

// Mismatch is an installed package outside the host's declared range.
type Mismatch struct {
	Package   string
	Installed string
	Required  string
}

func (m Mismatch) String() string {
	installed := m.Installed
	if installed == "" {
		installed = "not installed"
	}
	return fmt.Sprintf("%s: installed %s, host supports %s", m.Package, installed, m.Required)
}

// Report is the outcome of Evaluate.
type Report struct {
	// Supporting is false when the host UI is too old for unbundled React.
	Supporting bool

	// DetectedVersion is the host UI version as reported by the host.
	DetectedVersion string

	// MissingDependencies lists checked packages the host does not declare.
	MissingDependencies []string

	// Mismatches lists installed packages that fall outside the declared ranges.
	Mismatches []Mismatch
}

// Compatible reports whether nothing needs the user's attention.
func (r Report) Compatible() bool {
	return r.Supporting && len(r.MissingDependencies) == 0 && len(r.Mismatches) == 0
}

// Evaluate compares the host UI version and declared dependency ranges with
// the plugin's installed versions.
//
// hostUIVersion may itself be a range (e.g. "~1.19"). The host is supporting
// when MinimumUIVersion satisfies that range, or when the coerced version is
// at least MinimumUIVersion. Dependencies are only checked on a supporting host.
func Evaluate(hostUIVersion string, declared, installed map[string]string) Report {
	report := Report{DetectedVersion: hostUIVersion}
	report.Supporting = IsSupporting(hostUIVersion)
	if !report.Supporting {
		return report
	}

	for _, pkg := range CheckedPackages {
		if _, ok := declared[pkg]; !ok {
			report.MissingDependencies = append(report.MissingDependencies, pkg)
		}
	}
	if len(report.MissingDependencies) > 0 {
		return report
	}

	for _, pkg := range CheckedPackages {
		if !Satisfies(installed[pkg], declared[pkg]) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Package:   pkg,
				Installed: installed[pkg],
				Required:  declared[pkg],
			})
		}
	}
	return report
}

// IsSupporting reports whether hostUIVersion allows unbundled React.
func IsSupporting(hostUIVersion string) bool {
	if Satisfies(MinimumUIVersion, hostUIVersion) {
		return true
	}
	v, ok := Coerce(hostUIVersion)
	if !ok {
		return false
	}
	return Satisfies(v.String(), ">="+MinimumUIVersion)
}

// Satisfies reports whether version satisfies the range expression. Unparsable
// input never satisfies.
func Satisfies(version, rangeExpr string) bool {
	if version == "" || rangeExpr == "" {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return false
	}
	return c.Check(v)
}

var coerceRegex = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// Coerce extracts the first major[.minor[.patch]] run from s, ignoring any
// leading operators or trailing labels ("~1.19" -> 1.19.0, "v2" -> 2.0.0).
func Coerce(s string) (*semver.Version, bool) {
	m := coerceRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	parts := []string{m[1], m[2], m[3]}
	for i, p := range parts {
		if p == "" {
			parts[i] = "0"
		}
	}
	v, err := semver.NewVersion(parts[0] + "." + parts[1] + "." + parts[2])
	if err != nil {
		return nil, false
	}
	return v, true
}
