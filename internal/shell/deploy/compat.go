package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/flexdeploy/internal/core/compat"
	"github.com/artpar/flexdeploy/internal/core/domain"
)

const opCompat = "verify ui configuration"

// verifyFlexUIConfiguration checks that the host UI can load a plugin with
// its own React and that the installed React matches what the host declares.
// A mismatch can be accepted interactively; nothing else can.
func (o *Orchestrator) verifyFlexUIConfiguration(ctx context.Context, hostUIVersion string, declared map[string]string) error {
	if !o.allowUnbundledReact {
		return nil
	}

	installed, err := o.project.InstalledVersions(compat.CheckedPackages...)
	if err != nil {
		return domain.NewDeployError(opCompat, domain.ErrPreconditionFailed, "read installed packages", err)
	}

	report := compat.Evaluate(hostUIVersion, declared, installed)

	if !report.Supporting {
		return domain.NewDeployError(opCompat, domain.ErrPreconditionFailed, fmt.Sprintf(
			"host UI version %s does not support unbundled React; upgrade the host UI to %s or later, or disable allow_unbundled_react",
			report.DetectedVersion, compat.MinimumUIVersion), nil)
	}

	if len(report.MissingDependencies) > 0 {
		return domain.NewDeployError(opCompat, domain.ErrPreconditionFailed, fmt.Sprintf(
			"dependency versions not configured: set %s in the host UI dependencies",
			strings.Join(report.MissingDependencies, ", ")), nil)
	}

	if len(report.Mismatches) == 0 {
		return nil
	}

	for _, m := range report.Mismatches {
		o.progress.Warn("%s", m.String())
	}
	ok, err := o.prompter.Confirm(ctx, "Continue despite mismatch?", false)
	if err != nil {
		return domain.NewDeployError(opCompat, domain.ErrUserRejected, "no answer", err)
	}
	if !ok {
		return domain.NewDeployError(opCompat, domain.ErrUserRejected,
			"React version mismatch not accepted; install the versions the host UI supports", nil)
	}
	return nil
}
