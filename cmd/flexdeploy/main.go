package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess            = 0
	ExitConfigError        = 1
	ExitInvalidArgument    = 2
	ExitPreconditionFailed = 3
	ExitConflict           = 4
	ExitForbidden          = 5
	ExitUserRejected       = 6
	ExitNotFound           = 7
	ExitRemoteError        = 8
	ExitLedgerError        = 9
)

// CLIError represents a failure outside the deploy pipeline itself.
type CLIError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode
	}

	switch domain.KindOf(err) {
	case domain.ErrInvalidArgument:
		return ExitInvalidArgument
	case domain.ErrPreconditionFailed:
		return ExitPreconditionFailed
	case domain.ErrConflict:
		return ExitConflict
	case domain.ErrForbidden:
		return ExitForbidden
	case domain.ErrUserRejected:
		return ExitUserRejected
	case domain.ErrNotFound:
		return ExitNotFound
	case domain.ErrRemote:
		return ExitRemoteError
	default:
		return ExitConfigError
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}
