package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

// Exit codes for hitchain CLI
const (
	// ExitSuccess indicates all tests passed
	ExitSuccess = 0

	// ExitTestFailure indicates a test got an unexpected status
	ExitTestFailure = 1

	// ExitParseError indicates the test suite could not be loaded
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitEnvironmentError indicates a missing environment key or response field
	ExitEnvironmentError = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the process exit code for an error returned by a command.
// Silent errors have already been reported and are not printed again.
type ExitError struct {
	Code   int
	Err    error
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{Code: ExitUsageError, Err: fmt.Errorf(format, args...)}
}

func configError(err error) error {
	return &ExitError{Code: ExitConfigError, Err: err}
}

// silent marks err as already reported.
func silent(err error) error {
	return &ExitError{Code: exitCodeFor(err), Err: err, Silent: true}
}

// exitCodeFor maps an error to the exit code it ends the process with.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var mismatch *runner.StatusMismatch
	switch {
	case errors.As(err, &mismatch):
		return ExitTestFailure
	case errors.Is(err, suite.ErrMalformedInput):
		return ExitParseError
	case errors.Is(err, runner.ErrRequestFailed), errors.Is(err, runner.ErrServiceNotReady):
		return ExitNetworkError
	case errors.Is(err, env.ErrMissingKey),
		errors.Is(err, capture.ErrMissingResponseField),
		errors.Is(err, capture.ErrResponseNotJSON):
		return ExitEnvironmentError
	}
	return ExitTestFailure
}
