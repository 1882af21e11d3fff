package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// usageError marks a bad invocation: unknown flags, wrong arguments, or
// unreadable input files.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// errIntegrity is returned by check when the report lists problems.
var errIntegrity = errors.New("integrity check found problems")

// exitCode maps an error to the process exit code. Caller mistakes
// (validation, conflicts, missing entities, broken references) exit 1;
// storage failures and anything unclassified exit 2.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUserError
	}
	switch types.KindOf(err) {
	case types.KindValidation, types.KindConflict, types.KindNotFound, types.KindReferentialIntegrity:
		return exitUserError
	default:
		return exitSysError
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return wrapArgs(cobra.ExactArgs(n))
}

// minimumArgs is cobra.MinimumNArgs reporting a usage error.
func minimumArgs(n int) cobra.PositionalArgs {
	return wrapArgs(cobra.MinimumNArgs(n))
}

func wrapArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageErrorf("%s: %v", cmd.CommandPath(), err)
		}
		return nil
	}
}
