package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hitchain",
	Short: "Chained HTTP API tests from a single file.",
	Long: `hitchain runs a declarative list of HTTP test cases, in order, against
a service listening on a local port. Values captured from one response
feed the requests that follow, so a login token or a created id flows
through the whole suite.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and exits with the code mapped from its error.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Silent {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCodeFor(err))
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsageError, Err: fmt.Errorf("%w\n\n%s", err, cmd.UsageString())}
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
