package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory]...",
	Short: "List the tests in test suites",
	Long: `List the tests defined in suites, in the order they run.

Examples:
  hitchain list
  hitchain list suites/users.yaml
  hitchain list ./suites/`,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return configError(err)
	}

	if len(files) == 0 {
		return configError(fmt.Errorf("no .json, .yaml or .yml suites found"))
	}

	var firstErr error
	for _, path := range files {
		f, err := suite.LoadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", path)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, tc := range f.Tests {
			fmt.Fprintf(tw, "  %d\t%s\t%s %s\texpect %d\t%s\n",
				tc.Index, tc.Name, tc.Request.Method, tc.Request.Path, tc.Response.Status, testNotes(tc))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if firstErr != nil {
		return silent(firstErr)
	}
	return nil
}

func testNotes(tc *suite.TestCase) string {
	var notes []string
	if !tc.Positive {
		notes = append(notes, "negative")
	}
	if tc.Request.WithToken {
		notes = append(notes, "token")
	}
	if tc.UpdatesEnv() {
		keys := make([]string, 0, len(tc.SetEnv))
		for _, rule := range tc.SetEnv {
			keys = append(keys, rule.EnvKey)
		}
		notes = append(notes, "sets "+strings.Join(keys, ", "))
	}
	return strings.Join(notes, "  ")
}
