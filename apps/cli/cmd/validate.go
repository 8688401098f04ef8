package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory]...",
	Short: "Validate test suites without sending requests",
	Long: `Validate test suites without executing them.

Each suite is loaded and checked for missing or invalid fields. Keys a
test reads before the suite env or an earlier setEnv rule provides them
are reported as warnings; --strict turns them into errors.

Examples:
  hitchain validate
  hitchain validate conf/test_cases.json
  hitchain validate ./suites/ --seed userId --strict`,
	RunE: validateCommand,
}

var (
	strictFlag bool
	seedFlags  []string
)

func init() {
	validateCmd.Flags().BoolVar(&strictFlag, "strict", false, "Treat unset environment keys as errors")
	validateCmd.Flags().StringSliceVar(&seedFlags, "seed", nil, "Keys provided at run time by --env-file or --env-prefix")
}

// collectFiles expands directories into the suite files they contain.
func collectFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{suite.DefaultPath}
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && suite.IsSuiteFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func validateCommand(cmd *cobra.Command, args []string) error {
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
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		refs := env.UnsetReferences(f, seedFlags...)
		for _, ref := range refs {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: test %d %q reads %q in its %s before it is set\n",
				path, ref.Index, ref.Name, ref.Key, ref.Where)
		}
		if strictFlag && len(refs) > 0 {
			if firstErr == nil {
				firstErr = &env.MissingKeyError{Key: refs[0].Key}
			}
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d tests)\n", path, len(f.Tests))
	}

	if firstErr != nil {
		return silent(fmt.Errorf("validation failed: %w", firstErr))
	}
	return nil
}
