package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show runs recorded with --history",
	Long: `Show the latest runs recorded in a history database, or the test
results of a single run when its id is given.

The database is taken from --db, then from the history entry of the
config file.

Examples:
  hitchain history --db .hitchain/history.db
  hitchain history --limit 5
  hitchain history 0b5f7d7e-6c1a-4a6e-9d62-3f1c2b7c1e90`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return usageErrorf("history accepts at most one run id (got %d)", len(args))
		}
		return nil
	},
	RunE: historyCommand,
}

var (
	historyDBFlag     string
	historyLimitFlag  int
	historyConfigFlag string
)

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("HITCHAIN_HISTORY", ""), "History database (env: HITCHAIN_HISTORY)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", getEnvInt("HITCHAIN_HISTORY_LIMIT", history.DefaultLimit), "Number of runs to show (env: HITCHAIN_HISTORY_LIMIT)")
	historyCmd.Flags().StringVar(&historyConfigFlag, "config", getEnvString("HITCHAIN_CONFIG", ""), "Path to config file (env: HITCHAIN_CONFIG)")
}

func historyDatabase() (string, error) {
	if historyDBFlag != "" {
		return historyDBFlag, nil
	}
	cfg, err := config.LoadConfig(historyConfigFlag)
	if err != nil {
		return "", configError(fmt.Errorf("loading config: %w", err))
	}
	if cfg.History == "" {
		return "", usageErrorf("no history database: pass --db or set history in the config file")
	}
	return cfg.History, nil
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path, err := historyDatabase()
	if err != nil {
		return err
	}

	store, err := history.Open(cmd.Context(), path)
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	if len(args) == 1 {
		records, err := store.Tests(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return usageErrorf("no recorded tests for run %s", args[0])
		}
		fmt.Fprintln(tw, "#\tNAME\tSTATE\tEXPECTED\tACTUAL\tDURATION\tERROR")
		for _, r := range records {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
				r.Index, r.Name, r.State, r.Expected, statusText(r.Actual), r.Duration.Round(time.Microsecond), r.Error)
		}
		return tw.Flush()
	}

	runs, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded in %s\n", path)
		return nil
	}

	fmt.Fprintln(tw, "ID\tSTARTED\tFILE\tSTATUS\tPASSED\tDURATION\tP95")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.File, runStatus(r),
			r.Passed, r.Total, r.Duration, r.P95.Round(time.Microsecond))
	}
	return tw.Flush()
}

func runStatus(r *history.Run) string {
	if r.FailedIndex != nil {
		return fmt.Sprintf("%s at %d", r.Status, *r.FailedIndex)
	}
	return r.Status
}

func statusText(code int) string {
	if code == 0 {
		return "-"
	}
	return fmt.Sprint(code)
}
