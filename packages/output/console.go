package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) TestStarted(tc *suite.TestCase) {
	fmt.Fprintf(f.writer, "Test %d: %s\n", tc.Index, tc.Name)
}

func (f *ConsoleFormatter) TestFinished(r *runner.TestResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	switch r.State {
	case runner.StatePassed:
		if f.verbose {
			fmt.Fprintf(f.writer, "%s %s\n", green("OK"), cyan(fmt.Sprintf("(%d %dms)", r.Actual, r.Duration.Milliseconds())))
			keys := make([]string, 0, len(r.Captured))
			for key := range r.Captured {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(f.writer, "  %s = %s\n", key, r.Captured[key])
			}
			return
		}
		fmt.Fprintln(f.writer, green("OK"))
	case runner.StateFailed:
		fmt.Fprintln(f.writer, red(fmt.Sprintf("FAILED: %s expected=%d got=%d", r.Name, r.Expected, r.Actual)))
		fmt.Fprintln(f.writer)
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	if !result.Success() {
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold(green("Great success!")))
	fmt.Fprintf(f.writer, "Test took: %s s.\n", strconv.FormatFloat(result.Duration.Seconds(), 'f', -1, 64))

	if f.verbose && result.Latency.Count > 0 {
		l := result.Latency
		fmt.Fprintf(f.writer, "Latency: min=%v p50=%v p95=%v p99=%v max=%v\n", l.Min, l.P50, l.P95, l.P99, l.Max)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	if !f.verbose {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitchain"), version)
}
