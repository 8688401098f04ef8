package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// TAPFormatter writes TAP version 13. Test points are buffered because the
// plan line has to come first.
type TAPFormatter struct {
	writer io.Writer
	points strings.Builder
	count  int
	bail   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatHeader(string) {}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		switch {
		case r.Error != nil:
			f.point(false, r.Name, "", "message", escapeYAML(r.Error.Error()), "severity", "error")
		case r.Passed():
			f.point(true, r.Name, "")
		default:
			f.point(false, r.Name, "", "expected", fmt.Sprint(r.Expected), "got", fmt.Sprint(r.Actual))
		}
	}
	for _, name := range result.NotRunNames {
		f.point(true, name, "SKIP not run")
	}
}

// point records one test line followed by an optional YAML block built from
// key, value pairs.
func (f *TAPFormatter) point(ok bool, name, directive string, diag ...string) {
	f.count++
	if !ok {
		f.points.WriteString("not ")
	}
	fmt.Fprintf(&f.points, "ok %d - %s", f.count, name)
	if directive != "" {
		f.points.WriteString(" # " + directive)
	}
	f.points.WriteByte('\n')

	if len(diag) == 0 {
		return
	}
	f.points.WriteString("  ---\n")
	for i := 0; i+1 < len(diag); i += 2 {
		fmt.Fprintf(&f.points, "  %s: %s\n", diag[i], diag[i+1])
	}
	f.points.WriteString("  ...\n")
}

// FormatError becomes a bail out line when no test was recorded. Errors after
// tests ran are already part of their test point.
func (f *TAPFormatter) FormatError(err error) {
	f.bail = append(f.bail, err.Error())
}

func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	w := bufio.NewWriter(f.writer)
	fmt.Fprintf(w, "TAP version 13\n1..%d\n", f.count)
	w.WriteString(f.points.String())
	if f.count == 0 {
		for _, msg := range f.bail {
			fmt.Fprintf(w, "Bail out! %s\n", msg)
		}
	}
	fmt.Fprintf(w, "# time %.3fs\n", totalDuration.Seconds())
	return w.Flush()
}

func escapeYAML(s string) string {
	if !strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		return s
	}
	r := strings.NewReplacer(`"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
