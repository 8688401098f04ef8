package output

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

//go:embed report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(d time.Duration) string { return fmt.Sprintf("%dms", d.Milliseconds()) },
}).Parse(reportTemplate))

// HTMLReport is the data handed to the report template.
type HTMLReport struct {
	Version       string
	RunID         string
	File          string
	Generated     string
	Duration      time.Duration
	Total         int
	Passed        int
	Failed        int
	NotRun        int
	PassedPercent float64
	Failure       string
	Errors        []string
	Latency       *runner.LatencySummary
	Tests         []HTMLTest
}

// HTMLTest is one row of the report. Class is the CSS class of the row.
type HTMLTest struct {
	Index    int
	Name     string
	Class    string
	State    string
	Method   string
	URL      string
	Expected int
	Actual   int
	Duration time.Duration
	Error    string
	Captured map[string]string
}

// HTMLFormatter renders a standalone HTML page once the run is over.
type HTMLFormatter struct {
	writer io.Writer
	report HTMLReport
}

type HTMLOption func(*HTMLFormatter)

func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

func (f *HTMLFormatter) FormatHeader(version string) {
	f.report.Version = version
}

func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	rep := &f.report
	rep.RunID = result.ID.String()
	rep.File = result.File
	rep.Total = result.Total
	rep.Passed = result.Passed
	rep.NotRun = result.NotRun()
	rep.Failed = result.Executed() - result.Passed
	if result.Total > 0 {
		rep.PassedPercent = float64(result.Passed) / float64(result.Total) * 100
	}
	if result.Failure != nil {
		rep.Failure = result.Failure.Error()
	}
	if result.Latency.Count > 0 {
		l := result.Latency
		rep.Latency = &l
	}

	for _, r := range result.Results {
		t := HTMLTest{
			Index:    r.Index,
			Name:     r.Name,
			State:    r.State.String(),
			Class:    r.State.String(),
			Expected: r.Expected,
			Actual:   r.Actual,
			Duration: r.Duration,
			Error:    errorText(r.Error),
			Captured: r.Captured,
		}
		if r.Error != nil {
			t.Class = "error"
		}
		if r.Request != nil {
			t.Method = r.Request.Method
			t.URL = r.Request.URL
		}
		rep.Tests = append(rep.Tests, t)
	}

	first := len(result.Results)
	for i, name := range result.NotRunNames {
		rep.Tests = append(rep.Tests, HTMLTest{
			Index: first + i,
			Name:  name,
			State: "not run",
			Class: "notrun",
		})
	}
}

func (f *HTMLFormatter) FormatError(err error) {
	f.report.Errors = append(f.report.Errors, err.Error())
}

func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	f.report.Duration = totalDuration
	f.report.Generated = time.Now().Format("2006-01-02 15:04:05")
	if err := reportTmpl.Execute(f.writer, &f.report); err != nil {
		return fmt.Errorf("rendering HTML report: %w", err)
	}
	return nil
}
