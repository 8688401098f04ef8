package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// JUnitTestSuites is the document root. A run of one suite file yields a
// single <testsuite>.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	ID        string          `xml:"id,attr,omitempty"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
	SystemErr string          `xml:"system-err,omitempty"`
}

// JUnitTestCase is one suite entry. At most one of Failure, Error and
// Skipped is set.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitProblem `xml:"failure,omitempty"`
	Error     *JUnitProblem `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitProblem is the body of a <failure> or <error> element.
type JUnitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter buffers results and writes one XML document on Flush.
type JUnitFormatter struct {
	writer io.Writer
	suites []JUnitTestSuite
	errs   int
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatHeader(string) {}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	ts := JUnitTestSuite{
		Name:      result.File,
		ID:        result.ID.String(),
		Tests:     result.Total,
		Time:      result.Duration.Seconds(),
		Timestamp: result.StartedAt.Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, result.Total),
	}

	for _, r := range result.Results {
		tc := junitCase(result.File, r)
		if tc.Error != nil {
			ts.Errors++
		}
		if tc.Failure != nil {
			ts.Failures++
		}
		ts.TestCases = append(ts.TestCases, tc)
	}

	first := len(result.Results)
	for i, name := range result.NotRunNames {
		ts.Skipped++
		ts.TestCases = append(ts.TestCases, JUnitTestCase{
			Name:      caseName(first+i, name),
			ClassName: result.File,
			Skipped:   &JUnitSkipped{Message: "not run"},
		})
	}

	f.suites = append(f.suites, ts)
}

func junitCase(file string, r *runner.TestResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      caseName(r.Index, r.Name),
		ClassName: file,
		Time:      r.Duration.Seconds(),
	}
	switch {
	case r.Error != nil:
		tc.Error = &JUnitProblem{Message: r.Error.Error(), Type: "Error"}
	case r.State == runner.StateFailed:
		tc.Failure = &JUnitProblem{
			Message: "Unexpected status",
			Type:    "StatusMismatch",
			Content: fmt.Sprintf("expected=%d got=%d", r.Expected, r.Actual),
		}
	}
	return tc
}

func caseName(index int, name string) string {
	return fmt.Sprintf("%d: %s", index, name)
}

// FormatError attaches err to the last suite. Before any result it counts
// as a suite-level error.
func (f *JUnitFormatter) FormatError(err error) {
	if n := len(f.suites); n > 0 {
		f.suites[n-1].SystemErr = err.Error()
		return
	}
	f.errs++
}

func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	doc := JUnitTestSuites{
		Name:       "hitchain",
		Errors:     f.errs,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.suites,
	}
	for _, s := range f.suites {
		doc.Tests += s.Tests
		doc.Failures += s.Failures
		doc.Errors += s.Errors
		doc.Skipped += s.Skipped
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f.writer)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
