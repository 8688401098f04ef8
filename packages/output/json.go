package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string       `json:"runId,omitempty"`
	File     string       `json:"file,omitempty"`
	Summary  JSONSummary  `json:"summary"`
	Tests    []JSONTest   `json:"tests"`
	Failure  *JSONFailure `json:"failure,omitempty"`
	Errors   []string     `json:"errors,omitempty"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total    int  `json:"total"`
	Executed int  `json:"executed"`
	Passed   int  `json:"passed"`
	Failed   int  `json:"failed"`
	NotRun   int  `json:"notRun"`
	Success  bool `json:"success"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Index    int               `json:"index"`
	Name     string            `json:"name"`
	Positive bool              `json:"positive"`
	State    string            `json:"state"`
	Expected int               `json:"expected"`
	Actual   int               `json:"actual,omitempty"`
	Duration float64           `json:"duration"`
	Error    string            `json:"error,omitempty"`
	Request  *JSONRequest      `json:"request,omitempty"`
	Response *JSONResponse     `json:"response,omitempty"`
	Captured map[string]string `json:"captured,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONFailure is the status mismatch that stopped the run
type JSONFailure struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// JSONLatency summarizes response times in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer io.Writer
	output JSONOutput
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		output: JSONOutput{Tests: make([]JSONTest, 0)},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	out := &f.output
	out.RunID = result.ID.String()
	out.File = result.File

	for _, r := range result.Results {
		test := JSONTest{
			Index:    r.Index,
			Name:     r.Name,
			Positive: r.Positive,
			State:    r.State.String(),
			Expected: r.Expected,
			Actual:   r.Actual,
			Duration: ms(r.Duration),
			Error:    errorText(r.Error),
			Captured: r.Captured,
		}

		if r.Request != nil {
			test.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Headers: r.Request.Headers,
			}
		}

		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Duration:   ms(r.Response.Duration),
			}
		}

		out.Tests = append(out.Tests, test)
	}

	failed := 0
	if result.Failure != nil {
		failed = 1
		out.Failure = &JSONFailure{
			Index:    result.Failure.Index,
			Name:     result.Failure.Name,
			Expected: result.Failure.Expected,
			Actual:   result.Failure.Actual,
		}
	}

	out.Summary = JSONSummary{
		Total:    result.Total,
		Executed: result.Executed(),
		Passed:   result.Passed,
		Failed:   failed,
		NotRun:   result.NotRun(),
		Success:  result.Success(),
	}

	if l := result.Latency; l.Count > 0 {
		out.Latency = &JSONLatency{
			Min:  ms(l.Min),
			Max:  ms(l.Max),
			Mean: ms(l.Mean),
			P50:  ms(l.P50),
			P95:  ms(l.P95),
			P99:  ms(l.P99),
		}
	}
}

func (f *JSONFormatter) FormatError(err error) {
	f.output.Errors = append(f.output.Errors, err.Error())
	f.output.Summary.Success = false
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	f.output.Duration = ms(totalDuration)
	f.output.Time = time.Now().Format(time.RFC3339)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.output)
}
