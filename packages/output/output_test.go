package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

func passingRun() *runner.RunResult {
	return &runner.RunResult{
		ID:        uuid.New(),
		File:      "conf/test_cases.json",
		StartedAt: time.Now(),
		Total:     2,
		Passed:    2,
		Duration:  1250 * time.Millisecond,
		Results: []*runner.TestResult{
			{
				Index: 0, Name: "Login", Positive: true, State: runner.StatePassed,
				Expected: 200, Actual: 200, Duration: 5 * time.Millisecond,
				Request:  &http.Request{Method: "POST", URL: "http://127.0.0.1:8080/v1/login"},
				Response: &http.Response{StatusCode: 200, Status: "200 OK", Duration: 5 * time.Millisecond},
				Captured: map[string]string{"authToken": "abc"},
			},
			{
				Index: 1, Name: "Me", Positive: true, State: runner.StatePassed,
				Expected: 200, Actual: 200, Duration: 3 * time.Millisecond,
			},
		},
		Latency: runner.LatencySummary{Count: 2, Min: 3 * time.Millisecond, Max: 5 * time.Millisecond, P50: 3 * time.Millisecond},
	}
}

func failingRun() *runner.RunResult {
	r := passingRun()
	r.Total = 3
	r.Passed = 1
	r.Results[1].State = runner.StateFailed
	r.Results[1].Actual = 404
	r.Failure = &runner.StatusMismatch{Index: 1, Name: "Me", Expected: 200, Actual: 404}
	r.NotRunNames = []string{"Logout"}
	return r
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"console", "JSON", " junit ", "tap", "xlsx", "HTML"} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)

	assert.True(t, IsBinary(FormatXLSX))
	assert.False(t, IsBinary(FormatJSON))
}

func TestConsoleFormatter_Success(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	res := passingRun()

	for i, tr := range res.Results {
		f.TestStarted(&suite.TestCase{Index: i, Name: tr.Name})
		f.TestFinished(tr)
	}
	f.FormatResult(res)

	expected := "Test 0: Login\nOK\nTest 1: Me\nOK\n\nGreat success!\nTest took: 1.25 s.\n"
	assert.Equal(t, expected, buf.String())
}

func TestConsoleFormatter_Failure(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	res := failingRun()

	for i, tr := range res.Results {
		f.TestStarted(&suite.TestCase{Index: i, Name: tr.Name})
		f.TestFinished(tr)
	}
	f.FormatResult(res)

	out := buf.String()
	assert.Contains(t, out, "Test 1: Me\nFAILED: Me expected=200 got=404\n")
	assert.NotContains(t, out, "Great success!")
	assert.NotContains(t, out, "Logout")
}

func TestConsoleFormatter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	res := passingRun()

	f.FormatHeader("1.0.0")
	f.TestFinished(res.Results[0])
	f.FormatResult(res)

	out := buf.String()
	assert.Contains(t, out, "hitchain 1.0.0")
	assert.Contains(t, out, "OK (200 5ms)")
	assert.Contains(t, out, "authToken = abc")
	assert.Contains(t, out, "Latency: min=3ms")
}

func TestConsoleFormatter_Error(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatError(errors.New(`missing environment key "clientId"`))
	assert.Equal(t, "Error: missing environment key \"clientId\"\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	res := failingRun()

	f.FormatResult(res)
	require.NoError(t, f.Flush(2*time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, res.ID.String(), out.RunID)
	assert.Equal(t, JSONSummary{Total: 3, Executed: 2, Passed: 1, Failed: 1, NotRun: 1}, out.Summary)
	require.Len(t, out.Tests, 2)
	assert.Equal(t, "passed", out.Tests[0].State)
	assert.Equal(t, "abc", out.Tests[0].Captured["authToken"])
	assert.Equal(t, "POST", out.Tests[0].Request.Method)
	assert.Equal(t, 200, out.Tests[0].Response.StatusCode)
	require.NotNil(t, out.Failure)
	assert.Equal(t, 404, out.Failure.Actual)
	assert.Equal(t, 2000.0, out.Duration)
	require.NotNil(t, out.Latency)
	assert.Equal(t, 3.0, out.Latency.Min)
}

func TestJSONFormatter_Error(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	res := passingRun()
	res.Passed = 1
	res.Results = res.Results[:1]
	f.FormatResult(res)
	f.FormatError(errors.New("boom"))
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []string{"boom"}, out.Errors)
	assert.False(t, out.Summary.Success)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))

	f.FormatResult(failingRun())
	require.NoError(t, f.Flush(time.Second))

	assert.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Skipped)
	require.Len(t, suites.TestSuites, 1)

	cases := suites.TestSuites[0].TestCases
	require.Len(t, cases, 3)
	assert.Equal(t, "0: Login", cases[0].Name)
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, "expected=200 got=404", cases[1].Failure.Content)
	assert.Equal(t, "2: Logout", cases[2].Name)
	assert.NotNil(t, cases[2].Skipped)
}

func TestJUnitFormatter_Error(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))

	res := passingRun()
	res.Results[1].State = runner.StateExecuted
	res.Results[1].Error = errors.New("response has no field \"id\"")
	res.Passed = 1
	f.FormatResult(res)
	f.FormatError(res.Results[1].Error)
	require.NoError(t, f.Flush(time.Second))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 1, suites.Errors)
	assert.Contains(t, suites.TestSuites[0].SystemErr, "no field")
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))

	f.FormatResult(failingRun())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	assert.Contains(t, out, "TAP version 13\n1..3\n")
	assert.Contains(t, out, "ok 1 - Login\n")
	assert.Contains(t, out, "not ok 2 - Me\n  ---\n  expected: 200\n  got: 404\n  ...\n")
	assert.Contains(t, out, "ok 3 - Logout # SKIP not run\n")
}

func TestTAPFormatter_BailOut(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))

	f.FormatError(errors.New("malformed test suite"))
	require.NoError(t, f.Flush(0))

	assert.Contains(t, buf.String(), "1..0\nBail out! malformed test suite\n")
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"key: \"v\""`, escapeYAML(`key: "v"`))
}

func TestXLSXFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewXLSXFormatter(&buf)

	f.FormatHeader("1.0.0")
	f.FormatResult(failingRun())
	require.NoError(t, f.Flush(time.Second))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(xlsxSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, xlsxHeaders, rows[0])
	assert.Equal(t, "Login", rows[1][1])
	assert.Equal(t, "failed", rows[2][7])
	assert.Equal(t, "Logout", rows[3][1])
	assert.Equal(t, "not run", rows[3][7])

	summary, err := book.GetRows(xlsxSummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"File", "conf/test_cases.json"}, summary[1])
}

func TestHTMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHTMLFormatter(HTMLWithWriter(&buf))

	f.FormatHeader("1.2.3")
	res := failingRun()
	res.Results[0].Captured = map[string]string{"authToken": "<abc>"}
	f.FormatResult(res)
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "hitchain 1.2.3")
	assert.Contains(t, out, res.ID.String())
	assert.Contains(t, out, `<tr class="failed">`)
	assert.Contains(t, out, `<tr class="notrun">`)
	assert.Contains(t, out, "POST http://127.0.0.1:8080/v1/login")
	assert.Contains(t, out, "expected status 200, got 404")
	assert.Contains(t, out, "&lt;abc&gt;")
	assert.NotContains(t, out, "<abc>")
}

func TestHTMLFormatter_ErrorOnly(t *testing.T) {
	var buf bytes.Buffer
	f := NewHTMLFormatter(HTMLWithWriter(&buf))

	f.FormatError(errors.New("test 2: missing field \"request\""))
	require.NoError(t, f.Flush(0))

	out := buf.String()
	assert.Contains(t, out, `<div class="alert">test 2: missing field &#34;request&#34;</div>`)
	assert.NotContains(t, out, "<tr class=")
}
