package runner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// State is the lifecycle position of a single test.
type State int

const (
	StatePending State = iota
	StateExecuted
	StatePassed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuted:
		return "executed"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type TestResult struct {
	Index    int
	Name     string
	Positive bool
	State    State
	Expected int
	Actual   int
	Duration time.Duration
	Request  *http.Request
	Response *http.Response
	// Captured holds the environment entries written by this test.
	Captured map[string]string
	Error    error
}

func (t *TestResult) Passed() bool {
	return t.State == StatePassed
}

// StatusMismatch is the first test whose response status differed from the
// expected one. A run stops there.
type StatusMismatch struct {
	Index    int
	Name     string
	Expected int
	Actual   int
}

func (m *StatusMismatch) Error() string {
	return fmt.Sprintf("test %d %q: expected status %d, got %d", m.Index, m.Name, m.Expected, m.Actual)
}

type RunResult struct {
	ID        uuid.UUID
	File      string
	StartedAt time.Time
	Results   []*TestResult
	Passed    int
	Total     int
	Failure   *StatusMismatch
	// NotRunNames lists, in order, the tests never attempted.
	NotRunNames []string
	Duration    time.Duration
	Latency     LatencySummary
}

// Success reports whether every test in the suite passed.
func (r *RunResult) Success() bool {
	return r.Failure == nil && r.Passed == r.Total
}

// Executed is the number of tests that were attempted.
func (r *RunResult) Executed() int {
	return len(r.Results)
}

// NotRun is the number of tests never attempted because the run stopped early.
func (r *RunResult) NotRun() int {
	return r.Total - len(r.Results)
}
