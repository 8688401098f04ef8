// Package notify posts the outcome of a run to chat webhooks.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first pass after one
	NotifyRecovery NotifyOn = "recovery"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 10 * time.Second

// ParseNotifyOn validates a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(strings.ToLower(strings.TrimSpace(s))); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
}

// Summary is what notifiers report about one run.
type Summary struct {
	RunID    string        `json:"run_id"`
	File     string        `json:"file"`
	Total    int           `json:"total"`
	Executed int           `json:"executed"`
	Passed   int           `json:"passed"`
	NotRun   int           `json:"not_run"`
	Duration time.Duration `json:"duration"`
	// Failure describes the status mismatch that stopped the run.
	Failure string `json:"failure,omitempty"`
	// Error is the fatal error that aborted the run.
	Error      string `json:"error,omitempty"`
	IsRecovery bool   `json:"is_recovery,omitempty"`
}

// Success reports whether every test ran and passed.
func (s *Summary) Success() bool {
	return s.Failure == "" && s.Error == "" && s.Passed == s.Total
}

// NewSummary condenses a run outcome. res may be nil when the suite never started.
func NewSummary(file string, res *runner.RunResult, runErr error) *Summary {
	s := &Summary{File: file}
	if res != nil {
		s.RunID = res.ID.String()
		s.File = res.File
		s.Total = res.Total
		s.Executed = res.Executed()
		s.Passed = res.Passed
		s.NotRun = res.NotRun()
		s.Duration = res.Duration
		if res.Failure != nil {
			s.Failure = res.Failure.Error()
		}
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(ctx context.Context, summary *Summary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager sends summaries to every notifier its policy allows.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// ShouldNotify applies the policy to summary and records the outcome for
// recovery detection.
func (m *Manager) ShouldNotify(summary *Summary) bool {
	success := summary.Success()
	defer func() { m.lastState = success }()

	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifyFailure:
		return !success
	case NotifySuccess:
		return success
	case NotifyRecovery:
		if !m.lastState && success {
			summary.IsRecovery = true
			return true
		}
		return !success
	}
	return false
}

// Notify sends summary through every notifier and returns the last error.
func (m *Manager) Notify(ctx context.Context, summary *Summary) error {
	if !m.ShouldNotify(summary) {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}
	return lastErr
}

// postJSON sends payload to a webhook and treats any non-2xx answer as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req := http.NewRequest("POST", url).
		SetHeader(http.HeaderContentType, http.ContentTypeJSON).
		SetBody(data)

	resp, err := client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, resp.BodyString())
	}
	return nil
}

func headline(summary *Summary) string {
	switch {
	case summary.Error != "":
		return "Run aborted"
	case summary.Failure != "":
		return "Test failed"
	case summary.IsRecovery:
		return "Tests recovered!"
	default:
		return "All tests passed!"
	}
}
