package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// ErrRequestFailed wraps transport errors: refused connections, timeouts,
// TLS failures. No status code was received.
var ErrRequestFailed = errors.New("request failed")

// maxLoggedBody caps response bodies in trace logs.
const maxLoggedBody = 4096

type Config struct {
	// Timeout bounds each request. Zero means no limit.
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	Insecure       bool
	Proxy          string
	DefaultHeaders map[string]string
	// Rate caps requests per second. Zero disables pacing.
	Rate    float64
	WaitFor *WaitFor
}

func DefaultConfig() *Config {
	return &Config{
		FollowRedirect: true,
		MaxRedirects:   http.DefaultMaxRedirects,
	}
}

// Observer receives progress callbacks while a suite runs.
type Observer interface {
	TestStarted(tc *suite.TestCase)
	TestFinished(result *TestResult)
}

type nopObserver struct{}

func (nopObserver) TestStarted(*suite.TestCase) {}
func (nopObserver) TestFinished(*TestResult) {}

type Option func(*Runner)

func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithHTTPClient replaces the client built from Config.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runner) {
		r.client = c
	}
}

type Runner struct {
	client   *http.Client
	config   *Config
	limiter  *rate.Limiter
	observer Observer
	logger   zerolog.Logger
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	r := &Runner{
		config:   cfg,
		observer: nopObserver{},
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		clientOpts := []http.ClientOption{
			http.WithFollowRedirects(cfg.FollowRedirect),
			http.WithValidateSSL(!cfg.Insecure),
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxRedirects > 0 {
			clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
		}
		if cfg.Proxy != "" {
			clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
		}
		if len(cfg.DefaultHeaders) > 0 {
			clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.DefaultHeaders))
		}
		r.client = http.NewClient(clientOpts...)
	}

	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	return r
}

// Run executes the tests of file in order against the environment in store.
// The store is updated in place by setEnv rules.
//
// A status mismatch is not an error: it is reported in RunResult.Failure.
// Any returned error comes with the result collected so far.
func (r *Runner) Run(ctx context.Context, file *suite.File, store *env.Store) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		ID:        uuid.New(),
		File:      file.Path,
		StartedAt: start,
		Total:     len(file.Tests),
	}

	latency := newLatencyRecorder()
	finish := func() *RunResult {
		result.Duration = time.Since(start)
		result.Latency = latency.Summary()
		for _, tc := range file.Tests[len(result.Results):] {
			result.NotRunNames = append(result.NotRunNames, tc.Name)
		}
		return result
	}

	resolver := env.NewResolver(store)
	resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn().Msgf(format, args...)
	})

	log := r.logger.With().Str("run", result.ID.String()).Str("file", file.Path).Logger()
	log.Debug().Int("tests", len(file.Tests)).Msg("starting run")

	if err := r.waitForService(ctx, resolver); err != nil {
		return finish(), err
	}

	for _, tc := range file.Tests {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return finish(), err
			}
		}

		r.observer.TestStarted(tc)
		tr, err := r.runTest(ctx, tc, resolver)
		result.Results = append(result.Results, tr)
		if tr.Response != nil {
			latency.Record(tr.Duration)
		}
		r.observer.TestFinished(tr)

		if err != nil {
			log.Debug().Err(err).Int("test", tc.Index).Msg("run aborted")
			return finish(), err
		}

		if tr.State == StateFailed {
			result.Failure = &StatusMismatch{
				Index:    tr.Index,
				Name:     tr.Name,
				Expected: tr.Expected,
				Actual:   tr.Actual,
			}
			log.Debug().Int("test", tc.Index).Msg("status mismatch, stopping")
			return finish(), nil
		}

		result.Passed++
	}

	log.Debug().Int("passed", result.Passed).Msg("run finished")
	return finish(), nil
}

func (r *Runner) runTest(ctx context.Context, tc *suite.TestCase, resolver *env.Resolver) (*TestResult, error) {
	tr := &TestResult{
		Index:    tc.Index,
		Name:     tc.Name,
		Positive: tc.Positive,
		State:    StatePending,
		Expected: tc.Response.Status,
	}

	fail := func(err error) (*TestResult, error) {
		tr.Error = err
		return tr, fmt.Errorf("test %d %q: %w", tc.Index, tc.Name, err)
	}

	req, err := http.BuildRequest(tc.Request, resolver)
	if err != nil {
		return fail(err)
	}
	tr.Request = req

	r.logger.Debug().
		Int("test", tc.Index).
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("sending request")
	if req.Body != nil {
		r.logger.Trace().Int("test", tc.Index).RawJSON("body", req.Body).Msg("request body")
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	tr.Response = resp
	tr.Actual = resp.StatusCode
	tr.Duration = resp.Duration
	tr.State = StateExecuted

	r.logger.Debug().
		Int("test", tc.Index).
		Int("status", resp.StatusCode).
		Dur("duration", resp.Duration).
		Msg("received response")
	r.logger.Trace().Int("test", tc.Index).Str("body", resp.Preview(maxLoggedBody)).Msg("response body")

	if resp.StatusCode != tc.Response.Status {
		tr.State = StateFailed
		return tr, nil
	}

	if tc.UpdatesEnv() {
		store := resolver.Store()
		if err := capture.Apply(resp, tc.SetEnv, store); err != nil {
			return fail(err)
		}
		tr.Captured = make(map[string]string, len(tc.SetEnv))
		for _, rule := range tc.SetEnv {
			tr.Captured[rule.EnvKey], _ = store.Lookup(rule.EnvKey)
		}
	}

	tr.State = StatePassed
	return tr, nil
}
