package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

// fakeService is a small user API: login hands out a token, /me requires it.
type fakeService struct {
	hits map[string]*atomic.Int32
}

func newFakeService(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	fs := &fakeService{hits: map[string]*atomic.Int32{
		"login": {}, "me": {}, "users": {}, "missing": {}, "html": {},
	}}

	r := chi.NewRouter()
	r.Post("/v1/login", func(w http.ResponseWriter, r *http.Request) {
		fs.hits["login"].Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "bob" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "abc", "user": {"id": 7}}`))
	})
	r.Get("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		fs.hits["me"].Add(1)
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "client": "` + r.Header.Get("X-Client-ID") + `"}`))
	})
	r.Get("/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		fs.hits["users"].Add(1)
		if chi.URLParam(r, "id") != "7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": 7}`))
	})
	r.Get("/v1/missing", func(w http.ResponseWriter, r *http.Request) {
		fs.hits["missing"].Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/v1/html", func(w http.ResponseWriter, r *http.Request) {
		fs.hits["html"].Add(1)
		_, _ = w.Write([]byte("<html></html>"))
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, fs
}

func testCase(index int, name string, positive bool, method, path string, withToken bool, status int, rules ...suite.ExtractionRule) *suite.TestCase {
	return &suite.TestCase{
		Index:    index,
		Name:     name,
		Positive: positive,
		Request:  &suite.RequestSpec{Method: method, Path: path, WithToken: withToken},
		Response: &suite.Expectation{Status: status},
		SetEnv:   rules,
	}
}

func login(index int) *suite.TestCase {
	tc := testCase(index, "Login", true, "POST", "/v1/login", false, 200,
		suite.ExtractionRule{ResponseKey: "token", EnvKey: "authToken"})
	tc.Request.Body = map[string]any{"username": "${user}"}
	return tc
}

func newStore(server *httptest.Server) *env.Store {
	return env.Bootstrap(server.URL, map[string]string{"clientId": "web", "user": "bob"})
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) TestStarted(tc *suite.TestCase) {
	o.events = append(o.events, "start:"+tc.Name)
}

func (o *recordingObserver) TestFinished(r *TestResult) {
	o.events = append(o.events, "finish:"+r.Name+":"+r.State.String())
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
		assert.True(t, r.config.FollowRedirect)
		assert.Nil(t, r.limiter)
	})

	t.Run("with rate", func(t *testing.T) {
		r := NewRunner(&Config{Rate: 5})
		assert.NotNil(t, r.limiter)
	})
}

func TestRunner_AllPass(t *testing.T) {
	server, _ := newFakeService(t)
	file := &suite.File{Path: "suite.json", Tests: []*suite.TestCase{
		login(0),
		testCase(1, "Me", true, "GET", "/v1/me", true, 200,
			suite.ExtractionRule{ResponseKey: "id", EnvKey: "userId"}),
		testCase(2, "User", true, "GET", "/v1/users/${userId}", false, 200),
	}}

	store := newStore(server)
	result, err := NewRunner(nil).Run(context.Background(), file, store)

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Nil(t, result.Failure)
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.NotRun())
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.ID.String())
	assert.Equal(t, int64(3), result.Latency.Count)
	assert.LessOrEqual(t, result.Latency.Min, result.Latency.Max)

	token, _ := store.Get("authToken")
	assert.Equal(t, "abc", token)
	userID, _ := store.Get("userId")
	assert.Equal(t, "7", userID)

	assert.Equal(t, map[string]string{"authToken": "abc"}, result.Results[0].Captured)
	for _, tr := range result.Results {
		assert.Equal(t, StatePassed, tr.State)
	}
}

func TestRunner_TokenPropagation(t *testing.T) {
	server, fs := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{
		login(0),
		testCase(1, "Me", true, "GET", "/v1/me", true, 200),
	}}

	result, err := NewRunner(nil).Run(context.Background(), file, newStore(server))

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, "Bearer abc", result.Results[1].Request.Headers["Authorization"])
	assert.Equal(t, "web", result.Results[1].Request.Headers["X-Client-ID"])
	assert.Equal(t, int32(1), fs.hits["me"].Load())
}

func TestRunner_StopsAtFirstMismatch(t *testing.T) {
	server, fs := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{
		login(0),
		testCase(1, "Missing", true, "GET", "/v1/missing", false, 200),
		testCase(2, "Me", true, "GET", "/v1/me", true, 200),
	}}

	obs := &recordingObserver{}
	result, err := NewRunner(nil, WithObserver(obs)).Run(context.Background(), file, newStore(server))

	require.NoError(t, err)
	assert.False(t, result.Success())
	require.NotNil(t, result.Failure)
	assert.Equal(t, 1, result.Failure.Index)
	assert.Equal(t, "Missing", result.Failure.Name)
	assert.Equal(t, 200, result.Failure.Expected)
	assert.Equal(t, 404, result.Failure.Actual)
	assert.Contains(t, result.Failure.Error(), "expected status 200, got 404")

	assert.Equal(t, 1, result.Passed)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, 1, result.NotRun())
	assert.Equal(t, []string{"Me"}, result.NotRunNames)
	assert.Equal(t, StateFailed, result.Results[1].State)
	assert.Equal(t, int32(0), fs.hits["me"].Load())

	assert.Equal(t, []string{
		"start:Login", "finish:Login:passed",
		"start:Missing", "finish:Missing:failed",
	}, obs.events)
}

func TestRunner_NegativeTestDoesNotUpdateEnv(t *testing.T) {
	server, _ := newFakeService(t)
	tc := testCase(0, "Missing", false, "GET", "/v1/missing", false, 404,
		suite.ExtractionRule{ResponseKey: "id", EnvKey: "userId"})
	file := &suite.File{Tests: []*suite.TestCase{tc}}

	store := newStore(server)
	result, err := NewRunner(nil).Run(context.Background(), file, store)

	require.NoError(t, err)
	assert.True(t, result.Success())
	_, ok := store.Lookup("userId")
	assert.False(t, ok)
	assert.Nil(t, result.Results[0].Captured)
}

func TestRunner_WrongCredentialsIsMismatch(t *testing.T) {
	server, _ := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{login(0)}}

	store := env.Bootstrap(server.URL, map[string]string{"clientId": "web", "user": "eve"})
	result, err := NewRunner(nil).Run(context.Background(), file, store)

	require.NoError(t, err)
	require.NotNil(t, result.Failure)
	assert.Equal(t, 401, result.Failure.Actual)
	_, ok := store.Lookup("authToken")
	assert.False(t, ok)
}

func TestRunner_MissingResponseFieldIsFatal(t *testing.T) {
	server, fs := newFakeService(t)
	first := login(0)
	first.SetEnv = []suite.ExtractionRule{{ResponseKey: "refresh", EnvKey: "refreshToken"}}
	file := &suite.File{Tests: []*suite.TestCase{
		first,
		testCase(1, "Me", true, "GET", "/v1/me", true, 200),
	}}

	result, err := NewRunner(nil).Run(context.Background(), file, newStore(server))

	require.Error(t, err)
	assert.True(t, errors.Is(err, capture.ErrMissingResponseField))
	require.NotNil(t, result)
	assert.Len(t, result.Results, 1)
	assert.Equal(t, StateExecuted, result.Results[0].State)
	assert.Error(t, result.Results[0].Error)
	assert.Equal(t, int32(0), fs.hits["me"].Load())
}

func TestRunner_NonJSONBodyIsFatal(t *testing.T) {
	server, _ := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "Html", true, "GET", "/v1/html", false, 200,
			suite.ExtractionRule{ResponseKey: "id", EnvKey: "userId"}),
	}}

	_, err := NewRunner(nil).Run(context.Background(), file, newStore(server))
	assert.ErrorIs(t, err, capture.ErrResponseNotJSON)
}

func TestRunner_MissingKeyIsFatal(t *testing.T) {
	server, fs := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "Me", true, "GET", "/v1/me", true, 200),
	}}

	result, err := NewRunner(nil).Run(context.Background(), file, newStore(server))

	require.Error(t, err)
	var mk *env.MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.Equal(t, "authToken", mk.Key)
	assert.Equal(t, StatePending, result.Results[0].State)
	assert.Equal(t, int32(0), fs.hits["me"].Load())
}

func TestRunner_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	store := newStore(server)
	server.Close()

	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "Health", true, "GET", "/health", false, 200),
	}}

	result, err := NewRunner(nil).Run(context.Background(), file, store)

	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Nil(t, result.Failure)
	assert.Equal(t, int64(0), result.Latency.Count)
}

func TestRunner_UnresolvedPathPlaceholderWarnsAndSends(t *testing.T) {
	server, fs := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "User", false, "GET", "/v1/users/${userId}", false, 404),
	}}

	result, err := NewRunner(nil).Run(context.Background(), file, newStore(server))

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, int32(1), fs.hits["users"].Load())
}

func TestRunner_EmptySuite(t *testing.T) {
	server, _ := newFakeService(t)

	result, err := NewRunner(nil).Run(context.Background(), &suite.File{}, newStore(server))

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 0, result.Total)
}

func TestRunner_CancelledContext(t *testing.T) {
	server, fs := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{login(0)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil).Run(ctx, file, newStore(server))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), fs.hits["login"].Load())
}

func TestRunner_Rate(t *testing.T) {
	server, _ := newFakeService(t)
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "a", false, "GET", "/v1/missing", false, 404),
		testCase(1, "b", false, "GET", "/v1/missing", false, 404),
		testCase(2, "c", false, "GET", "/v1/missing", false, 404),
	}}

	start := time.Now()
	result, err := NewRunner(&Config{Rate: 20}).Run(context.Background(), file, newStore(server))

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunner_WaitFor(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.WaitFor = &WaitFor{Path: "/health", Interval: 10 * time.Millisecond, Timeout: 2 * time.Second}
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "Health", true, "GET", "/health", false, 200),
	}}

	result, err := NewRunner(cfg).Run(context.Background(), file, newStore(server))

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, int32(4), calls.Load())
}

func TestRunner_WaitForTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.WaitFor = &WaitFor{Path: "/health", Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond}
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "Health", true, "GET", "/health", false, 200),
	}}

	result, err := NewRunner(cfg).Run(context.Background(), file, newStore(server))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceNotReady)
	assert.Contains(t, err.Error(), "got status 503")
	assert.Empty(t, result.Results)
}

func TestRunner_WaitForCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.WaitFor = &WaitFor{Path: "/health", Interval: 10 * time.Millisecond, Timeout: 5 * time.Second}
	file := &suite.File{Tests: []*suite.TestCase{
		testCase(0, "Health", true, "GET", "/health", false, 200),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewRunner(cfg).Run(ctx, file, newStore(server))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrServiceNotReady)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLatencyRecorder(t *testing.T) {
	l := newLatencyRecorder()
	assert.Equal(t, LatencySummary{}, l.Summary())

	for _, ms := range []int{10, 20, 30, 40} {
		l.Record(time.Duration(ms) * time.Millisecond)
	}
	l.Record(0)

	s := l.Summary()
	assert.Equal(t, int64(5), s.Count)
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(40*time.Millisecond), float64(s.Max), float64(100*time.Microsecond))
	assert.LessOrEqual(t, s.P50, s.P95)
	assert.LessOrEqual(t, s.P95, s.P99)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "executed", StateExecuted.String())
	assert.Equal(t, "passed", StatePassed.String())
	assert.Equal(t, "failed", StateFailed.String())
}
