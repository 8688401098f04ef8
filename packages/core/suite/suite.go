package suite

import (
	"net/http"
)

// DefaultPath is where the suite is looked up when no file is given
const DefaultPath = "conf/test_cases.json"

type File struct {
	Path  string
	Env   map[string]string
	Tests []*TestCase
}

type TestCase struct {
	Index    int
	Name     string
	Positive bool
	Request  *RequestSpec
	Response *Expectation
	SetEnv   []ExtractionRule
}

type RequestSpec struct {
	Method    string
	Path      string
	WithToken bool
	// Body is the decoded JSON value, nil when the test declares no body.
	Body any
}

type Expectation struct {
	Status int
}

// ExtractionRule copies body[ResponseKey] into env[EnvKey].
type ExtractionRule struct {
	ResponseKey string `json:"responseKey" yaml:"responseKey"`
	EnvKey      string `json:"envKey" yaml:"envKey"`
}

func (r *RequestSpec) HasBody() bool {
	return r.Body != nil
}

// SendsBody reports whether the request carries a payload. GET and DELETE never do.
func (r *RequestSpec) SendsBody() bool {
	if r.Method == http.MethodGet || r.Method == http.MethodDelete {
		return false
	}
	return r.HasBody()
}

// UpdatesEnv reports whether a passing run of the test writes to the environment.
func (tc *TestCase) UpdatesEnv() bool {
	return tc.Positive && len(tc.SetEnv) > 0
}
