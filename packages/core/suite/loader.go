package suite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedInput is matched by every *MalformedInputError.
var ErrMalformedInput = errors.New("malformed test suite")

// MalformedInputError describes the first problem found in a suite document.
type MalformedInputError struct {
	Path   string
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed test suite %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("malformed test suite %s: %s: %s", e.Path, e.Field, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the document format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// IsSuiteFile reports whether path has an extension hitchain can load.
func IsSuiteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

type rawFile struct {
	Env   map[string]any `json:"env" yaml:"env"`
	Tests []*rawTest     `json:"tests" yaml:"tests"`
}

type rawTest struct {
	Name     *string          `json:"name" yaml:"name"`
	Positive *bool            `json:"positive" yaml:"positive"`
	Request  *rawRequest      `json:"request" yaml:"request"`
	Response *rawResponse     `json:"response" yaml:"response"`
	SetEnv   []ExtractionRule `json:"setEnv" yaml:"setEnv"`
}

type rawRequest struct {
	Method    *string `json:"method" yaml:"method"`
	Path      *string `json:"path" yaml:"path"`
	WithToken *bool   `json:"withToken" yaml:"withToken"`
	Body      any     `json:"body" yaml:"body"`
}

type rawResponse struct {
	Status *int `json:"status" yaml:"status"`
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test suite: %w", err)
	}
	return Parse(data, FormatFor(path), path)
}

// Parse decodes and validates a suite document. Validation stops at the first
// missing or invalid field.
func Parse(data []byte, format Format, path string) (*File, error) {
	var raw rawFile
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil && err != io.EOF {
			return nil, &MalformedInputError{Path: path, Reason: err.Error()}
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, trailingData(path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, &MalformedInputError{Path: path, Reason: err.Error()}
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, trailingData(path, err)
		}
	}
	return build(&raw, path)
}

// trailingData rejects anything after the suite document. err is the error of
// the second decode, nil when a second document parsed cleanly.
func trailingData(path string, err error) error {
	reason := "unexpected data after the suite document"
	if err != nil {
		reason += ": " + err.Error()
	}
	return &MalformedInputError{Path: path, Reason: reason}
}

func build(raw *rawFile, path string) (*File, error) {
	malformed := func(field, reason string) error {
		return &MalformedInputError{Path: path, Field: field, Reason: reason}
	}

	if raw.Env == nil {
		return nil, malformed("env", "missing required field")
	}
	if raw.Tests == nil {
		return nil, malformed("tests", "missing required field")
	}

	file := &File{
		Path:  path,
		Env:   make(map[string]string, len(raw.Env)),
		Tests: make([]*TestCase, 0, len(raw.Tests)),
	}

	for k, v := range raw.Env {
		s, err := scalarString(v)
		if err != nil {
			return nil, malformed("env."+k, err.Error())
		}
		file.Env[k] = s
	}

	for i, rt := range raw.Tests {
		field := func(name string) string {
			return fmt.Sprintf("tests[%d].%s", i, name)
		}
		if rt == nil {
			return nil, malformed(fmt.Sprintf("tests[%d]", i), "test case is null")
		}
		switch {
		case rt.Name == nil:
			return nil, malformed(field("name"), "missing required field")
		case rt.Positive == nil:
			return nil, malformed(field("positive"), "missing required field")
		case rt.Request == nil:
			return nil, malformed(field("request"), "missing required field")
		case rt.Request.Method == nil || strings.TrimSpace(*rt.Request.Method) == "":
			return nil, malformed(field("request.method"), "missing required field")
		case rt.Request.Path == nil:
			return nil, malformed(field("request.path"), "missing required field")
		case rt.Request.WithToken == nil:
			return nil, malformed(field("request.withToken"), "missing required field")
		case rt.Response == nil:
			return nil, malformed(field("response"), "missing required field")
		case rt.Response.Status == nil:
			return nil, malformed(field("response.status"), "missing required field")
		}

		status := *rt.Response.Status
		if status < 100 || status > 599 {
			return nil, malformed(field("response.status"), fmt.Sprintf("invalid HTTP status %d", status))
		}

		for j, rule := range rt.SetEnv {
			if rule.ResponseKey == "" {
				return nil, malformed(field(fmt.Sprintf("setEnv[%d].responseKey", j)), "missing required field")
			}
			if rule.EnvKey == "" {
				return nil, malformed(field(fmt.Sprintf("setEnv[%d].envKey", j)), "missing required field")
			}
		}

		file.Tests = append(file.Tests, &TestCase{
			Index:    i,
			Name:     *rt.Name,
			Positive: *rt.Positive,
			Request: &RequestSpec{
				Method:    strings.ToUpper(strings.TrimSpace(*rt.Request.Method)),
				Path:      *rt.Request.Path,
				WithToken: *rt.Request.WithToken,
				Body:      normalize(rt.Request.Body),
			},
			Response: &Expectation{Status: status},
			SetEnv:   rt.SetEnv,
		})
	}

	return file, nil
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case nil:
		return "", errors.New("value is null")
	default:
		return "", fmt.Errorf("expected a string, number or boolean, got %T", v)
	}
}

// normalize converts YAML mappings with non-string keys into map[string]any
// so bodies from both formats share one shape.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
