package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

var (
	// ErrMissingResponseField is matched by every *MissingResponseFieldError.
	ErrMissingResponseField = errors.New("missing response field")
	// ErrResponseNotJSON is returned when a rule needs a body that does not parse as JSON.
	ErrResponseNotJSON = errors.New("response body is not valid JSON")
)

type MissingResponseFieldError struct {
	Key string
}

func (e *MissingResponseFieldError) Error() string {
	return fmt.Sprintf("response has no field %q", e.Key)
}

func (e *MissingResponseFieldError) Is(target error) bool {
	return target == ErrMissingResponseField
}

type Extractor struct {
	response *http.Response
	body     gjson.Result
	fields   map[string]gjson.Result
}

func NewExtractor(resp *http.Response) (*Extractor, error) {
	if !gjson.ValidBytes(resp.Body) {
		if ct := resp.ContentType(); ct != "" {
			return nil, fmt.Errorf("%w (content type %s)", ErrResponseNotJSON, ct)
		}
		return nil, ErrResponseNotJSON
	}
	body := gjson.ParseBytes(resp.Body)
	e := &Extractor{
		response: resp,
		body:     body,
	}
	if body.IsObject() {
		e.fields = body.Map()
	}
	return e, nil
}

// Extract returns the value of key as a string.
func (e *Extractor) Extract(key string) (string, error) {
	if r, ok := e.fields[key]; ok {
		return stringify(r), nil
	}
	if strings.Contains(key, ".") {
		if r := e.body.Get(literalPath(key)); r.Exists() {
			return stringify(r), nil
		}
	}
	return "", &MissingResponseFieldError{Key: key}
}

// literalPath escapes every dot-separated segment of key so gjson wildcards,
// modifiers and array queries match only themselves.
func literalPath(key string) string {
	segments := strings.Split(key, ".")
	for i, seg := range segments {
		segments[i] = gjson.Escape(seg)
	}
	return strings.Join(segments, ".")
}

// Apply runs rules in order, writing each extracted value to store. It stops
// at the first rule that fails; values set by earlier rules are kept.
func Apply(resp *http.Response, rules []suite.ExtractionRule, store *env.Store) error {
	if len(rules) == 0 {
		return nil
	}
	e, err := NewExtractor(resp)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		val, err := e.Extract(rule.ResponseKey)
		if err != nil {
			return err
		}
		store.Set(rule.EnvKey, val)
	}
	return nil
}

func stringify(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Null:
		return ""
	default:
		return r.Raw
	}
}
