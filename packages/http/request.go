package http

import (
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

// Header names set on every request.
const (
	HeaderContentType   = "Content-Type"
	HeaderClientID      = "X-Client-ID"
	HeaderAuthorization = "Authorization"

	ContentTypeJSON = "application/json"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is the encoded payload, nil when nothing is sent.
	Body []byte
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

// BodyString returns the payload as text, or "" when there is none.
func (r *Request) BodyString() string {
	return string(r.Body)
}

// BuildRequest turns a test's request spec into a concrete request using the
// current environment. Placeholders in the path that name absent keys are
// left as is; everything else that needs a key fails with *env.MissingKeyError.
func BuildRequest(spec *suite.RequestSpec, resolver *env.Resolver) (*Request, error) {
	url, err := resolver.ResolvePath(spec.Path)
	if err != nil {
		return nil, err
	}

	store := resolver.Store()
	clientID, err := store.Get(env.ClientIDKey)
	if err != nil {
		return nil, err
	}

	r := NewRequest(spec.Method, url)
	r.SetHeader(HeaderContentType, ContentTypeJSON)
	r.SetHeader(HeaderClientID, clientID)

	if spec.WithToken {
		token, err := store.Get(env.AuthTokenKey)
		if err != nil {
			return nil, err
		}
		r.SetHeader(HeaderAuthorization, "Bearer "+token)
	}

	if spec.SendsBody() {
		body, err := resolver.ResolveBody(spec.Body)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		r.SetBody(data)
	}

	return r, nil
}
