package env

import (
	"errors"
	"fmt"
	"sort"
)

// Well-known environment keys.
const (
	BaseURLKey   = "baseUrl"
	ClientIDKey  = "clientId"
	AuthTokenKey = "authToken"

	// DefaultHost is the host used to build baseUrl when none is configured
	DefaultHost = "127.0.0.1"
)

// ErrMissingKey is matched by every *MissingKeyError.
var ErrMissingKey = errors.New("missing environment key")

// MissingKeyError reports a lookup of a key the environment does not hold.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing environment key %q", e.Key)
}

func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissingKey
}

// Store is the mutable environment of a run. Keys keep their insertion order.
type Store struct {
	keys   []string
	values map[string]string
}

func NewStore() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

// Bootstrap seeds a store from sources applied in order, later sources
// overriding earlier ones, and then sets baseUrl unconditionally.
func Bootstrap(baseURL string, sources ...map[string]string) *Store {
	s := NewStore()
	for _, src := range sources {
		s.Merge(src)
	}
	s.Set(BaseURLKey, baseURL)
	return s
}

// BaseURL returns the base URL of the service under test.
func BaseURL(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func (s *Store) Get(key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", &MissingKeyError{Key: key}
	}
	return v, nil
}

func (s *Store) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Merge sets every entry of vars. Map order is not stable, so new keys are
// inserted in sorted order.
func (s *Store) Merge(vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Set(k, vars[k])
	}
}

// Keys returns the keys in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *Store) Len() int {
	return len(s.keys)
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
