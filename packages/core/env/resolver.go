package env

import (
	"regexp"
)

var (
	placeholderPattern      = regexp.MustCompile(`\$\{([^{}]+)\}`)
	exactPlaceholderPattern = regexp.MustCompile(`^\$\{([^{}]+)\}$`)
)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver substitutes ${key} placeholders using the current contents of a Store.
// It reads the store on every call, so mutations made between tests are visible
// to the next request.
type Resolver struct {
	store    *Store
	warnFunc WarnFunc
}

func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// SetWarnFunc sets a function to be called for placeholders left unresolved in a path
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

func (r *Resolver) Store() *Store {
	return r.store
}

// ResolvePath prefixes pathTemplate with baseUrl and substitutes every known
// placeholder. Placeholders naming absent keys are kept as literal text.
func (r *Resolver) ResolvePath(pathTemplate string) (string, error) {
	base, err := r.store.Get(BaseURLKey)
	if err != nil {
		return "", err
	}
	return r.Interpolate(base + pathTemplate), nil
}

// Interpolate replaces ${key} tokens in a single left-to-right pass. Values
// inserted by a replacement are not scanned again.
func (r *Resolver) Interpolate(input string) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := r.store.Lookup(key); ok {
			return val
		}
		r.warn("unresolved placeholder: %s", match)
		return match
	})
}

// ResolveBody returns a copy of body with exact ${key} string leaves replaced.
// Nested objects are recursed into; arrays and other values are returned as is.
func (r *Resolver) ResolveBody(body any) (any, error) {
	switch v := body.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			resolved, err := r.ResolveBody(val)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case string:
		return r.resolveValue(v)
	default:
		return body, nil
	}
}

func (r *Resolver) resolveValue(val string) (any, error) {
	key, ok := ExactPlaceholder(val)
	if !ok {
		return val, nil
	}
	return r.store.Get(key)
}

// ExactPlaceholder reports whether s is a single ${key} token and returns key.
func ExactPlaceholder(s string) (string, bool) {
	m := exactPlaceholderPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Placeholders returns the keys referenced by ${key} tokens in s, in order of appearance.
func Placeholders(s string) []string {
	var keys []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		keys = append(keys, m[1])
	}
	return keys
}
