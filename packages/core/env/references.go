package env

import (
	"sort"

	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

// Reference is a key a test reads before anything could have set it.
type Reference struct {
	Index int
	Name  string
	Key   string
	// Where is "path", "body" or "header".
	Where string
}

// UnsetReferences walks the suite in order, assuming every test passes, and
// returns the keys a test reads that neither the suite env, the seeded keys
// nor an earlier setEnv rule provide. baseUrl is always treated as set.
func UnsetReferences(file *suite.File, seeded ...string) []Reference {
	known := map[string]bool{BaseURLKey: true}
	for k := range file.Env {
		known[k] = true
	}
	for _, k := range seeded {
		known[k] = true
	}

	var refs []Reference
	for _, tc := range file.Tests {
		report := func(key, where string) {
			if !known[key] {
				refs = append(refs, Reference{Index: tc.Index, Name: tc.Name, Key: key, Where: where})
			}
		}

		report(ClientIDKey, "header")
		if tc.Request.WithToken {
			report(AuthTokenKey, "header")
		}
		for _, key := range Placeholders(tc.Request.Path) {
			report(key, "path")
		}
		if tc.Request.SendsBody() {
			for _, key := range bodyKeys(tc.Request.Body) {
				report(key, "body")
			}
		}

		if tc.UpdatesEnv() {
			for _, rule := range tc.SetEnv {
				known[rule.EnvKey] = true
			}
		}
	}
	return dedupe(refs)
}

// bodyKeys lists the exact placeholders ResolveBody would substitute.
func bodyKeys(body any) []string {
	var keys []string
	switch val := body.(type) {
	case string:
		if key, ok := ExactPlaceholder(val); ok {
			keys = append(keys, key)
		}
	case map[string]any:
		names := make([]string, 0, len(val))
		for k := range val {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			keys = append(keys, bodyKeys(val[k])...)
		}
	}
	return keys
}

func dedupe(refs []Reference) []Reference {
	type id struct {
		index      int
		key, where string
	}
	seen := make(map[id]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		k := id{r.Index, r.Key, r.Where}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
