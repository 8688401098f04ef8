// Package capture copies fields of a JSON response body into the run's
// environment, so later requests can reference them as ${key}.
//
// A rule names a top-level key of the response object. Keys containing a dot
// that are not themselves top-level keys are read as gjson paths, which allows
// nested values such as "data.user.id".
package capture
