// Package suite loads hitchain test suites.
//
// A suite is a JSON or YAML document with two top-level keys:
//   - env: the static environment the run starts from
//   - tests: the ordered list of test cases
//
// Each test case names a request (method, path template, whether to send the
// bearer token, optional JSON body), the expected status code and, for
// positive tests, the response fields to copy into the environment.
// Order is significant: later tests may depend on values earlier ones set.
package suite
