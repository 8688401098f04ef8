// Package runner executes a hitchain test suite against a running service.
//
// Tests run strictly in file order, one request at a time. Each test builds
// its request from the shared environment, compares the response status with
// the expected one and, for positive tests, copies response fields back into
// the environment for the tests that follow.
//
// The first status mismatch ends the run and is reported as a *StatusMismatch
// on the RunResult. Errors that make further tests meaningless (a missing
// environment key, a missing response field, a failed connection) are returned
// from Run together with the partial result.
//
// A run can optionally wait for the service to become ready, pace its
// requests, and stream progress to an Observer.
package runner
