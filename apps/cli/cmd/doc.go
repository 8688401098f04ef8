// Package cmd implements the hitchain CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the test suite against a service on a local port
//   - validate: Check a test suite without sending requests
//   - list: Display the tests a suite defines
//   - history: Show earlier runs recorded in a history database
//   - init: Scaffold conf/test_cases.json
//   - version: Show hitchain version information
//
// Every command returns its error to Execute, which maps it to an exit code.
package cmd
