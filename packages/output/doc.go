// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, streamed test by test
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//   - XLSX: Excel workbook, one row per test
//   - HTML: Standalone report page
//
// Each formatter implements the Formatter interface and can optionally
// implement Flushable for formats that accumulate results before output.
// The console formatter also implements runner.Observer so progress is
// printed while the suite runs.
package output
