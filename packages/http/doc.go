// Package http builds and sends the requests of a hitchain run.
//
// It wraps the standard library's http package with:
//   - Request construction from a test case and the current environment
//     (X-Client-ID and bearer token headers, JSON bodies, GET/DELETE without body)
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - Default headers applied to every request
//   - Fully read responses with timing
package http
