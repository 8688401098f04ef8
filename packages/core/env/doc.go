// Package env holds the key/value environment a hitchain run threads through
// its test cases, and the resolver that substitutes ${key} placeholders from it.
//
// It provides functionality for:
//   - Seeding the environment from the suite file, a .env file and prefixed
//     OS variables, then injecting baseUrl
//   - Placeholder substitution in request paths (partial, unknown keys kept)
//   - Placeholder substitution in JSON bodies (exact ${key} strings only)
//
// The environment lives for the whole run and is mutated in place after every
// passing positive test. It is not safe for concurrent use.
package env
