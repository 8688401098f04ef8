// Package config loads the optional hitchain configuration file.
//
// It provides:
//   - Discovery of .hitchain.config.json, hitchain.config.json, .hitchainrc
//     or .hitchainrc.json in the working directory
//   - Default values for every setting
//   - Merging, with explicitly set values taking precedence
//
// Command line flags override whatever the file sets.
package config
