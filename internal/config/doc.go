// Package config holds the connection, query and output settings for the
// baseline/1-year case export.
//
// Settings are layered, later layers winning:
//
//  1. Default(): the NCANDA data-entry project constants
//  2. an optional YAML file (LoadFile)
//  3. MRICASES_* environment variables (ApplyEnv)
//  4. command-line flags, applied by internal/cli
//
// The merged result is checked against an embedded CUE schema by Validate.
// TLS certificate verification is on unless InsecureSkipVerify is set
// explicitly in one of the layers.
package config
