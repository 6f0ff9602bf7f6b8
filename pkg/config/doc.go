// Package config defines the triton configuration tree: YAML file
// loading, defaults, TRITON_* environment overrides, and validation.
//
// The loading sequence is file, then defaults for anything unset, then
// environment overrides, then validation. Environment variables always
// win over the file.
package config
