// SPDX-License-Identifier: MPL-2.0

// Package config loads the build options of a project using Viper with CUE as
// the file format.
//
// Options are read from glimmer-build.cue in the project root (or an explicit
// --config path), validated against the embedded #Build schema
// (build_schema.cue) and layered over built-in defaults. GLIMMER_* environment
// variables override file values, e.g. GLIMMER_ROLLUP_FORMAT=iife.
//
// The package also resolves the build environment (development, production or
// test) from flags and the process environment, loading an optional .env file
// from the project root first.
package config
