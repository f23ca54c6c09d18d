// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE helpers shared by the build options loader and
// the environment config loader.
//
// Schema-checked files follow a three step flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go value
//
// Schema-less documents (environment files) are compiled and exported as
// JSON with Export, which keeps field declaration order.
//
// # Usage
//
//	//go:embed build_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.Decode[map[string]any](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Build",
//	    cueutil.WithFilename("glimmer-build.cue"),
//	)
package cueutil
