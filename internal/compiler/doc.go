// SPDX-License-Identifier: MPL-2.0

// Package compiler transpiles TypeScript sources to ES modules with esbuild.
//
// It strips types only; no type checking is performed. The package also owns
// TransformError, the error every esbuild-backed step reports for a rejected
// source file.
package compiler
