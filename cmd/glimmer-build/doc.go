// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the glimmer-build command line: building a project,
// inspecting its options, resolving specifiers and explaining catalog issues.
package cmd
