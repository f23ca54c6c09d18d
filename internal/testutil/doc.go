// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include directory and file operations (MustMkdirAll,
// MustWriteFiles, MustReadFile), in-memory trees (MustTree) and
// temporary projects (NewProject, MinimalProject).
package testutil
