// SPDX-License-Identifier: MPL-2.0

// Package addon is the explicit collaborator registry of the build.
//
// An addon is a named set of optional hook functions. The pipeline calls
// Preprocess on the source and stylesheet trees, Postprocess on the final
// package tree and ContentFor for every {{content-for}} placeholder of
// index.html, always in registration order.
package addon
