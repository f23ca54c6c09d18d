// SPDX-License-Identifier: MPL-2.0

// Package bundler bundles an in-memory source tree with esbuild. Imports are
// resolved against the tree and a node_modules tree through a plugin, so a
// bundle never depends on files outside its inputs.
package bundler
