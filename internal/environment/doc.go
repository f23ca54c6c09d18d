// SPDX-License-Identifier: MPL-2.0

// Package environment reads config/environment.{cue,json,yaml,yml,toml}.
//
// The document is keyed by environment name. An optional "default" block is
// deep-merged beneath the block of the selected environment:
//
//	default:
//	  modulePrefix: my-app
//	  rootURL: /
//	production:
//	  rootURL: /app/
//
// The merged block supplies the module prefix, the root URL and the module
// configuration, and is emitted verbatim as config/environment.js or as the
// config meta tag of index.html.
package environment
