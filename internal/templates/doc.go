// SPDX-License-Identifier: MPL-2.0

// Package templates precompiles Handlebars templates into modules the
// Glimmer runtime can load, either one JavaScript module per template or a
// single bytecode bundle with a data segment module.
package templates
