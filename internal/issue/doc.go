// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable build errors and the markdown issue
// catalog rendered by 'glimmer-build explain'.
package issue
