// SPDX-License-Identifier: MPL-2.0

// Package styles produces the application stylesheet. A configured shell
// command takes precedence; otherwise app.css is bundled with its imports,
// or every stylesheet is concatenated.
package styles
