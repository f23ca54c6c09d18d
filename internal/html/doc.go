// SPDX-License-Identifier: MPL-2.0

// Package html renders the application page from src/ui/index.html.
package html
