// SPDX-License-Identifier: MPL-2.0

// Package fingerprint revisions assets for far-future caching. Asset names
// gain a content hash and references to them are rewritten.
package fingerprint
