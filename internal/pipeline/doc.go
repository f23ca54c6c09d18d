// SPDX-License-Identifier: MPL-2.0

// Package pipeline assembles a Glimmer application. An App runs a fixed
// graph of stages: it reads the project trees, compiles TypeScript and
// templates, generates the module map and config modules, bundles, renders
// the page and composes the deployable package. Stages whose inputs are
// ready run concurrently.
package pipeline
