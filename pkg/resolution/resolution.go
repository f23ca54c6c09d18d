// SPDX-License-Identifier: MPL-2.0

// Package resolution classifies module paths and derives the specifiers the
// runtime resolver uses to look modules up.
//
// A specifier has the form "type:/prefix/collection/[namespace/]name". Both
// Classify and ResolveSpecifier are pure functions of their arguments.
package resolution

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"glimmer-pipeline/pkg/moduleconfig"
)

// ErrClassification is the sentinel error wrapped by ClassificationError.
var ErrClassification = errors.New("module classification failed")

type (
	// Classification is the logical identity of a module path.
	Classification struct {
		Collection string
		Type       string
		// Namespace is empty when the module sits directly in its collection.
		Namespace string
		Name      string
	}

	// ClassificationError reports a module path that cannot be classified.
	// It wraps ErrClassification for errors.Is() compatibility.
	ClassificationError struct {
		Path   string
		Reason string
	}
)

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot classify module %q: %s", e.Path, e.Reason)
}

func (e *ClassificationError) Unwrap() error { return ErrClassification }

// CollectionFor returns the collection owning modulePath and the path
// remainder after the collection prefix.
//
// Collection paths are tried in declaration order and the first one that
// matches on whole path segments wins. A path outside every collection
// belongs to the main collection and is returned unchanged.
func CollectionFor(modulePath string, cfg *moduleconfig.Resolved) (collection, rest string) {
	for _, prefix := range cfg.CollectionPaths {
		if modulePath == prefix {
			return cfg.CollectionMap[prefix], ""
		}
		if strings.HasPrefix(modulePath, prefix+"/") {
			return cfg.CollectionMap[prefix], modulePath[len(prefix)+1:]
		}
	}
	return moduleconfig.MainCollection, modulePath
}

// Classify determines the collection, type, namespace and name of a module.
//
// modulePath is relative to the source root and forward-slash separated. A
// file extension on the last segment is ignored, so "ui/components/x/template.hbs"
// and "ui/components/x/template" classify identically.
func Classify(modulePath string, cfg *moduleconfig.Resolved) (Classification, error) {
	if err := checkModulePath(modulePath); err != nil {
		return Classification{}, err
	}

	bare := StripExtension(modulePath)
	collectionName, rest := CollectionFor(bare, cfg)

	collection, ok := cfg.Collection(collectionName)
	if !ok {
		return Classification{}, &ClassificationError{
			Path:   modulePath,
			Reason: fmt.Sprintf("collection %q is not declared", collectionName),
		}
	}

	var parts []string
	if rest != "" {
		parts = strings.Split(rest, "/")
	}

	var typ string
	if len(parts) > 1 {
		typ = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	} else {
		typ = collection.DefaultType
	}
	if len(parts) == 0 {
		return Classification{}, &ClassificationError{Path: modulePath, Reason: "no module name after the collection path"}
	}
	if typ == "" {
		return Classification{}, &ClassificationError{
			Path:   modulePath,
			Reason: fmt.Sprintf("no type segment and collection %q has no default type", collectionName),
		}
	}
	if _, ok := cfg.Type(typ); !ok {
		return Classification{}, &ClassificationError{Path: modulePath, Reason: fmt.Sprintf("unknown type %q", typ)}
	}
	if len(collection.Types) > 0 && !slices.Contains(collection.Types, typ) {
		return Classification{}, &ClassificationError{
			Path:   modulePath,
			Reason: fmt.Sprintf("type %q is not allowed in collection %q", typ, collectionName),
		}
	}

	return Classification{
		Collection: collectionName,
		Type:       typ,
		Namespace:  strings.Join(parts[:len(parts)-1], "/"),
		Name:       parts[len(parts)-1],
	}, nil
}

// IsResolvable reports whether a classified module belongs in the module map.
func IsResolvable(c Classification, cfg *moduleconfig.Resolved) bool {
	if collection, ok := cfg.Collection(c.Collection); ok && collection.Unresolvable {
		return false
	}
	if rule, ok := cfg.Type(c.Type); ok && rule.Unresolvable {
		return false
	}
	return true
}

// ResolveSpecifier builds the specifier of a classified module.
func ResolveSpecifier(modulePrefix string, c Classification) string {
	segments := []string{modulePrefix, c.Collection}
	if c.Namespace != "" {
		segments = append(segments, c.Namespace)
	}
	segments = append(segments, c.Name)
	return c.Type + ":/" + strings.Join(segments, "/")
}

// SpecifierFor classifies modulePath and resolves its specifier in one step.
func SpecifierFor(modulePrefix, modulePath string, cfg *moduleconfig.Resolved) (string, error) {
	c, err := Classify(modulePath, cfg)
	if err != nil {
		return "", err
	}
	return ResolveSpecifier(modulePrefix, c), nil
}

// StripExtension removes the extension of the last path segment. Declaration
// files lose their whole ".d.ts" suffix.
func StripExtension(modulePath string) string {
	if strings.HasSuffix(modulePath, ".d.ts") {
		return strings.TrimSuffix(modulePath, ".d.ts")
	}
	return strings.TrimSuffix(modulePath, path.Ext(modulePath))
}

func checkModulePath(modulePath string) error {
	switch {
	case modulePath == "":
		return &ClassificationError{Path: modulePath, Reason: "empty path"}
	case strings.HasPrefix(modulePath, "/"):
		return &ClassificationError{Path: modulePath, Reason: "path must be relative to the source root"}
	case strings.Contains(modulePath, "\\"):
		return &ClassificationError{Path: modulePath, Reason: "path must use forward slashes"}
	case slices.Contains(strings.Split(modulePath, "/"), ""):
		return &ClassificationError{Path: modulePath, Reason: "path contains an empty segment"}
	}
	return nil
}
