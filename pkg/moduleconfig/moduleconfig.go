// SPDX-License-Identifier: MPL-2.0

// Package moduleconfig models the module configuration consumed by the
// resolver: which module types exist, which collection each type lives in,
// and how collections are laid out on disk.
//
// A Configuration is plain data. Compile validates it and derives the
// collection lookup tables used during classification; the result is an
// immutable Resolved value that is passed explicitly to every component that
// needs it.
package moduleconfig

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MainCollection is the collection for modules outside every declared
// collection path.
const MainCollection = "main"

var (
	// ErrInvalidConfiguration is the sentinel error wrapped by
	// InvalidConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid module configuration")
)

type (
	// TypeRule describes a module type.
	TypeRule struct {
		// DefinitiveCollection is the collection that owns the type.
		DefinitiveCollection string `json:"definitiveCollection,omitempty" yaml:"definitiveCollection,omitempty"`
		// Unresolvable types are never placed in the module map.
		Unresolvable bool `json:"unresolvable,omitempty" yaml:"unresolvable,omitempty"`
	}

	// Collection is a named grouping of module types sharing a layout.
	Collection struct {
		Name               string   `json:"-" yaml:"name,omitempty"`
		Group              string   `json:"group,omitempty" yaml:"group,omitempty"`
		Types              []string `json:"types,omitempty" yaml:"types,omitempty"`
		DefaultType        string   `json:"defaultType,omitempty" yaml:"defaultType,omitempty"`
		PrivateCollections []string `json:"privateCollections,omitempty" yaml:"privateCollections,omitempty"`
		Unresolvable       bool     `json:"unresolvable,omitempty" yaml:"unresolvable,omitempty"`
	}

	// Configuration is the declared module configuration. Collections are
	// kept in declaration order because that order decides which collection
	// path wins when one path is a prefix of another.
	Configuration struct {
		Types       map[string]TypeRule
		Collections []Collection
	}

	// Resolved is a validated Configuration plus its derived lookup tables.
	// It must be treated as read-only.
	Resolved struct {
		Configuration

		// CollectionPaths lists every collection's full path in declaration order.
		CollectionPaths []string
		// CollectionMap maps a full path to its collection name.
		CollectionMap map[string]string

		collections map[string]*Collection
	}

	// InvalidConfigurationError collects every problem found while compiling a
	// Configuration. It wraps ErrInvalidConfiguration for errors.Is()
	// compatibility.
	InvalidConfigurationError struct {
		FieldErrors []error
	}
)

func (e *InvalidConfigurationError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid module configuration: %s", strings.Join(msgs, "; "))
}

func (e *InvalidConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// FullPath returns the on-disk path prefix of the collection: "group/name"
// when a group is set, otherwise the name.
func (c Collection) FullPath() string {
	if c.Group != "" {
		return c.Group + "/" + c.Name
	}
	return c.Name
}

// Default returns the stock module configuration used when a project does
// not declare its own.
func Default() Configuration {
	return Configuration{
		Types: map[string]TypeRule{
			"application":    {DefinitiveCollection: "main"},
			"component":      {DefinitiveCollection: "components"},
			"component-test": {Unresolvable: true},
			"helper":         {DefinitiveCollection: "components"},
			"helper-test":    {Unresolvable: true},
			"renderer":       {DefinitiveCollection: "main"},
			"template":       {DefinitiveCollection: "components"},
		},
		Collections: []Collection{
			{
				Name:  "main",
				Types: []string{"application", "renderer"},
			},
			{
				Name:               "components",
				Group:              "ui",
				Types:              []string{"component", "component-test", "template", "helper", "helper-test"},
				DefaultType:        "component",
				PrivateCollections: []string{"utils"},
			},
			{
				Name:         "styles",
				Group:        "ui",
				Unresolvable: true,
			},
			{
				Name:         "utils",
				Unresolvable: true,
			},
		},
	}
}

// Compile validates cfg and derives the collection lookup tables. Every
// problem is reported, not just the first.
func Compile(cfg Configuration) (*Resolved, error) {
	var errs []error

	collections := make(map[string]*Collection, len(cfg.Collections))
	collectionMap := make(map[string]string, len(cfg.Collections))
	collectionPaths := make([]string, 0, len(cfg.Collections))

	owned := slices.Clone(cfg.Collections)
	for i := range owned {
		c := &owned[i]
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: name must not be empty", i))
			continue
		}
		if _, dup := collections[c.Name]; dup {
			errs = append(errs, fmt.Errorf("collections.%s: declared more than once", c.Name))
			continue
		}
		collections[c.Name] = c

		full := c.FullPath()
		if other, dup := collectionMap[full]; dup {
			errs = append(errs, fmt.Errorf("collections.%s: path %q is already used by collection %q", c.Name, full, other))
			continue
		}
		collectionMap[full] = c.Name
		collectionPaths = append(collectionPaths, full)
	}

	for _, c := range owned {
		for _, typ := range c.Types {
			if _, ok := cfg.Types[typ]; !ok {
				errs = append(errs, fmt.Errorf("collections.%s.types: unknown type %q", c.Name, typ))
			}
		}
		if c.DefaultType != "" && !slices.Contains(c.Types, c.DefaultType) {
			errs = append(errs, fmt.Errorf("collections.%s.defaultType: %q is not listed in types", c.Name, c.DefaultType))
		}
		for _, private := range c.PrivateCollections {
			if _, ok := collections[private]; !ok {
				errs = append(errs, fmt.Errorf("collections.%s.privateCollections: unknown collection %q", c.Name, private))
			}
		}
	}

	for _, name := range sortedTypeNames(cfg.Types) {
		rule := cfg.Types[name]
		if rule.DefinitiveCollection == "" {
			if !rule.Unresolvable {
				errs = append(errs, fmt.Errorf("types.%s: definitiveCollection is required unless the type is unresolvable", name))
			}
			continue
		}
		if _, ok := collections[rule.DefinitiveCollection]; !ok {
			errs = append(errs, fmt.Errorf("types.%s.definitiveCollection: unknown collection %q", name, rule.DefinitiveCollection))
		}
	}

	if len(errs) > 0 {
		return nil, &InvalidConfigurationError{FieldErrors: errs}
	}

	types := make(map[string]TypeRule, len(cfg.Types))
	for k, v := range cfg.Types {
		types[k] = v
	}

	return &Resolved{
		Configuration:   Configuration{Types: types, Collections: owned},
		CollectionPaths: collectionPaths,
		CollectionMap:   collectionMap,
		collections:     collections,
	}, nil
}

// MustCompile is like Compile but panics on error. Intended for the
// built-in default configuration and tests.
func MustCompile(cfg Configuration) *Resolved {
	r, err := Compile(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Collection returns the named collection.
func (r *Resolved) Collection(name string) (Collection, bool) {
	c, ok := r.collections[name]
	if !ok {
		return Collection{}, false
	}
	return *c, true
}

// Type returns the named type rule.
func (r *Resolved) Type(name string) (TypeRule, bool) {
	rule, ok := r.Types[name]
	return rule, ok
}

func sortedTypeNames(types map[string]TypeRule) []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
