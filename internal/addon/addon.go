// SPDX-License-Identifier: MPL-2.0

package addon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"glimmer-pipeline/pkg/tree"
)

const (
	// KindSrc is the source tree before compilation.
	KindSrc Kind = "src"
	// KindCSS is the compiled stylesheet tree.
	KindCSS Kind = "css"
	// KindAll is the final package tree.
	KindAll Kind = "all"

	// StaticContentName is the name of the built-in addon serving
	// content_for strings from the build options.
	StaticContentName = "static-content"
)

var (
	// ErrInvalidHooks is returned when hooks are registered without a name
	// or under a name that is already taken.
	ErrInvalidHooks = errors.New("invalid addon hooks")
	// ErrHookFailed is the sentinel error wrapped by HookError.
	ErrHookFailed = errors.New("addon hook failed")
)

type (
	// Kind names the tree a process hook receives.
	Kind string

	// TreeHook transforms a tree. It must not modify its input.
	TreeHook func(ctx context.Context, kind Kind, in tree.Tree) (tree.Tree, error)

	// ContentHook returns the markup an addon contributes to a
	// {{content-for "type"}} placeholder, or "" for nothing. content holds
	// what earlier contributors produced.
	ContentHook func(contentType string, content []string) string

	// Hooks is the set of optional collaborator functions one addon provides.
	// Nil hooks are skipped.
	Hooks struct {
		Name        string
		Preprocess  TreeHook
		Postprocess TreeHook
		ContentFor  ContentHook
	}

	// Registry dispatches hooks in registration order. The zero value and a
	// nil *Registry have no addons.
	Registry struct {
		hooks []Hooks
	}

	// HookError is returned when an addon hook fails.
	HookError struct {
		Addon string
		Hook  string
		Kind  Kind
		Err   error
	}
)

// Error implements the error interface for HookError.
func (e *HookError) Error() string {
	return fmt.Sprintf("addon %q %s(%s): %v", e.Addon, e.Hook, e.Kind, e.Err)
}

// Unwrap returns both the sentinel and the hook's own error.
func (e *HookError) Unwrap() []error { return []error{ErrHookFailed, e.Err} }

// NewRegistry registers hooks in order.
func NewRegistry(hooks ...Hooks) (*Registry, error) {
	r := &Registry{}
	for _, h := range hooks {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends h to the dispatch order.
func (r *Registry) Register(h Hooks) error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidHooks)
	}
	for _, existing := range r.hooks {
		if existing.Name == h.Name {
			return fmt.Errorf("%w: %q is already registered", ErrInvalidHooks, h.Name)
		}
	}
	r.hooks = append(r.hooks, h)
	return nil
}

// Names returns the registered addon names in dispatch order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.hooks))
	for i, h := range r.hooks {
		names[i] = h.Name
	}
	return names
}

// Preprocess threads in through every Preprocess hook.
func (r *Registry) Preprocess(ctx context.Context, kind Kind, in tree.Tree) (tree.Tree, error) {
	return r.process(ctx, "preprocess", kind, in, func(h Hooks) TreeHook { return h.Preprocess })
}

// Postprocess threads in through every Postprocess hook.
func (r *Registry) Postprocess(ctx context.Context, kind Kind, in tree.Tree) (tree.Tree, error) {
	return r.process(ctx, "postprocess", kind, in, func(h Hooks) TreeHook { return h.Postprocess })
}

func (r *Registry) process(ctx context.Context, name string, kind Kind, in tree.Tree, pick func(Hooks) TreeHook) (tree.Tree, error) {
	if r == nil {
		return in, nil
	}
	working := in
	for _, h := range r.hooks {
		hook := pick(h)
		if hook == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return tree.Tree{}, err
		}
		out, err := hook(ctx, kind, working)
		if err != nil {
			return tree.Tree{}, &HookError{Addon: h.Name, Hook: name, Kind: kind, Err: err}
		}
		working = out
	}
	return working, nil
}

// ContentFor collects contributions for contentType, starting from initial.
func (r *Registry) ContentFor(contentType string, initial []string) []string {
	content := append([]string(nil), initial...)
	if r == nil {
		return content
	}
	for _, h := range r.hooks {
		if h.ContentFor == nil {
			continue
		}
		if contributed := h.ContentFor(contentType, content); contributed != "" {
			content = append(content, contributed)
		}
	}
	return content
}

// StaticContent returns the built-in addon serving content[type] for every
// {{content-for "type"}} placeholder.
func StaticContent(content map[string]string) Hooks {
	owned := make(map[string]string, len(content))
	for k, v := range content {
		owned[strings.ToLower(k)] = v
	}
	return Hooks{
		Name: StaticContentName,
		ContentFor: func(contentType string, _ []string) string {
			return owned[strings.ToLower(contentType)]
		},
	}
}
