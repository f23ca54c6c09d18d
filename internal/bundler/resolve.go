// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"glimmer-pipeline/pkg/tree"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	namespaceSrc         = "src"
	namespaceNodeModules = "node_modules"
	namespaceEnv         = "glimmer-env"

	// vendorEntry is the ES2017 build shipped by Glimmer packages.
	vendorEntry = "dist/modules/es2017/index.js"
)

var (
	sourceMapComment = regexp.MustCompile(`(?m)^[ \t]*//[#@] sourceMappingURL=.*$\n?`)

	// moduleSuffixes are tried in order when an import omits its extension.
	moduleSuffixes = []string{"", ".js", ".mjs", ".json", ".css", "/index.js"}

	loaders = map[string]api.Loader{
		".js":   api.LoaderJS,
		".mjs":  api.LoaderJS,
		".cjs":  api.LoaderJS,
		".ts":   api.LoaderTS,
		".json": api.LoaderJSON,
		".css":  api.LoaderCSS,
	}
)

type packageManifest struct {
	Module     string `json:"module"`
	JSNextMain string `json:"jsnext:main"`
	Main       string `json:"main"`
}

// treePlugin serves every import from the in-memory trees.
func treePlugin(src tree.Tree, opts Options) api.Plugin {
	trees := map[string]tree.Tree{
		namespaceSrc:         src,
		namespaceNodeModules: opts.NodeModules,
	}

	return api.Plugin{
		Name: "glimmer-tree",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return resolve(trees, opts, args)
			})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: namespaceEnv}, func(api.OnLoadArgs) (api.OnLoadResult, error) {
				contents := envModule(opts.Environment)
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
			})

			for _, ns := range []string{namespaceSrc, namespaceNodeModules} {
				t := trees[ns]
				build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: ns}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					data, ok := t.Get(args.Path)
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("%s: no such file", args.Path)
					}
					contents := string(data)
					if !opts.Sourcemaps {
						contents = sourceMapComment.ReplaceAllString(contents, "")
					}
					return api.OnLoadResult{Contents: &contents, Loader: loaderFor(args.Path)}, nil
				})
			}
		},
	}
}

func resolve(trees map[string]tree.Tree, opts Options, args api.OnResolveArgs) (api.OnResolveResult, error) {
	spec := args.Path

	switch {
	case args.Kind == api.ResolveEntryPoint:
		return api.OnResolveResult{Path: spec, Namespace: namespaceSrc}, nil
	case args.Kind == api.ResolveCSSURLToken:
		return api.OnResolveResult{Path: spec, External: true}, nil
	case spec == EnvModule:
		return api.OnResolveResult{Path: spec, Namespace: namespaceEnv}, nil
	case isExternal(opts.External, spec):
		return api.OnResolveResult{Path: spec, External: true}, nil
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		ns := args.Namespace
		if ns != namespaceNodeModules {
			ns = namespaceSrc
		}
		joined := path.Join(path.Dir(args.Importer), spec)
		if strings.HasPrefix(joined, "../") {
			return api.OnResolveResult{}, fmt.Errorf("import %q from %s escapes the source tree", spec, args.Importer)
		}
		if p, ok := findModule(trees[ns], joined); ok {
			return api.OnResolveResult{Path: p, Namespace: ns}, nil
		}
		return api.OnResolveResult{}, fmt.Errorf("could not resolve %q from %s", spec, args.Importer)
	case strings.HasPrefix(spec, "/"):
		return api.OnResolveResult{}, fmt.Errorf("absolute import %q is not supported", spec)
	}

	if p, ok := resolvePackage(trees[namespaceNodeModules], opts.VendorNamespace, spec); ok {
		return api.OnResolveResult{Path: p, Namespace: namespaceNodeModules}, nil
	}
	return api.OnResolveResult{}, fmt.Errorf("could not resolve package %q; is it installed in node_modules?", spec)
}

// resolvePackage finds the file a bare import refers to. A subpath import
// resolves like a relative one inside the package.
func resolvePackage(modules tree.Tree, vendorNamespace, spec string) (string, bool) {
	name, subpath := splitPackage(spec)
	if subpath != "" {
		return findModule(modules, path.Join(name, subpath))
	}

	if vendorNamespace != "" && strings.HasPrefix(name, vendorNamespace+"/") {
		if p := path.Join(name, vendorEntry); modules.Has(p) {
			return p, true
		}
	}

	if data, ok := modules.Get(path.Join(name, "package.json")); ok {
		var manifest packageManifest
		if err := json.Unmarshal(data, &manifest); err == nil {
			for _, entry := range []string{manifest.Module, manifest.JSNextMain, manifest.Main} {
				if entry == "" {
					continue
				}
				if p, ok := findModule(modules, path.Join(name, entry)); ok {
					return p, true
				}
			}
		}
	}
	return findModule(modules, path.Join(name, "index"))
}

func splitPackage(spec string) (name, subpath string) {
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name, subpath, _ = strings.Cut(spec, "/")
	return name, subpath
}

func findModule(t tree.Tree, p string) (string, bool) {
	for _, suffix := range moduleSuffixes {
		if candidate := p + suffix; t.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func loaderFor(p string) api.Loader {
	if loader, ok := loaders[path.Ext(p)]; ok {
		return loader
	}
	return api.LoaderJS
}
