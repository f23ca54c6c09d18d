// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"glimmer-pipeline/internal/addon"
	"glimmer-pipeline/internal/bundler"
	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/internal/environment"
	"glimmer-pipeline/internal/fingerprint"
	"glimmer-pipeline/internal/html"
	"glimmer-pipeline/internal/issue"
	"glimmer-pipeline/internal/styles"
	"glimmer-pipeline/internal/templates"
	"glimmer-pipeline/pkg/modulemap"
	"glimmer-pipeline/pkg/tree"
)

const (
	stageEnvironment           = "environment"
	stageSrc                   = "src"
	stageTemplates             = "templates"
	stageTypeScript            = "typescript"
	stageModuleMap             = "module-map"
	stageResolverConfiguration = "resolver-configuration"
	stageConfig                = "config"
	stageJavaScript            = "javascript"
	stageBundle                = "bundle"
	stageTests                 = "tests"
	stageCSS                   = "css"
	stageHTML                  = "html"
	stagePublic                = "public"
	stagePackage               = "package"

	// sourceDir is where sources sit in the tree handed to the bundler,
	// next to the generated config/ modules.
	sourceDir = "src"
	// testsDir holds a separate tests tree in the bundler tree.
	testsDir = "tests"

	// EntryPoint is the application module the bundle starts from.
	EntryPoint = sourceDir + "/index.js"
	// TestsOutputPath is the test bundle in test builds.
	TestsOutputPath = "tests.js"

	environmentModulePath = "config/environment.js"
	legacyEntryPoint      = "main.ts"
)

var legacyImports = []string{"'./config/module-map", "'./config/resolver-configuration", `"./config/module-map`, `"./config/resolver-configuration`}

func (a *App) stageList() []stage {
	stages := []stage{
		{name: stageEnvironment, run: a.loadEnvironment},
		{name: stageSrc, run: a.readSource},
		{name: stageCSS, run: a.buildStyles},
		{name: stagePublic, run: a.readPublic},
		{name: stageTemplates, deps: []string{stageEnvironment, stageSrc}, run: a.precompileTemplates},
		{name: stageTypeScript, deps: []string{stageSrc}, run: a.compileTypeScript},
		{name: stageModuleMap, deps: []string{stageEnvironment, stageSrc, stageTypeScript, stageTemplates}, run: a.buildModuleMap},
		{name: stageResolverConfiguration, deps: []string{stageEnvironment}, run: a.buildResolverConfiguration},
		{name: stageConfig, deps: []string{stageEnvironment}, run: a.buildConfigModule},
		{name: stageHTML, deps: []string{stageEnvironment, stageSrc}, run: a.buildHTML},
		{
			name: stageJavaScript,
			deps: []string{stageSrc, stageTypeScript, stageTemplates, stageModuleMap, stageResolverConfiguration, stageConfig},
			run:  a.composeJavaScript,
		},
		{name: stageBundle, deps: []string{stageJavaScript}, run: a.bundleApp},
	}
	pkgDeps := []string{stageBundle, stageHTML, stageCSS, stagePublic, stageTemplates}
	if a.opts.Environment == config.EnvironmentTest {
		stages = append(stages, stage{name: stageTests, deps: []string{stageJavaScript}, run: a.bundleTests})
		pkgDeps = append(pkgDeps, stageTests)
	}
	return append(stages, stage{name: stagePackage, deps: pkgDeps, run: a.composePackage})
}

func (a *App) loadEnvironment(ctx context.Context, r *run) (tree.Tree, error) {
	env, err := environment.Load(ctx, environment.LoadOptions{
		ProjectDir:  a.opts.ProjectDir,
		BasePath:    a.cfg.EnvironmentPath,
		Environment: a.opts.Environment,
	})
	if err != nil {
		if errors.Is(err, environment.ErrInvalidEnvironmentConfig) || errors.Is(err, environment.ErrMissingModulePrefix) {
			return tree.Tree{}, &ConfigurationError{Message: "cannot use the environment config", Issue: issue.EnvironmentConfigInvalidId, Err: err}
		}
		return tree.Tree{}, err
	}
	r.mu.Lock()
	r.env = env
	r.mu.Unlock()
	return tree.Tree{}, nil
}

func (a *App) readSource(ctx context.Context, _ *run) (tree.Tree, error) {
	src, ok, err := tree.ReadOptionalDir(ctx, a.projectPath(a.cfg.Trees.Src))
	if err != nil {
		return tree.Tree{}, err
	}
	if !ok {
		return tree.Tree{}, &ConfigurationError{
			Message: fmt.Sprintf("source directory %q does not exist", a.cfg.Trees.Src),
			Issue:   issue.SourceDirMissingId,
		}
	}
	if err := detectOutdatedEntryPoint(src); err != nil {
		return tree.Tree{}, err
	}
	return a.addons.Preprocess(ctx, addon.KindSrc, src)
}

// detectOutdatedEntryPoint rejects entry points written for the layout where
// generated config modules lived inside the source directory.
func detectOutdatedEntryPoint(src tree.Tree) error {
	data, ok := src.Get(legacyEntryPoint)
	if !ok {
		return nil
	}
	for _, imp := range legacyImports {
		if strings.Contains(string(data), imp) {
			return &ConfigurationError{
				Message: fmt.Sprintf("src/%s imports generated modules from ./config; import them from ../config instead", legacyEntryPoint),
				Issue:   issue.OutdatedBlueprintId,
			}
		}
	}
	return nil
}

func (a *App) readPublic(ctx context.Context, _ *run) (tree.Tree, error) {
	public, _, err := tree.ReadOptionalDir(ctx, a.projectPath(a.cfg.Trees.Public))
	return public, err
}

func (a *App) precompileTemplates(ctx context.Context, r *run) (tree.Tree, error) {
	src := r.get(stageSrc)
	opts := templates.Options{
		Format:              a.cfg.TemplateFormat,
		ModulePrefix:        r.env.ModulePrefix,
		ModuleConfiguration: r.env.ModuleConfiguration,
	}
	configJSON, err := r.env.ModuleConfiguration.MarshalJSON()
	if err != nil {
		return tree.Tree{}, err
	}

	hbs, err := tree.Funnel(src, tree.FunnelOptions{Include: []string{"**/*" + templates.Extension}})
	if err != nil {
		return tree.Tree{}, err
	}
	key := memoKey(stageTemplates, hbs.Hash(), string(opts.Format), opts.ModulePrefix, string(configJSON))
	res, hit, err := remember(a.memo, key, func() (templates.Result, error) {
		return templates.Precompile(ctx, hbs, opts)
	})
	if err != nil {
		return tree.Tree{}, err
	}
	if !hit {
		for _, p := range res.Unclassified {
			a.logger.Warn("template has no specifier", "path", p)
		}
	}

	r.mu.Lock()
	r.templates = res
	r.mu.Unlock()
	return res.Tree, nil
}

func (a *App) compileTypeScript(ctx context.Context, r *run) (tree.Tree, error) {
	tsconfig, _, err := compiler.LoadTsconfig(a.opts.ProjectDir)
	if err != nil {
		return tree.Tree{}, &ConfigurationError{Message: "cannot use tsconfig.json", Issue: issue.TsconfigInvalidId, Err: err}
	}
	opts := compiler.Options{TsconfigRaw: tsconfig, Sourcemaps: a.cfg.Sourcemaps.Enabled}
	return a.compile(ctx, stageTypeScript, r.get(stageSrc), opts)
}

func (a *App) compile(ctx context.Context, name string, src tree.Tree, opts compiler.Options) (tree.Tree, error) {
	ts, err := tree.Funnel(src, tree.FunnelOptions{Include: []string{"**/*.ts"}})
	if err != nil {
		return tree.Tree{}, err
	}
	out, _, err := remember(a.memo, memoKey(name, ts.Hash(), opts), func() (tree.Tree, error) {
		return compiler.Compile(ctx, ts, opts)
	})
	return out, err
}

// scripts returns the modules of the source tree: raw JavaScript overlaid
// with compiled TypeScript and, in json format, precompiled templates.
func (a *App) scripts(r *run) tree.Tree {
	src := r.get(stageSrc)
	raw, _ := tree.Funnel(src, tree.FunnelOptions{Include: []string{"**/*.js", "**/*.mjs", "**/*.json"}})
	return tree.Overlay(raw, r.get(stageTypeScript), r.get(stageTemplates))
}

func (a *App) buildModuleMap(_ context.Context, r *run) (tree.Tree, error) {
	modules := a.scripts(r).Without(templates.DataSegmentPath)
	res, err := modulemap.Build(modules, r.env.ModuleConfiguration, r.env.ModulePrefix,
		modulemap.WithStrictClassification(a.cfg.StrictModuleMap),
		modulemap.WithSourceDir(sourceDir),
	)
	if err != nil {
		return tree.Tree{}, err
	}
	for _, skip := range res.Skipped {
		if skip.Err != nil {
			a.logger.Warn("module left out of the module map", "path", skip.Path, "reason", skip.Err)
			continue
		}
		a.logger.Debug("module left out of the module map", "path", skip.Path, "reason", skip.Reason)
	}
	return tree.New(res.File)
}

func (a *App) buildResolverConfiguration(_ context.Context, r *run) (tree.Tree, error) {
	f, err := modulemap.ResolverConfiguration(r.env.ModuleConfiguration, r.env.ModulePrefix)
	if err != nil {
		return tree.Tree{}, err
	}
	return tree.New(f)
}

func (a *App) buildConfigModule(_ context.Context, r *run) (tree.Tree, error) {
	render := r.env.Module
	if a.cfg.StoreConfigInMeta {
		render = r.env.MetaModule
	}
	data, err := render()
	if err != nil {
		return tree.Tree{}, err
	}
	return tree.New(tree.File{Path: environmentModulePath, Data: data})
}

func (a *App) buildHTML(_ context.Context, r *run) (tree.Tree, error) {
	opts := html.Options{
		OutputPath: string(a.cfg.OutputPaths.App.HTML),
		RootURL:    r.env.RootURL,
		Addons:     a.addons,
	}
	if a.cfg.StoreConfigInMeta {
		tag, err := r.env.MetaTag()
		if err != nil {
			return tree.Tree{}, err
		}
		opts.MetaTag = tag
	}
	out, err := html.Build(r.get(stageSrc), opts)
	if errors.Is(err, html.ErrMissingIndex) {
		return tree.Tree{}, &ConfigurationError{Message: "the application page is missing", Issue: issue.SourceDirMissingId, Err: err}
	}
	return out, err
}

func (a *App) composeJavaScript(_ context.Context, r *run) (tree.Tree, error) {
	srcScripts, err := tree.Funnel(a.scripts(r), tree.FunnelOptions{DestDir: sourceDir})
	if err != nil {
		return tree.Tree{}, err
	}
	return tree.Merge([]tree.Named{
		{Name: "src", Tree: srcScripts},
		{Name: stageModuleMap, Tree: r.get(stageModuleMap)},
		{Name: stageResolverConfiguration, Tree: r.get(stageResolverConfiguration)},
		{Name: stageConfig, Tree: r.get(stageConfig)},
	}, tree.MergeOptions{Overwrite: true})
}

func (a *App) bundleOptions(ctx context.Context, logger bundler.Logger) (bundler.Options, error) {
	modules, _, err := tree.ReadOptionalDir(ctx, a.projectPath(a.cfg.Trees.NodeModules))
	if err != nil {
		return bundler.Options{}, err
	}
	return bundler.Options{
		Format:          a.cfg.Rollup.Format,
		GlobalName:      a.cfg.Rollup.Name,
		External:        a.cfg.Rollup.External,
		Treeshake:       a.cfg.Rollup.Treeshake,
		Plugins:         a.cfg.Babel.Plugins,
		Sourcemaps:      a.cfg.Sourcemaps.Enabled,
		Minify:          a.cfg.Minify.Enabled && a.opts.Environment.IsProduction(),
		Environment:     a.opts.Environment,
		VendorNamespace: a.cfg.VendorNamespace,
		NodeModules:     modules,
		Logger:          logger,
	}, nil
}

func (a *App) bundle(ctx context.Context, name string, in tree.Tree, entry, outFile string) (tree.Tree, error) {
	if !in.Has(entry) {
		return tree.Tree{}, &ConfigurationError{
			Message: fmt.Sprintf("missing entry point %s (write src/index.ts or src/index.js)", entry),
			Issue:   issue.SourceDirMissingId,
		}
	}
	opts, err := a.bundleOptions(ctx, a.logger.With("stage", name))
	if err != nil {
		return tree.Tree{}, err
	}
	digest := opts
	digest.Logger, digest.NodeModules = nil, tree.Tree{}
	key := memoKey(name, in.Hash(), opts.NodeModules.Hash(), entry, outFile, digest)

	out, _, err := remember(a.memo, key, func() (tree.Tree, error) {
		return bundler.Bundle(ctx, in, entry, outFile, opts)
	})
	if errors.Is(err, bundler.ErrConfiguration) {
		return tree.Tree{}, &ConfigurationError{Message: "cannot bundle with the current options", Issue: issue.BuildConfigInvalidId, Err: err}
	}
	return out, err
}

func (a *App) bundleApp(ctx context.Context, r *run) (tree.Tree, error) {
	return a.bundle(ctx, stageBundle, r.get(stageJavaScript), EntryPoint, string(a.cfg.OutputPaths.App.JS))
}

// bundleTests bundles every *-test module. Tests under the source tree are
// already compiled; a separate tests tree is compiled here.
func (a *App) bundleTests(ctx context.Context, r *run) (tree.Tree, error) {
	js := r.get(stageJavaScript)
	if a.cfg.Trees.Tests != a.cfg.Trees.Src {
		tests, _, err := tree.ReadOptionalDir(ctx, a.projectPath(a.cfg.Trees.Tests))
		if err != nil {
			return tree.Tree{}, err
		}
		tsconfig, _, err := compiler.LoadTsconfig(a.opts.ProjectDir)
		if err != nil {
			return tree.Tree{}, &ConfigurationError{Message: "cannot use tsconfig.json", Issue: issue.TsconfigInvalidId, Err: err}
		}
		compiled, err := a.compile(ctx, stageTests+"-"+stageTypeScript, tests, compiler.Options{TsconfigRaw: tsconfig, Sourcemaps: a.cfg.Sourcemaps.Enabled})
		if err != nil {
			return tree.Tree{}, err
		}
		raw, _ := tree.Funnel(tests, tree.FunnelOptions{Include: []string{"**/*.js"}})
		moved, err := tree.Funnel(tree.Overlay(raw, compiled), tree.FunnelOptions{DestDir: testsDir})
		if err != nil {
			return tree.Tree{}, err
		}
		js = tree.Overlay(js, moved)
	}

	entry := modulemap.TestEntrypoint(js)
	withEntry, err := js.With(entry.Path, entry.Data)
	if err != nil {
		return tree.Tree{}, err
	}
	return a.bundle(ctx, stageTests, withEntry, entry.Path, TestsOutputPath)
}

func (a *App) buildStyles(ctx context.Context, _ *run) (tree.Tree, error) {
	in, _, err := tree.ReadOptionalDir(ctx, a.projectPath(a.cfg.Trees.Styles))
	if err != nil {
		return tree.Tree{}, err
	}
	in, err = a.addons.Preprocess(ctx, addon.KindCSS, in)
	if err != nil {
		return tree.Tree{}, err
	}
	return styles.Build(ctx, in, styles.Options{
		OutputPath: string(a.cfg.OutputPaths.App.CSS),
		Command:    a.cfg.Styles.Command,
		Timeout:    time.Duration(a.cfg.Styles.Timeout),
		Dir:        a.opts.ProjectDir,
		Minify:     a.cfg.Minify.Enabled && a.opts.Environment.IsProduction(),
		Logger:     a.logger.With("stage", stageCSS),
	})
}

func (a *App) composePackage(ctx context.Context, r *run) (tree.Tree, error) {
	inputs := []tree.Named{
		{Name: stageBundle, Tree: r.get(stageBundle)},
		{Name: stageHTML, Tree: r.get(stageHTML)},
		{Name: stageCSS, Tree: r.get(stageCSS)},
		{Name: stagePublic, Tree: r.get(stagePublic)},
	}
	if bytecode, ok := r.templates.Tree.Get(templates.BytecodePath); ok {
		inputs = append(inputs, tree.Named{Name: stageTemplates, Tree: tree.MustNew(tree.File{Path: templates.BytecodePath, Data: bytecode})})
	}
	if a.opts.Environment == config.EnvironmentTest {
		inputs = append(inputs, tree.Named{Name: stageTests, Tree: r.get(stageTests)})
	}

	out, err := tree.Merge(inputs, tree.MergeOptions{})
	if err != nil {
		return tree.Tree{}, err
	}

	if a.opts.Environment.IsProduction() && a.cfg.Fingerprint.Enabled {
		res, err := fingerprint.Apply(out, fingerprint.Options{
			Extensions:        a.cfg.Fingerprint.Extensions,
			ReplaceExtensions: a.cfg.Fingerprint.ReplaceExtensions,
			Exclude:           a.cfg.Fingerprint.Exclude,
			Prepend:           a.cfg.Fingerprint.Prepend,
		})
		if err != nil {
			return tree.Tree{}, err
		}
		out = res.Tree
	}

	return a.addons.Postprocess(ctx, addon.KindAll, out)
}
