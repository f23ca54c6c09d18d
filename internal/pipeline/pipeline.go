// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"glimmer-pipeline/internal/addon"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/internal/dag"
	"glimmer-pipeline/internal/environment"
	"glimmer-pipeline/internal/issue"
	"glimmer-pipeline/internal/templates"
	"glimmer-pipeline/pkg/tree"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type (
	// App assembles a project into its deployable package. One App may
	// build many times; unchanged compile and bundle work is reused.
	App struct {
		opts   Options
		cfg    *config.Config
		addons *addon.Registry
		logger *log.Logger
		memo   *memo
		stages map[string]stage
		graph  *dag.Graph
	}

	stage struct {
		name string
		deps []string
		run  func(ctx context.Context, r *run) (tree.Tree, error)
	}

	// run holds the state of one Build.
	run struct {
		app *App

		mu      sync.Mutex
		outputs map[string]tree.Tree

		env       *environment.Config
		templates templates.Result
	}
)

// New validates opts and prepares the stage graph.
func New(opts Options) (*App, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	registry, err := addon.NewRegistry(addon.StaticContent(cfg.ContentFor))
	if err != nil {
		return nil, err
	}
	for _, h := range opts.Addons {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	m, err := newMemo(size)
	if err != nil {
		return nil, err
	}

	a := &App{
		opts:   opts,
		cfg:    cfg,
		addons: registry,
		logger: logger.WithPrefix("pipeline"),
		memo:   m,
		stages: make(map[string]stage),
		graph:  dag.New(),
	}
	for _, s := range a.stageList() {
		a.stages[s.name] = s
		a.graph.AddNode(s.name)
		for _, dep := range s.deps {
			a.graph.AddEdge(dep, s.name)
		}
	}
	if _, err := a.graph.Levels(); err != nil {
		return nil, err
	}
	return a, nil
}

// Stages returns the stage names grouped into levels that run concurrently.
func (a *App) Stages() [][]string {
	levels, _ := a.graph.Levels()
	return levels
}

// Build runs every stage and returns the package tree.
func (a *App) Build(ctx context.Context) (tree.Tree, error) {
	levels, err := a.graph.Levels()
	if err != nil {
		return tree.Tree{}, err
	}

	r := &run{app: a, outputs: make(map[string]tree.Tree)}
	started := time.Now()

	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range level {
			s := a.stages[name]
			g.Go(func() error {
				stageStart := time.Now()
				out, err := s.run(gctx, r)
				if err != nil {
					return &StageError{Stage: s.name, Err: err}
				}
				r.set(s.name, out)
				a.logger.Debug("stage finished", "stage", s.name, "files", out.Len(), "duration", time.Since(stageStart).Round(time.Microsecond))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return tree.Tree{}, err
		}
	}

	out := r.get(stagePackage)
	a.logger.Info("build finished", "environment", a.opts.Environment, "files", out.Len(), "duration", time.Since(started).Round(time.Millisecond))
	return out, nil
}

// Write builds and replaces outDir with the package tree. outDir is
// relative to the project directory unless absolute. It is emptied first, so
// it may neither hold the project nor overlap an input tree.
func (a *App) Write(ctx context.Context, outDir string) (tree.Tree, error) {
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(a.opts.ProjectDir, outDir)
	}
	if err := a.checkOutputDir(outDir); err != nil {
		return tree.Tree{}, err
	}

	out, err := a.Build(ctx)
	if err != nil {
		return tree.Tree{}, err
	}
	if err := out.WriteDir(ctx, outDir); err != nil {
		return tree.Tree{}, fmt.Errorf("write package: %w", err)
	}
	return out, nil
}

// checkOutputDir rejects an output directory that is the project root or a
// parent of it, or that contains or sits inside an input tree.
func (a *App) checkOutputDir(outDir string) error {
	outDir, err := filepath.Abs(outDir)
	if err != nil {
		return &ConfigurationError{Message: "cannot resolve the output directory", Issue: issue.OutputDirUnsafeId, Err: err}
	}
	project, err := filepath.Abs(a.opts.ProjectDir)
	if err != nil {
		return &ConfigurationError{Message: "cannot resolve the project directory", Issue: issue.OutputDirUnsafeId, Err: err}
	}

	if isWithin(project, outDir) {
		return &ConfigurationError{
			Message: fmt.Sprintf("output directory %s would remove the project at %s", outDir, project),
			Issue:   issue.OutputDirUnsafeId,
		}
	}

	inputs := []struct{ name, dir string }{
		{"trees.src", a.cfg.Trees.Src},
		{"trees.styles", a.cfg.Trees.Styles},
		{"trees.public", a.cfg.Trees.Public},
		{"trees.node_modules", a.cfg.Trees.NodeModules},
		{"trees.tests", a.cfg.Trees.Tests},
		{"environment_path", path.Dir(a.cfg.EnvironmentPath)},
	}
	for _, in := range inputs {
		if in.dir == "" || in.dir == "." {
			continue
		}
		dir := a.projectPath(in.dir)
		if isWithin(dir, outDir) || isWithin(outDir, dir) {
			return &ConfigurationError{
				Message: fmt.Sprintf("output directory %s overlaps %s (%s)", outDir, in.name, dir),
				Issue:   issue.OutputDirUnsafeId,
			}
		}
	}
	return nil
}

// isWithin reports whether p is dir or lies below it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (r *run) set(name string, t tree.Tree) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = t
}

func (r *run) get(name string) tree.Tree {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs[name]
}

func (a *App) projectPath(rel string) string {
	return filepath.Join(a.opts.ProjectDir, filepath.FromSlash(rel))
}
