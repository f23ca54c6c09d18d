// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"glimmer-pipeline/internal/addon"
	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/internal/issue"
	"glimmer-pipeline/internal/templates"
	"glimmer-pipeline/internal/testutil"
	"glimmer-pipeline/pkg/modulemap"
	"glimmer-pipeline/pkg/resolution"
	"glimmer-pipeline/pkg/tree"

	"github.com/charmbracelet/log"
)

func newApp(t *testing.T, dir string, env config.Environment, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	app, err := New(Options{ProjectDir: dir, Environment: env, Config: cfg})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return app
}

func mustGet(t *testing.T, out tree.Tree, p string) string {
	t.Helper()
	data, ok := out.Get(p)
	if !ok {
		t.Fatalf("package is missing %s: %v", p, out.Paths())
	}
	return string(data)
}

func TestBuild_Development(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, nil)
	out, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := out.Paths(); len(got) != 3 || got[0] != "app.css" || got[1] != "app.js" || got[2] != "index.html" {
		t.Errorf("paths = %v", got)
	}

	page := mustGet(t, out, "index.html")
	if !strings.Contains(page, `<script src="/app.js">`) || !strings.Contains(page, `href="/app.css"`) {
		t.Errorf("index.html:\n%s", page)
	}
	if strings.Contains(page, "{{") {
		t.Errorf("placeholders left in index.html:\n%s", page)
	}

	js := mustGet(t, out, "app.js")
	for _, want := range []string{
		`"component:/my-app/components/hello-world"`,
		`"template:/my-app/components/hello-world"`,
		`"my-app"`,
		"hello",
	} {
		if !strings.Contains(js, want) {
			t.Errorf("app.js missing %s", want)
		}
	}
	if !strings.Contains(mustGet(t, out, "app.css"), "color: black") {
		t.Error("app.css should hold the stylesheet")
	}
}

func TestBuild_ProductionFingerprintsAndMinifies(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, map[string]string{"public/robots.txt": "User-agent: *"})
	out, err := newApp(t, dir, config.EnvironmentProduction, nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var js, css string
	for _, p := range out.Paths() {
		switch {
		case regexp.MustCompile(`^app-[0-9a-f]{16}\.js$`).MatchString(p):
			js = p
		case regexp.MustCompile(`^app-[0-9a-f]{16}\.css$`).MatchString(p):
			css = p
		}
	}
	if js == "" || css == "" {
		t.Fatalf("assets were not fingerprinted: %v", out.Paths())
	}
	if !out.Has("robots.txt") || !out.Has("index.html") {
		t.Errorf("public files and the page keep their names: %v", out.Paths())
	}

	page := mustGet(t, out, "index.html")
	if !strings.Contains(page, `src="/app/`+js+`"`) || !strings.Contains(page, `href="/app/`+css+`"`) {
		t.Errorf("index.html should reference fingerprinted assets under /app/:\n%s", page)
	}
	if strings.Count(mustGet(t, out, js), "\n") > 2 {
		t.Error("production bundle should be minified")
	}
}

func TestBuild_FingerprintDisabled(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, nil)
	out, err := newApp(t, dir, config.EnvironmentProduction, func(c *config.Config) {
		c.Fingerprint.Enabled = false
	}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !out.Has("app.js") || !out.Has("app.css") {
		t.Errorf("paths = %v", out.Paths())
	}
}

func TestBuild_TestEnvironmentBundlesTests(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, map[string]string{
		"src/ui/components/hello-world/component-test.ts": "import HelloWorld from './component';\nconsole.log('running-tests', new HelloWorld().greeting);\n",
	})
	app := newApp(t, dir, config.EnvironmentTest, nil)
	out, err := app.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	tests := mustGet(t, out, TestsOutputPath)
	if !strings.Contains(tests, "running-tests") {
		t.Errorf("tests.js should bundle the test modules:\n%s", tests)
	}
	if strings.Contains(mustGet(t, out, "app.js"), "running-tests") {
		t.Error("app.js should not include tests")
	}

	dev, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if dev.Has(TestsOutputPath) {
		t.Error("tests.js is only built for the test environment")
	}
}

func TestBuild_ConfigInMeta(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, map[string]string{
		"src/index.ts": "import env from '../config/environment';\nexport const prefix = env.modulePrefix;\n",
	})
	out, err := newApp(t, dir, config.EnvironmentDevelopment, func(c *config.Config) {
		c.StoreConfigInMeta = true
		c.ContentFor = map[string]string{"body-footer": "<!-- footer -->"}
	}).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	page := mustGet(t, out, "index.html")
	if !strings.Contains(page, `<meta name="my-app/config/environment" content="`) {
		t.Errorf("index.html should carry the config meta tag:\n%s", page)
	}
	if !strings.Contains(page, "<!-- footer -->") {
		t.Errorf("index.html should carry static content:\n%s", page)
	}
	app := mustGet(t, out, "app.js")
	if strings.Contains(app, `modulePrefix: "my-app"`) || strings.Contains(app, `"modulePrefix":"my-app"`) {
		t.Errorf("app.js should not inline the config:\n%s", app)
	}
	if !strings.Contains(app, "decodeURIComponent") {
		t.Errorf("app.js should read the config from the meta tag:\n%s", app)
	}
}

func TestWrite_RejectsUnsafeOutputDir(t *testing.T) {
	t.Parallel()

	tests := []string{".", "..", "src", "src/ui", "public", "node_modules", "config"}
	for _, outDir := range tests {
		t.Run(outDir, func(t *testing.T) {
			t.Parallel()

			dir := testutil.NewProject(t, nil)
			_, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Write(context.Background(), outDir)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Write(%q) error = %v, want *ConfigurationError", outDir, err)
			}
			if cfgErr.Issue != issue.OutputDirUnsafeId {
				t.Errorf("Issue = %v, want OutputDirUnsafeId", cfgErr.Issue)
			}
			if _, err := os.Stat(filepath.Join(dir, "src", "index.ts")); err != nil {
				t.Errorf("src/index.ts should survive: %v", err)
			}
		})
	}
}

func TestBuild_BytecodeTemplates(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, nil)
	out, err := newApp(t, dir, config.EnvironmentDevelopment, func(c *config.Config) {
		c.TemplateFormat = config.TemplateFormatBytecode
	}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	entries, err := templates.DecodeBytecode([]byte(mustGet(t, out, templates.BytecodePath)))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Specifier != "template:/my-app/components/hello-world" {
		t.Errorf("entries = %+v", entries)
	}
	if strings.Contains(mustGet(t, out, "app.js"), `"template:/my-app/components/hello-world"`) {
		t.Error("bytecode templates should not be in the module map")
	}
}

func TestBuild_EnvironmentModule(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, map[string]string{
		"src/index.ts": "import env from '../config/environment';\nconsole.log(env.modulePrefix);\n",
	})
	app := newApp(t, dir, config.EnvironmentDevelopment, nil)
	out, err := app.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mustGet(t, out, "app.js"), `modulePrefix: "my-app"`) {
		t.Errorf("app.js should embed the environment config:\n%s", mustGet(t, out, "app.js"))
	}
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		files  map[string]string
		remove bool
		mutate func(*config.Config)
		issue  issue.Id
	}{
		{
			name:  "outdated entry point",
			files: map[string]string{"src/main.ts": "import moduleMap from './config/module-map';"},
			issue: issue.OutdatedBlueprintId,
		},
		{
			name:   "missing source directory",
			mutate: func(c *config.Config) { c.Trees.Src = "app" },
			issue:  issue.SourceDirMissingId,
		},
		{
			name:  "malformed tsconfig",
			files: map[string]string{"tsconfig.json": `{"compilerOptions": `},
			issue: issue.TsconfigInvalidId,
		},
		{
			name:  "invalid environment config",
			files: map[string]string{"config/environment.json": `{"staging": {}}`},
			issue: issue.EnvironmentConfigInvalidId,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := testutil.NewProject(t, tt.files)
			_, err := newApp(t, dir, config.EnvironmentDevelopment, tt.mutate).Build(context.Background())
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Build() error = %v, want ErrConfiguration", err)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) || ce.Issue != tt.issue {
				t.Errorf("error = %v, want issue %d", err, tt.issue)
			}
		})
	}
}

func TestBuild_ClassificationAndCollisions(t *testing.T) {
	t.Parallel()

	t.Run("unclassifiable module is skipped with a warning", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		dir := testutil.NewProject(t, map[string]string{"src/ui/nowhere/thing.ts": "export default 1;"})
		app, err := New(Options{ProjectDir: dir, Environment: config.EnvironmentDevelopment, Logger: log.New(&logs)})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := app.Build(context.Background()); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if !strings.Contains(logs.String(), "ui/nowhere/thing.js") {
			t.Errorf("expected a warning naming the module, got:\n%s", logs.String())
		}
	})

	t.Run("strict mode fails", func(t *testing.T) {
		t.Parallel()

		dir := testutil.NewProject(t, map[string]string{"src/ui/nowhere/thing.ts": "export default 1;"})
		_, err := newApp(t, dir, config.EnvironmentDevelopment, func(c *config.Config) { c.StrictModuleMap = true }).Build(context.Background())
		if !errors.Is(err, resolution.ErrClassification) {
			t.Errorf("Build() error = %v, want ErrClassification", err)
		}
	})

	t.Run("collision", func(t *testing.T) {
		t.Parallel()

		dir := testutil.NewProject(t, map[string]string{"src/ui/components/hello-world.ts": "export default 2;"})
		_, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Build(context.Background())
		if !errors.Is(err, modulemap.ErrResolutionCollision) {
			t.Fatalf("Build() error = %v, want ErrResolutionCollision", err)
		}
		var se *StageError
		if !errors.As(err, &se) || se.Stage != stageModuleMap {
			t.Errorf("error should name the module-map stage, got %v", err)
		}
	})
}

func TestBuild_TransformErrorsNameTheFile(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, map[string]string{"src/ui/components/hello-world/component.ts": "export default class {"})
	_, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Build(context.Background())
	var te *compiler.TransformError
	if !errors.As(err, &te) {
		t.Fatalf("Build() error = %v, want TransformError", err)
	}
	if te.Path != "ui/components/hello-world/component.ts" || te.Line == 0 {
		t.Errorf("error = %v", te)
	}
}

func TestBuild_PublicConflict(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, map[string]string{"public/index.html": "<p>static</p>"})
	_, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Build(context.Background())
	if !errors.Is(err, tree.ErrMergeConflict) {
		t.Errorf("Build() error = %v, want ErrMergeConflict", err)
	}
}

func TestBuild_AddonHooks(t *testing.T) {
	t.Parallel()

	var order []string
	dir := testutil.NewProject(t, nil)
	app, err := New(Options{
		ProjectDir:  dir,
		Environment: config.EnvironmentDevelopment,
		Addons: []addon.Hooks{{
			Name: "recorder",
			Preprocess: func(_ context.Context, kind addon.Kind, in tree.Tree) (tree.Tree, error) {
				if kind == addon.KindSrc {
					return in.With("ui/components/added/component.js", []byte("export default 'added';"))
				}
				return in, nil
			},
			Postprocess: func(_ context.Context, kind addon.Kind, in tree.Tree) (tree.Tree, error) {
				order = append(order, string(kind))
				return in.With("VERSION", []byte("1"))
			},
			ContentFor: func(contentType string, _ []string) string {
				if contentType == "head" {
					return "<!-- recorder -->"
				}
				return ""
			},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := app.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(mustGet(t, out, "app.js"), `"component:/my-app/components/added"`) {
		t.Error("preprocessed source should reach the module map")
	}
	if mustGet(t, out, "VERSION") != "1" || len(order) != 1 || order[0] != string(addon.KindAll) {
		t.Errorf("postprocess order = %v", order)
	}
	if !strings.Contains(mustGet(t, out, "index.html"), "<!-- recorder -->") {
		t.Error("addon content should reach index.html")
	}
}

func TestBuild_RepeatedBuildsAreStable(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, nil)
	app := newApp(t, dir, config.EnvironmentDevelopment, nil)
	first, err := app.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if app.memo.cache.Len() == 0 {
		t.Error("compile and bundle results should be memoized")
	}
	second, err := app.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Hash() != second.Hash() {
		t.Error("rebuilding an unchanged project should give the same package")
	}

	testutil.MustWriteFiles(t, dir, map[string]string{"src/ui/components/hello-world/template.hbs": "<p>changed</p>"})
	third, err := app.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if third.Hash() == first.Hash() {
		t.Error("a changed template should change the package")
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	dir := testutil.NewProject(t, nil)
	if _, err := newApp(t, dir, config.EnvironmentDevelopment, nil).Write(context.Background(), "dist"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	page := testutil.MustReadFile(t, filepath.Join(dir, "dist", "index.html"))
	if !strings.Contains(page, "/app.js") {
		t.Errorf("dist/index.html:\n%s", page)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []Options{
		{Environment: config.EnvironmentDevelopment},
		{ProjectDir: ".", Environment: "staging"},
		{ProjectDir: ".", Environment: config.EnvironmentDevelopment, CacheSize: -1},
	}
	for _, opts := range tests {
		if _, err := New(opts); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("New(%+v) error = %v, want ErrInvalidOptions", opts, err)
		}
	}
}

func TestApp_Stages(t *testing.T) {
	t.Parallel()

	levels := newApp(t, t.TempDir(), config.EnvironmentTest, nil).Stages()
	position := make(map[string]int)
	for i, level := range levels {
		for _, name := range level {
			position[name] = i
		}
	}
	for _, name := range []string{stageEnvironment, stageSrc, stageCSS, stagePublic} {
		if position[name] != 0 {
			t.Errorf("%s should run in the first level, got %d", name, position[name])
		}
	}
	if position[stageTests] != position[stageBundle] {
		t.Error("tests and bundle should run concurrently")
	}
	if last := levels[len(levels)-1]; len(last) != 1 || last[0] != stagePackage {
		t.Errorf("last level = %v", last)
	}
}
