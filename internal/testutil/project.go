// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"maps"
	"testing"
)

// MinimalProject is the smallest project the pipeline builds: an entry
// point, one component with a template and the HTML shell.
func MinimalProject() map[string]string {
	return map[string]string{
		"package.json": `{"name": "my-app", "version": "0.0.0"}`,
		"config/environment.json": `{
  "default": {"modulePrefix": "my-app", "rootURL": "/"},
  "production": {"rootURL": "/app/"}
}`,
		"src/index.ts": `import moduleMap from '../config/module-map';
import resolverConfiguration from '../config/resolver-configuration';

export const modules: number = Object.keys(moduleMap).length;
export const app = resolverConfiguration.app.name;
`,
		"src/ui/components/hello-world/component.ts": `export default class HelloWorld {
  greeting: string = 'hello';
}
`,
		"src/ui/components/hello-world/template.hbs": `<p>{{greeting}}</p>
`,
		"src/ui/index.html": `<!DOCTYPE html>
<html>
<head>
  {{content-for "head"}}
  <link rel="stylesheet" href="{{rootURL}}app.css">
</head>
<body>
  <script src="{{rootURL}}app.js"></script>
  {{content-for "body-footer"}}
</body>
</html>
`,
		"src/ui/styles/app.css": `body { color: black; }
`,
	}
}

// NewProject writes MinimalProject plus extra files (extra wins on a shared
// path) into a temporary directory and returns it.
func NewProject(t testing.TB, extra map[string]string) string {
	t.Helper()
	files := MinimalProject()
	maps.Copy(files, extra)
	dir := t.TempDir()
	MustWriteFiles(t, dir, files)
	return dir
}
