// SPDX-License-Identifier: MPL-2.0

package modulemap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"glimmer-pipeline/pkg/moduleconfig"
	"glimmer-pipeline/pkg/resolution"
	"glimmer-pipeline/pkg/tree"
)

// ResolverConfiguration serializes cfg with the application metadata the
// runtime resolver needs.
func ResolverConfiguration(cfg *moduleconfig.Resolved, modulePrefix string) (tree.File, error) {
	app, err := json.Marshal(map[string]string{"name": modulePrefix, "rootName": modulePrefix})
	if err != nil {
		return tree.File{}, err
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return tree.File{}, fmt.Errorf("encode resolver configuration: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(`export default {"app":`)
	b.Write(app)
	b.WriteByte(',')
	b.Write(bytes.TrimPrefix(body, []byte("{")))
	b.WriteString(";\n")
	return tree.File{Path: ResolverConfigurationPath, Data: b.Bytes()}, nil
}

// TestEntrypoint builds a module importing every test module of tests in
// lexicographic order. A test module is a JavaScript or TypeScript file
// whose base name ends in "-test".
func TestEntrypoint(tests tree.Tree) tree.File {
	var b strings.Builder
	for _, p := range tests.Paths() {
		if !IsModuleFile(p) {
			continue
		}
		module := resolution.StripExtension(p)
		if !strings.HasSuffix(path.Base(module), "-test") {
			continue
		}
		fmt.Fprintf(&b, "import %s;\n", jsString("./"+module))
	}
	return tree.File{Path: TestEntrypointPath, Data: []byte(b.String())}
}
