// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ProjectNotFoundId Id = iota + 1
	SourceDirMissingId
	BuildConfigInvalidId
	ModuleConfigInvalidId
	EnvironmentConfigInvalidId
	TsconfigInvalidId
	OutdatedBlueprintId
	ClassificationFailedId
	ResolutionCollisionId
	MergeConflictId
	TransformFailedId
	StyleCommandTimedOutId
	OutputDirUnsafeId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	slug     string      // name accepted by the explain command
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Slug() string {
	return i.slug
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Title returns the first markdown heading of the issue.
func (i *Issue) Title() string {
	for line := range strings.SplitSeq(string(i.mdMsg), "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return i.slug
}

func (i *Issue) Render(stylePath string) (string, error) {
	var extra strings.Builder
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extra.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			extra.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			extra.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(string(i.mdMsg)+extra.String(), stylePath)
}

var (
	render = glamour.Render

	projectNotFoundIssue = &Issue{
		id:   ProjectNotFoundId,
		slug: "project-not-found",
		mdMsg: `
# No project found!

The project directory does not exist or is not readable.

## Things you can try:
- Run the build from the project root
- Point at the project explicitly:
~~~
$ glimmer-build build --project ./my-app
~~~`,
	}

	sourceDirMissingIssue = &Issue{
		id:   SourceDirMissingId,
		slug: "source-dir-missing",
		mdMsg: `
# Source directory missing!

Every project needs a source tree. By default it lives in ` + "`src/`" + ` and
holds the entry point (` + "`src/index.ts`" + `) and the UI tree (` + "`src/ui/`" + `).

## Things you can try:
- Create ` + "`src/index.ts`" + `
- Or point ` + "`trees.src`" + ` at your source directory:
~~~cue
trees: src: "app"
~~~`,
	}

	buildConfigInvalidIssue = &Issue{
		id:   BuildConfigInvalidId,
		slug: "build-config-invalid",
		mdMsg: `
# Invalid build options!

` + "`glimmer-build.cue`" + ` did not validate against the options schema. The error
above names the offending field.

## Things you can try:
- Check the value types (strings must be quoted, lists use ` + "`[...]`" + `)
- Remove unknown fields; the schema is closed
- Inspect the effective options:
~~~
$ glimmer-build config show
~~~`,
	}

	moduleConfigInvalidIssue = &Issue{
		id:   ModuleConfigInvalidId,
		slug: "module-config-invalid",
		mdMsg: `
# Invalid module configuration!

The ` + "`moduleConfiguration`" + ` block of your environment config references a type or
collection that is not declared, or declares two collections on the same path.

## Rules:
1. Every type listed in a collection's ` + "`types`" + ` must be declared under ` + "`types`" + `
2. Every ` + "`definitiveCollection`" + ` must name a declared collection
3. A collection's ` + "`defaultType`" + ` must appear in its ` + "`types`" + `
4. No two collections may share a path (` + "`group/name`" + `)

Collections are matched in declaration order, so declare nested collections
before the collections that contain them.`,
	}

	environmentConfigInvalidIssue = &Issue{
		id:   EnvironmentConfigInvalidId,
		slug: "environment-config-invalid",
		mdMsg: `
# Invalid environment config!

` + "`config/environment.*`" + ` could not be read. The document must be keyed by
environment name, with an optional ` + "`default`" + ` block shared by all of them.

## Example:
~~~yaml
default:
  modulePrefix: my-app
  rootURL: /
production:
  rootURL: /app/
~~~`,
	}

	tsconfigInvalidIssue = &Issue{
		id:   TsconfigInvalidId,
		slug: "tsconfig-invalid",
		mdMsg: `
# Unreadable tsconfig.json!

` + "`tsconfig.json`" + ` is optional, but when present it must be valid JSON.

## Things you can try:
- Remove trailing commas and comments the parser rejects
- Delete the file to fall back to the defaults`,
	}

	outdatedBlueprintIssue = &Issue{
		id:   OutdatedBlueprintId,
		slug: "outdated-blueprint",
		mdMsg: `
# Outdated application entry point!

` + "`src/main.ts`" + ` imports ` + "`./config/module-map`" + ` or ` + "`./config/resolver-configuration`" + `.
These modules are generated under ` + "`config/`" + ` at the root of the build and are
no longer siblings of the entry point.

## Things you can try:
- Change the imports to:
~~~ts
import moduleMap from '../config/module-map';
import resolverConfiguration from '../config/resolver-configuration';
~~~`,
	}

	classificationFailedIssue = &Issue{
		id:   ClassificationFailedId,
		slug: "classification-failed",
		mdMsg: `
# Module could not be classified!

A module path did not match the module configuration: its type segment is
unknown, not allowed in its collection, or missing with no ` + "`defaultType`" + ` to
fall back on. By default the file is skipped with a warning; with
` + "`strict_module_map: true`" + ` the build fails instead.

## Things you can try:
- Check the resolution of a path:
~~~
$ glimmer-build specifier ui/components/my-thing/component.ts
~~~
- Rename the file to a declared type (` + "`component.ts`" + `, ` + "`template.hbs`" + `, ` + "`helper.ts`" + `)`,
	}

	resolutionCollisionIssue = &Issue{
		id:   ResolutionCollisionId,
		slug: "resolution-collision",
		mdMsg: `
# Two modules resolve to the same specifier!

The module map cannot hold two modules under one specifier. A common cause is
a flat module next to a directory of the same name:

~~~
ui/components/foo.ts           -> component:/my-app/components/foo
ui/components/foo/component.ts -> component:/my-app/components/foo
~~~

## Things you can try:
- Remove or rename one of the two files named in the error`,
	}

	mergeConflictIssue = &Issue{
		id:   MergeConflictId,
		slug: "merge-conflict",
		mdMsg: `
# Output path emitted twice!

Two build trees produced the same output path. The final package tree does not
allow overwrites, so for example a file in ` + "`public/`" + ` named like the bundled
` + "`app.js`" + ` aborts the build.

## Things you can try:
- Rename the file in ` + "`public/`" + `
- Change ` + "`output_paths.app`" + ` so generated files get different names`,
	}

	transformFailedIssue = &Issue{
		id:   TransformFailedId,
		slug: "transform-failed",
		mdMsg: `
# A source file failed to compile!

A TypeScript, template, style or bundling step reported an error. The message
above includes the file and line reported by the tool.`,
	}

	styleCommandTimedOutIssue = &Issue{
		id:   StyleCommandTimedOutId,
		slug: "style-command-timed-out",
		mdMsg: `
# Style command timed out!

` + "`styles.command`" + ` did not finish within ` + "`styles.timeout`" + `.

## Things you can try:
- Run the command by hand to check it terminates
- Raise the limit:
~~~cue
styles: timeout: "2m"
~~~`,
	}

	outputDirUnsafeIssue = &Issue{
		id:   OutputDirUnsafeId,
		slug: "output-dir-unsafe",
		mdMsg: `
# Output directory would overwrite the project!

The output directory is emptied before every build, so it must be a directory
the build owns. It may not be the project root, a parent of it, or a
directory that holds or sits inside one of the input trees (` + "`trees.*`" + `).

## Things you can try:
- Build into the default directory:
~~~
$ glimmer-build build --output dist
~~~
- Pick a directory outside ` + "`src`" + `, ` + "`public`" + ` and ` + "`node_modules`" + ``,
	}

	issues = map[Id]*Issue{
		projectNotFoundIssue.Id():          projectNotFoundIssue,
		sourceDirMissingIssue.Id():         sourceDirMissingIssue,
		buildConfigInvalidIssue.Id():       buildConfigInvalidIssue,
		moduleConfigInvalidIssue.Id():      moduleConfigInvalidIssue,
		environmentConfigInvalidIssue.Id(): environmentConfigInvalidIssue,
		tsconfigInvalidIssue.Id():          tsconfigInvalidIssue,
		outdatedBlueprintIssue.Id():        outdatedBlueprintIssue,
		classificationFailedIssue.Id():     classificationFailedIssue,
		resolutionCollisionIssue.Id():      resolutionCollisionIssue,
		mergeConflictIssue.Id():            mergeConflictIssue,
		transformFailedIssue.Id():          transformFailedIssue,
		styleCommandTimedOutIssue.Id():     styleCommandTimedOutIssue,
		outputDirUnsafeIssue.Id():          outputDirUnsafeIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an issue by slug.
func Lookup(slug string) *Issue {
	for _, i := range issues {
		if i.slug == slug {
			return i
		}
	}
	return nil
}
