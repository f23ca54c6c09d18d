// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/internal/issue"
	"glimmer-pipeline/internal/pipeline"
	"glimmer-pipeline/internal/styles"
	"glimmer-pipeline/pkg/modulemap"
	"glimmer-pipeline/pkg/resolution"
	"glimmer-pipeline/pkg/tree"

	"github.com/spf13/cobra"
)

// DefaultOutputDir is where build writes the package unless --output is set.
const DefaultOutputDir = "dist"

type buildFlags struct {
	environment string
	output      string
}

func newBuildCommand() *cobra.Command {
	var flags buildFlags

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the application package",
		Long: `Build the application package.

The environment is taken from --environment, then GLIMMER_ENV, then
EMBER_ENV, and defaults to development. A .env file in the project root is
loaded first; variables already set in the process win.

The output directory is replaced on every build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags)
		},
	}

	buildCmd.Flags().StringVarP(&flags.environment, "environment", "e", "", "build environment (development, production, test)")
	buildCmd.Flags().StringVarP(&flags.output, "output", "o", DefaultOutputDir, "output directory, relative to the project root")

	return buildCmd
}

func runBuild(ctx context.Context, stdout, stderr io.Writer, flags buildFlags) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return reportError(stderr, err)
	}

	if err := config.LoadDotEnv(dir); err != nil {
		fmt.Fprintln(stderr, WarningStyle.Render("Warning: ")+err.Error())
	}

	env, err := config.ResolveEnvironment(flags.environment)
	if err != nil {
		return reportError(stderr, issue.NewErrorContext().
			WithOperation("select build environment").
			WithSuggestion("Use one of development, production or test").
			WithSuggestion("Check GLIMMER_ENV and EMBER_ENV").
			WithIssue(issue.BuildConfigInvalidId).
			Wrap(err).
			BuildError())
	}

	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ProjectDir: dir, ConfigFilePath: cfgFile})
	if err != nil {
		return reportError(stderr, err)
	}

	logger, err := newLogger(stderr)
	if err != nil {
		return reportError(stderr, issue.WrapWithOperation(err, "configure logging"))
	}

	app, err := pipeline.New(pipeline.Options{
		ProjectDir:  dir,
		Environment: env,
		Config:      cfg,
		Logger:      logger,
	})
	if err != nil {
		return reportError(stderr, issue.WrapWithContext(err, "prepare build", dir))
	}

	started := time.Now()
	out, err := app.Write(ctx, flags.output)
	if err != nil {
		return reportError(stderr, classifyBuildError(err))
	}

	outDir := flags.output
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(dir, outDir)
	}
	fmt.Fprintf(stdout, "%s Built %s (%s) into %s in %s\n",
		SuccessStyle.Render("✓"),
		plural(out.Len(), "file"),
		env,
		CmdStyle.Render(outDir),
		time.Since(started).Round(time.Millisecond))

	if verbose {
		for _, p := range out.Paths() {
			fmt.Fprintln(stdout, VerboseStyle.Render("  "+p))
		}
	}
	return nil
}

// classifyBuildError maps a pipeline failure to the catalog issue that
// explains it. Errors that already carry an issue pass through.
func classifyBuildError(err error) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return err
	}

	ec := issue.NewErrorContext().WithOperation("build application").Wrap(err)

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		ec.WithResource("stage " + stageErr.Stage)
	}

	var (
		cfgErr       *pipeline.ConfigurationError
		classErr     *resolution.ClassificationError
		collisionErr *modulemap.ResolutionCollisionError
		mergeErr     *tree.MergeConflictError
	)
	switch {
	case errors.As(err, &cfgErr):
		ec.WithIssue(cfgErr.Issue)
	case errors.As(err, &classErr):
		ec.WithIssue(issue.ClassificationFailedId).
			WithSuggestion(fmt.Sprintf("Move %s into a collection of the module configuration", classErr.Path)).
			WithSuggestion("Set strict_module_map: false to skip modules that cannot be classified")
	case errors.As(err, &collisionErr):
		ec.WithIssue(issue.ResolutionCollisionId).
			WithSuggestions(
				fmt.Sprintf("Remove or rename %s or %s", collisionErr.First, collisionErr.Second),
				"A .ts file and a .js file with the same name resolve alike",
			)
	case errors.As(err, &mergeErr):
		ec.WithIssue(issue.MergeConflictId).
			WithSuggestion(fmt.Sprintf("Rename one of the files emitting %s", mergeErr.Path))
	case styles.IsTimeout(err):
		ec.WithIssue(issue.StyleCommandTimedOutId).
			WithSuggestion("Raise styles.timeout in glimmer-build.cue")
	case errors.Is(err, compiler.ErrTransform):
		ec.WithIssue(issue.TransformFailedId)
	}

	return ec.BuildError()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
