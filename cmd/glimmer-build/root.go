// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"glimmer-pipeline/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"
	// Commit is set at build time via ldflags.
	Commit = "unknown"
	// BuildDate is set at build time via ldflags.
	BuildDate = "unknown"

	verbose    bool
	logLevel   string
	cfgFile    string
	projectDir string
)

// newRootCommand assembles the command tree. Flags bind to package state, so
// each process builds the tree once.
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "glimmer-build",
		Short: "Build Glimmer applications",
		Long: TitleStyle.Render("glimmer-build") + SubtitleStyle.Render(" - build pipeline for Glimmer applications") + `

Compiles TypeScript and templates, generates the module map the runtime
resolver reads, bundles the application and composes the deployable package.

Build options are read from glimmer-build.cue in the project root and may be
overridden with GLIMMER_* environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "options file (default is <project>/glimmer-build.cue)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", ".", "project root directory")

	rootCmd.AddCommand(
		newBuildCommand(),
		newConfigCommand(),
		newSpecifierCommand(),
		newExplainCommand(),
	)

	return rootCmd
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// handleError leaves already reported failures alone and hands the rest to
// fang's default rendering.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

func getVersionString() string {
	if Version == "dev" {
		return fmt.Sprintf("%s (built from source)", Version)
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newLogger creates the logger passed into the pipeline. --verbose wins over
// --log-level.
func newLogger(w io.Writer) (*log.Logger, error) {
	level := log.DebugLevel
	if !verbose {
		parsed, err := log.ParseLevel(logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		level = parsed
	}
	return log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: "glimmer-build",
	}), nil
}

// resolveProjectDir returns the absolute project root and checks that it is
// a directory.
func resolveProjectDir() (string, error) {
	dir, err := filepath.Abs(projectDir)
	if err == nil {
		var info os.FileInfo
		if info, err = os.Stat(dir); err == nil && !info.IsDir() {
			err = fmt.Errorf("%s is not a directory", dir)
		}
	}
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("open project").
			WithResource(projectDir).
			WithSuggestion("Run glimmer-build from the project root").
			WithSuggestion("Pass the project directory with --project").
			WithIssue(issue.ProjectNotFoundId).
			Wrap(err).
			BuildError()
	}
	return dir, nil
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// reportError prints err to w and returns the ExitError that ends the command.
func reportError(w io.Writer, err error) error {
	fmt.Fprintf(w, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	return &ExitError{Code: 1}
}
