// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/internal/environment"
	"glimmer-pipeline/internal/issue"
	"glimmer-pipeline/pkg/resolution"

	"github.com/spf13/cobra"
)

func newSpecifierCommand() *cobra.Command {
	var env string

	specCmd := &cobra.Command{
		Use:   "specifier <module-path>...",
		Short: "Resolve module paths to specifiers",
		Long: `Resolve module paths to the specifiers the module map registers them under.

Paths are relative to the source tree, for example
ui/components/hello-world/component.ts. A leading src/ is accepted. The module
configuration and prefix come from the project's environment config.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpecifier(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), env, args)
		},
	}

	specCmd.Flags().StringVarP(&env, "environment", "e", "", "environment config block to read (development, production, test)")

	return specCmd
}

func runSpecifier(ctx context.Context, stdout, stderr io.Writer, envFlag string, paths []string) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return reportError(stderr, err)
	}

	if err := config.LoadDotEnv(dir); err != nil {
		fmt.Fprintln(stderr, WarningStyle.Render("Warning: ")+err.Error())
	}
	env, err := config.ResolveEnvironment(envFlag)
	if err != nil {
		return reportError(stderr, err)
	}

	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ProjectDir: dir, ConfigFilePath: cfgFile})
	if err != nil {
		return reportError(stderr, err)
	}

	envCfg, err := environment.Load(ctx, environment.LoadOptions{
		ProjectDir:  dir,
		BasePath:    cfg.EnvironmentPath,
		Environment: env,
	})
	if err != nil {
		return reportError(stderr, issue.NewErrorContext().
			WithOperation("load environment config").
			WithResource(cfg.EnvironmentPath).
			WithIssue(issue.EnvironmentConfigInvalidId).
			Wrap(err).
			BuildError())
	}

	failed := false
	for _, p := range paths {
		modulePath := strings.TrimPrefix(p, strings.Trim(cfg.Trees.Src, "/")+"/")
		specifier, err := resolution.SpecifierFor(envCfg.ModulePrefix, modulePath, envCfg.ModuleConfiguration)
		if err != nil {
			failed = true
			var classErr *resolution.ClassificationError
			if errors.As(err, &classErr) {
				fmt.Fprintf(stderr, "%s %s: %s\n", ErrorStyle.Render("✗"), p, classErr.Reason)
				continue
			}
			fmt.Fprintf(stderr, "%s %s: %v\n", ErrorStyle.Render("✗"), p, err)
			continue
		}
		fmt.Fprintf(stdout, "%s %s\n", p, CmdStyle.Render(specifier))
	}

	if failed {
		fmt.Fprintf(stderr, "\nRun 'glimmer-build explain %s' for details.\n", issue.Get(issue.ClassificationFailedId).Slug())
		return &ExitError{Code: 1}
	}
	return nil
}
