// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"glimmer-pipeline/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `glimmer-build config` command tree.
func newConfigCommand() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create build options",
		Long: `Inspect and create build options.

Options are read from glimmer-build.cue in the project root. Fields the file
omits keep their defaults; GLIMMER_* environment variables override both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective build options as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default options file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the options file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, stdout, stderr io.Writer) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return reportError(stderr, err)
	}

	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{ProjectDir: dir, ConfigFilePath: cfgFile})
	if err != nil {
		return reportError(stderr, err)
	}

	out, err := config.MarshalTOML(cfg)
	if err != nil {
		return reportError(stderr, err)
	}
	_, err = stdout.Write(out)
	return err
}

func initConfig(stdout, stderr io.Writer) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return reportError(stderr, err)
	}

	path, created, err := config.CreateDefaultConfig(dir)
	if err != nil {
		return reportError(stderr, err)
	}
	if !created {
		fmt.Fprintf(stdout, "%s Options file already exists: %s\n", WarningStyle.Render("!"), CmdStyle.Render(path))
		return nil
	}
	fmt.Fprintf(stdout, "%s Created %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(path))
	return nil
}

func showConfigPath(ctx context.Context, stdout, stderr io.Writer) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return reportError(stderr, err)
	}

	_, path, err := config.Load(ctx, config.LoadOptions{ProjectDir: dir, ConfigFilePath: cfgFile})
	if err != nil {
		return reportError(stderr, err)
	}
	if path == "" {
		fmt.Fprintf(stdout, "%s (not found, defaults apply)\n",
			filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
		return nil
	}
	fmt.Fprintln(stdout, path)
	return nil
}
