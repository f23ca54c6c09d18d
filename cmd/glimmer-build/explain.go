// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strconv"

	"glimmer-pipeline/internal/issue"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newExplainCommand() *cobra.Command {
	var style string

	explainCmd := &cobra.Command{
		Use:   "explain [issue]",
		Short: "Explain a build issue",
		Long: `Explain a build issue.

Without arguments, lists every issue glimmer-build reports. With an issue
name or number, renders its explanation and the steps that fix it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listIssues(cmd.OutOrStdout())
				return nil
			}
			return explainIssue(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], style)
		},
	}

	explainCmd.Flags().StringVar(&style, "style", "auto", "glamour style (auto, dark, light, notty)")

	return explainCmd
}

func listIssues(w io.Writer) {
	fmt.Fprintln(w, TitleStyle.Render("Build issues"))
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"id", "issue", "title"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, known := range issue.Values() {
		table.Append([]string{strconv.Itoa(int(known.Id())), known.Slug(), known.Title()})
	}
	table.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Run 'glimmer-build explain <issue>' for details."))
}

func explainIssue(stdout, stderr io.Writer, name, style string) error {
	known := issue.Lookup(name)
	if known == nil {
		if n, err := strconv.Atoi(name); err == nil {
			known = issue.Get(issue.Id(n))
		}
	}
	if known == nil {
		fmt.Fprintf(stderr, "%s unknown issue %q\n", ErrorStyle.Render("Error:"), name)
		fmt.Fprintln(stderr, SubtitleStyle.Render("Run 'glimmer-build explain' to list the known issues."))
		return &ExitError{Code: 2}
	}

	rendered, err := known.Render(style)
	if err != nil {
		return reportError(stderr, issue.WrapWithContext(err, "render issue", known.Slug()))
	}
	fmt.Fprint(stdout, rendered)
	return nil
}
