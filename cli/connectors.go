// ABOUTME: Connector inspection subcommands
// ABOUTME: Lists registered CRM platforms and prints the capability report of one
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/callbridge/connector"
	"github.com/spf13/cobra"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	methodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// NewConnectorsCommand creates the connectors command.
func NewConnectorsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Inspect registered CRM connectors",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				return printConnectors(cmd.OutOrStdout(), app.Registry)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <platform>",
		Short: "Show the capabilities of a connector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				report, err := app.Registry.GetConnectorCapabilities(ctx, args[0])
				if err != nil {
					return err
				}
				printCapabilities(cmd.OutOrStdout(), report)
				return nil
			})
		},
	})

	return cmd
}

func printConnectors(w io.Writer, reg *connector.Registry) error {
	platforms := reg.Platforms()
	if len(platforms) == 0 {
		fmt.Fprintln(w, "No connectors registered.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tNAME\tAUTH")
	fmt.Fprintln(tw, "--------\t----\t----")
	for _, platform := range platforms {
		name, authType := platform, ""
		if m, err := reg.GetManifest(platform, false); err == nil && m != nil {
			if m.DisplayName != "" {
				name = m.DisplayName
			}
			authType = m.AuthType
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", platform, name, authType)
	}
	return tw.Flush()
}

func printCapabilities(w io.Writer, report *connector.CapabilityReport) {
	fmt.Fprintln(w, headingStyle.Render(report.Platform))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("auth type:"), report.AuthType)
	printMethods(w, "plugin methods", report.OriginalMethods)
	printMethods(w, "composed methods", report.ComposedMethods)
	printMethods(w, "registered interfaces", report.RegisteredInterfaces)
}

func printMethods(w io.Writer, label string, methods []string) {
	fmt.Fprintln(w, labelStyle.Render(label+":"))
	if len(methods) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	styled := make([]string, len(methods))
	for i, m := range methods {
		styled[i] = "  " + methodStyle.Render(m)
	}
	fmt.Fprintln(w, strings.Join(styled, "\n"))
}
