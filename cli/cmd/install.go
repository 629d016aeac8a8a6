package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/layerpack/cli/installer"
	"github.com/fluxbase-eu/layerpack/cli/output"
)

var installCmd = &cobra.Command{
	Use:   "install [layer...]",
	Short: "Install layer dependencies",
	Long: `Install the external packages of each declared layer into <layer>/nodejs.

With bundle analysis enabled only the packages imported by the layer's
functions are installed; otherwise the project manifest is copied and
installed as a whole.

Examples:
  layerpack install
  layerpack install shared
  layerpack install -o json`,
	PreRunE: loadService,
	RunE:    runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	layers, err := selectLayers(args)
	if err != nil {
		return err
	}

	p := newPlugin()
	report, err := p.Installer.InstallLayers(ctx, layers, svc.Functions)
	if err != nil {
		return err
	}

	formatter := GetFormatter()
	if formatter.Format != output.FormatTable {
		return formatter.Print(report)
	}

	data := output.TableData{
		Headers: []string{"LAYER", "STATE", "PACKAGES", "DETAIL"},
	}
	for _, result := range report.Installed {
		detail := "no install command"
		if result.Command != nil {
			detail = result.Command.String()
		}
		if len(result.Removed) > 0 {
			detail += " (cleaned " + strings.Join(result.Removed, ", ") + ")"
		}
		data.Rows = append(data.Rows, []string{
			result.Layer,
			string(result.State()),
			strings.Join(result.Specifiers, " "),
			detail,
		})
	}
	for _, result := range report.Skipped {
		data.Rows = append(data.Rows, []string{result.Layer, string(installer.StateSkip), "", result.Reason})
	}
	formatter.PrintTable(data)
	return nil
}
