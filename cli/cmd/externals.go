package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/layerpack/cli/bundler"
	"github.com/fluxbase-eu/layerpack/cli/manifest"
	"github.com/fluxbase-eu/layerpack/cli/output"
)

var (
	externalsAnalyze bool
	externalsDetails bool
)

var externalsCmd = &cobra.Command{
	Use:   "externals [layer...]",
	Short: "Show the external packages each layer needs",
	Long: `Compile the entry points of each layer and list the external packages
that would be installed, with their pinned versions.

Examples:
  layerpack externals
  layerpack externals shared --analyze
  layerpack externals -o json`,
	PreRunE: loadService,
	RunE:    runExternals,
}

func init() {
	externalsCmd.Flags().BoolVar(&externalsAnalyze, "analyze", false, "show the bundle size breakdown of each layer")
	externalsCmd.Flags().BoolVar(&externalsDetails, "details", false, "show every input file in the breakdown")
}

func runExternals(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	layers, err := selectLayers(args)
	if err != nil {
		return err
	}

	analyzer := bundler.NewAnalyzer(svc.Dir, svc.Custom.LayerConfig)
	results := make([]*bundler.Result, 0, len(layers))
	for _, layer := range layers {
		result, err := analyzer.ExternalModules(ctx, svc.Functions, layer.RefName())
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	formatter := GetFormatter()
	if formatter.Format != output.FormatTable {
		return formatter.Print(results)
	}

	if externalsAnalyze {
		for _, result := range results {
			bundler.DisplayLayer(formatter.Writer, result, externalsDetails)
		}
		bundler.DisplaySummary(formatter.Writer, results)
		return nil
	}

	data := output.TableData{
		Headers: []string{"LAYER", "PACKAGE", "VERSION", "KIND", "SOURCE"},
	}
	for _, result := range results {
		for _, spec := range result.Specifiers {
			name, version := manifest.SplitSpecifier(spec)
			data.Rows = append(data.Rows, []string{
				result.Layer,
				name,
				version,
				string(manifest.Classify(version)),
				result.Source(name),
			})
		}
	}
	formatter.PrintTable(data)
	return nil
}
