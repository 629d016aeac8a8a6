package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/layerpack/cli/entries"
	"github.com/fluxbase-eu/layerpack/cli/output"
)

var entriesCmd = &cobra.Command{
	Use:   "entries [layer...]",
	Short: "List the bundle entry points of each layer",
	Long: `Resolve the source file of every function that uses a layer, plus its
extra entry patterns, and list the result with any skipped functions.

Examples:
  layerpack entries
  layerpack entries shared -o yaml`,
	PreRunE: loadService,
	RunE:    runEntries,
}

type layerEntries struct {
	Layer      string              `json:"layer"`
	Resolution *entries.Resolution `json:"resolution"`
}

func runEntries(cmd *cobra.Command, args []string) error {
	layers, err := selectLayers(args)
	if err != nil {
		return err
	}

	resolver := entries.NewResolver(svc.Dir, svc.Custom.LayerConfig.Bundle.BackupFileType)
	results := make([]layerEntries, 0, len(layers))
	for _, layer := range layers {
		res, err := resolver.Resolve(context.Background(), svc.Functions, layer.RefName())
		if err != nil {
			return err
		}
		results = append(results, layerEntries{Layer: layer.Key, Resolution: res})
	}

	formatter := GetFormatter()
	if formatter.Format != output.FormatTable {
		return formatter.Print(results)
	}

	data := output.TableData{
		Headers: []string{"LAYER", "FUNCTION", "ENTRY", "SOURCE"},
	}
	for _, r := range results {
		for _, e := range r.Resolution.Matched {
			data.Rows = append(data.Rows, []string{r.Layer, e.Function, e.Key, e.Path})
		}
		for _, s := range r.Resolution.Skipped {
			data.Rows = append(data.Rows, []string{r.Layer, s.Function, s.Detail, "skipped: " + s.Reason})
		}
	}
	formatter.PrintTable(data)
	return nil
}
