package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/layerpack/cli/output"
	"github.com/fluxbase-eu/layerpack/cli/plugin"
	"github.com/fluxbase-eu/layerpack/cli/stack"
)

var (
	transformTemplate string
	transformOut      string
	transformDryRun   bool
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Export layer versions and upgrade function layer references",
	Long: `Rewrite the generated CloudFormation template so that each layer's
qualified ARN output is exported and functions reference the versioned layer.

Run it once, after the template is generated and before it is deployed.

Examples:
  layerpack transform
  layerpack transform --dry-run -o json
  layerpack transform --template build/stack.json --out build/stack.out.json`,
	PreRunE: loadService,
	RunE:    runTransform,
}

func init() {
	transformCmd.Flags().StringVar(&transformTemplate, "template", stack.DefaultTemplatePath, "template to transform")
	transformCmd.Flags().StringVar(&transformOut, "out", "", "write the result here instead of in place")
	transformCmd.Flags().BoolVar(&transformDryRun, "dry-run", false, "report changes without writing the template")
}

func runTransform(cmd *cobra.Command, args []string) error {
	p := newPlugin()
	p.Template = plugin.TemplateOptions{
		Path:   transformTemplate,
		Out:    transformOut,
		DryRun: transformDryRun,
	}

	result, err := p.TransformLayerResources(context.Background())
	if err != nil {
		return err
	}

	formatter := GetFormatter()
	if formatter.Format != output.FormatTable {
		return formatter.Print(result)
	}

	data := output.TableData{
		Headers: []string{"ACTION", "LAYER", "DETAIL"},
	}
	for _, e := range result.ExportedLayers {
		data.Rows = append(data.Rows, []string{"export", e.Layer, e.OutputName + " as " + e.ExportName})
	}
	for _, u := range result.UpgradedLayerReferences {
		data.Rows = append(data.Rows, []string{"upgrade", u.Layer, u.Resource + ": " + u.From + " -> " + u.To})
	}
	for _, s := range result.Skipped {
		data.Rows = append(data.Rows, []string{"skip", s.Layer, s.Reason})
	}
	formatter.PrintTable(data)
	if transformDryRun {
		formatter.PrintWarning("dry run: " + transformTemplate + " was not written")
	}
	return nil
}
