package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/layerpack/cli/plugin"
)

var hookCmd = &cobra.Command{
	Use:   "hook [name]",
	Short: "Run a lifecycle hook",
	Long: `Run the handler bound to a deployment lifecycle event.

Hooks:
  package:initialize     install layer dependencies
  before:deploy:deploy   transform the generated template

Examples:
  layerpack hook package:initialize
  layerpack hook before:deploy:deploy`,
	ValidArgs: []string{plugin.HookPackageInitialize, plugin.HookBeforeDeploy},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	PreRunE:   loadService,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		if err := newPlugin().Run(ctx, args[0]); err != nil {
			return err
		}
		GetFormatter().PrintSuccess("Hook " + args[0] + " completed")
		return nil
	},
}
