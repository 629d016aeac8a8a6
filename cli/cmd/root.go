// Package cmd provides the Cobra commands for the layerpack CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/layerpack/cli/config"
	"github.com/fluxbase-eu/layerpack/cli/logging"
	"github.com/fluxbase-eu/layerpack/cli/output"
	"github.com/fluxbase-eu/layerpack/cli/plugin"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	serviceFile string
	workDir     string
	logLevel    string
	verbose     bool
	outputFmt   string
	noHeaders   bool
	quiet       bool

	// Shared across commands
	svc       *config.Service
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "layerpack",
	Short: "layerpack - Build the node_modules of Lambda layers",
	Long: `layerpack installs the external dependencies of each Lambda layer declared
in a serverless service and wires functions to the versioned layers.

Features:
  - Install: bundle each layer's functions and install only the packages they import
  - Transform: export layer versions and upgrade function layer references
  - Inspect: list resolved entry points and discovered external packages

Get started:
  layerpack externals     Show the packages each layer needs
  layerpack install       Install layer dependencies
  layerpack --help        Show available commands`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silence errors only when --quiet is used
		cmd.SilenceErrors = quiet
		return setupLogging()
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&serviceFile, "service", "s", "",
		"service file (default is serverless.yml, serverless.yaml or serverless.json)")
	rootCmd.PersistentFlags().StringVar(&workDir, "cwd", "",
		"project directory (default is the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level: none, info, verbose, debug")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"shorthand for --log-level verbose")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")

	// Bind environment variables
	config.BindEnv(viper.GetViper())
	viper.SetDefault("log_level", string(logging.LevelInfo))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(externalsCmd)
	rootCmd.AddCommand(hookCmd)
}

func setupLogging() error {
	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return err
	}
	if verbose {
		level = logging.LevelVerbose
	}
	logging.Setup(os.Stderr, level)
	return nil
}

// projectDir returns --cwd or the current directory
func projectDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return dir, nil
}

// loadService reads the service declaration for commands that need it
func loadService(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}

	if err := config.LoadEnvFiles(dir); err != nil {
		log.Trace().Err(err).Msg("No .env file loaded")
	}

	path, err := config.FindServiceFile(dir, serviceFile)
	if err != nil {
		return err
	}
	svc, err = config.LoadService(path)
	if err != nil {
		return err
	}

	layerConfig := svc.Custom.LayerConfig
	layerConfig.ApplyEnv(viper.GetViper())
	if err := layerConfig.Validate(); err != nil {
		return err
	}

	log.Debug().
		Str("command", cmd.Name()).
		Str("service", svc.Name).
		Str("file", path).
		Int("layers", len(svc.Layers)).
		Int("functions", len(svc.Functions)).
		Msg("Service loaded")

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format, noHeaders, quiet)

	return nil
}

// newPlugin creates the plugin for the loaded service
func newPlugin() *plugin.Plugin {
	return plugin.New(svc)
}

// selectLayers returns the layers named in args, or every layer when args is empty
func selectLayers(args []string) (config.LayerList, error) {
	if len(args) == 0 {
		return svc.Layers, nil
	}
	layers := make(config.LayerList, 0, len(args))
	for _, name := range args {
		layer, ok := svc.Layers.Get(name)
		if !ok {
			return nil, fmt.Errorf("layer %q is not declared in %s", name, svc.Name)
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// GetFormatter returns the output formatter (for use by subcommands)
func GetFormatter() *output.Formatter {
	if formatter == nil {
		format, _ := output.ParseFormat(outputFmt)
		formatter = output.NewFormatter(format, noHeaders, quiet)
	}
	return formatter
}
