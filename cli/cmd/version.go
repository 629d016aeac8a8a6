package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/layerpack/cli/output"
)

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version information",
	Long:  `Display the version, commit hash, and build date of layerpack.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter := GetFormatter()
		if formatter.Format != output.FormatTable {
			return formatter.Print(versionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate})
		}
		formatter.PrintKeyValue("layerpack", Version)
		formatter.PrintKeyValue("Commit", Commit)
		formatter.PrintKeyValue("Build Date", BuildDate)
		return nil
	},
}
