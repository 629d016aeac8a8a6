package cmd

import "github.com/spf13/cobra"

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for layerpack.

To load completions:

Bash:
  $ source <(layerpack completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ layerpack completion bash > /etc/bash_completion.d/layerpack
  # macOS:
  $ layerpack completion bash > $(brew --prefix)/etc/bash_completion.d/layerpack

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ layerpack completion zsh > "${fpath[1]}/_layerpack"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ layerpack completion fish | source

  # To load completions for each session, execute once:
  $ layerpack completion fish > ~/.config/fish/completions/layerpack.fish

PowerShell:
  PS> layerpack completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> layerpack completion powershell > layerpack.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}
