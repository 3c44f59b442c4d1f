package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/spf13/cobra"
)

// completion must stay responsive even when the API is slow
const completionTimeout = 3 * time.Second

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for chnl.

Bash:
  # Add to ~/.bashrc:
  source <(chnl completion bash)

  # Or install to system:
  chnl completion bash > /etc/bash_completion.d/chnl

Zsh:
  # Add to ~/.zshrc:
  source <(chnl completion zsh)

  # Or install to fpath:
  chnl completion zsh > "${fpath[1]}/_chnl"

Fish:
  chnl completion fish > ~/.config/fish/completions/chnl.fish

PowerShell:
  chnl completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeChannels offers channels from the viewer-count API. The viewers
// command takes slugs, everything else takes display names.
func completeChannels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Only complete the first argument
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	// persistent hooks do not run for completion requests
	c := cfg
	if c == nil {
		c = completionConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	channels, err := viewers.New(c.ViewerAPI, viewers.WithUserAgent(c.UserAgent)).Channels(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	return channelCompletions(channels, cmd.Name() == "viewers", toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completionConfig() *config.Config {
	if configFile != "" {
		if c, err := config.LoadFile(configFile); err == nil {
			return c
		}
	}
	return config.LoadOrDefault()
}

// channelCompletions returns the candidates that start with prefix, case
// folded. Online channels carry their viewer count as the description.
func channelCompletions(channels []viewers.Channel, bySlug bool, prefix string) []string {
	prefix = strings.ToLower(prefix)
	var completions []string
	for _, ch := range channels {
		value := ch.Name
		if bySlug {
			value = ch.Slug
		}
		if value == "" || !strings.HasPrefix(strings.ToLower(value), prefix) {
			continue
		}
		desc := "offline"
		if ch.Online {
			desc = "online"
		}
		completions = append(completions, value+"\t"+desc)
	}
	return completions
}
