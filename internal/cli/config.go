package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chnl configuration",
	Long:  "View and modify chnl settings, including the site selectors",
}

// chnl config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		sel := cfg.ResolvedSelectors()

		fmt.Fprintln(w, "Current configuration:")
		fmt.Fprintf(w, "  Site:          %s\n", cfg.BaseURL)
		fmt.Fprintf(w, "  Stream origin: %s\n", cfg.StreamOrigin)
		fmt.Fprintf(w, "  Viewer API:    %s\n", cfg.ViewerAPI)
		fmt.Fprintf(w, "  Headless:      %t\n", cfg.IsHeadless())
		fmt.Fprintf(w, "  Timeout:       %s\n", cfg.TimeoutDuration())
		fmt.Fprintf(w, "  Browser:       %s\n", orDefault(cfg.ResolvedBrowserPath(), "(auto)"))
		fmt.Fprintf(w, "  Profile:       %s\n", cfg.ResolvedUserDataDir())
		fmt.Fprintf(w, "  Log level:     %s\n", cfg.Log.Level)
		fmt.Fprintf(w, "  Config:        %s\n", configPath())

		fmt.Fprintln(w, "\nSelectors:")
		fmt.Fprintf(w, "  item:   %s\n", sel.Item)
		fmt.Fprintf(w, "  label:  %s\n", sel.Label)
		fmt.Fprintf(w, "  player: %s\n", sel.Player)
		fmt.Fprintf(w, "  media:  %s\n", sel.Media)
		fmt.Fprintf(w, "  source: %s\n", sel.Source)

		if len(cfg.FallbackPatterns) > 0 {
			fmt.Fprintln(w, "\nFallback patterns:")
			for i, p := range cfg.FallbackPatterns {
				fmt.Fprintf(w, "  [%d] %s\n", i+1, p)
			}
		}

		if cfg.Server.APIKey != "" {
			fmt.Fprintln(w, "\nServer:")
			fmt.Fprintf(w, "  api_key: %s\n", strings.Repeat("*", len(cfg.Server.APIKey)))
		}
	},
}

// chnl config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
	},
}

// chnl config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
  base_url           Page listing the channels
  stream_origin      Host serving the HLS playlists
  viewer_api         Viewer-count endpoint
  headless           Run the browser without a window (true/false)
  timeout            Seconds to wait for each page element
  browser_path       Chrome binary (ROD_BROWSER wins when set)
  user_data_dir      Browser profile directory
  user_agent         Browser User-Agent
  selectors.item     Listing entry selector
  selectors.label    Channel heading selector
  selectors.player   Player container selector
  selectors.media    Media element selector
  selectors.source   Source element selector
  log.level          panic, fatal, error, warn, info, debug, trace
  log.json           JSON log lines (true/false)
  log.file           Append logs to this file
  server.port        Server listen port
  server.api_key     Server API key

Examples:
  chnl config set timeout 45
  chnl config set selectors.item ".channel-card"
  chnl config set server.api_key s3cret`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := saveConfig(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// chnl config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value from config.yml.

Examples:
  chnl config get base_url
  chnl config get selectors.player`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

// chnl config unset KEY - unset/clear a config value
var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Unset a configuration value",
	Long: `Unset (clear) a configuration value in config.yml. The default is used
the next time the config is loaded. Accepts the keys listed by
'chnl config set --help' plus fallback_patterns.

Examples:
  chnl config unset selectors.item
  chnl config unset fallback_patterns`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if err := unsetConfigValue(cfg, key); err != nil {
			return err
		}
		if err := saveConfig(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)
		return nil
	},
}

var configInitForce bool

// chnl config init - write a config file with defaults
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config.yml with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd, configInitForce)
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// configPath is the file the current command reads and writes
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.SavePath()
}

func saveConfig() error {
	return config.SaveFile(cfg, configPath())
}

// setConfigValue sets a config value by key
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "base_url":
		cfg.BaseURL = value
	case "stream_origin":
		cfg.StreamOrigin = value
	case "viewer_api":
		cfg.ViewerAPI = value
	case "headless":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Headless = &b
	case "timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid timeout: %s (seconds, > 0)", value)
		}
		cfg.Timeout = n
	case "browser_path":
		cfg.BrowserPath = value
	case "user_data_dir":
		cfg.UserDataDir = value
	case "user_agent":
		cfg.UserAgent = value
	case "selectors.item":
		cfg.Selectors.Item = value
	case "selectors.label":
		cfg.Selectors.Label = value
	case "selectors.player":
		cfg.Selectors.Player = value
	case "selectors.media":
		cfg.Selectors.Media = value
	case "selectors.source":
		cfg.Selectors.Source = value
	case "log.level":
		cfg.Log.Level = value
	case "log.json":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Log.JSON = b
	case "log.file":
		cfg.Log.File = value
	case "server.port":
		var port int
		if _, err := fmt.Sscanf(value, "%d", &port); err != nil {
			return fmt.Errorf("invalid port number: %s", value)
		}
		cfg.Server.Port = port
	case "server.api_key":
		cfg.Server.APIKey = value
	default:
		return fmt.Errorf("unknown config key: %s\nRun 'chnl config set --help' to see supported keys", key)
	}
	return nil
}

// getConfigValue gets a config value by key
func getConfigValue(cfg *config.Config, key string) (string, error) {
	sel := cfg.ResolvedSelectors()
	switch key {
	case "base_url":
		return cfg.BaseURL, nil
	case "stream_origin":
		return cfg.StreamOrigin, nil
	case "viewer_api":
		return cfg.ViewerAPI, nil
	case "headless":
		return strconv.FormatBool(cfg.IsHeadless()), nil
	case "timeout":
		return strconv.Itoa(cfg.Timeout), nil
	case "browser_path":
		return cfg.BrowserPath, nil
	case "user_data_dir":
		return cfg.UserDataDir, nil
	case "user_agent":
		return cfg.UserAgent, nil
	case "selectors.item":
		return sel.Item, nil
	case "selectors.label":
		return sel.Label, nil
	case "selectors.player":
		return sel.Player, nil
	case "selectors.media":
		return sel.Media, nil
	case "selectors.source":
		return sel.Source, nil
	case "fallback_patterns":
		return strings.Join(cfg.FallbackPatternList(), "\n"), nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.json":
		return strconv.FormatBool(cfg.Log.JSON), nil
	case "log.file":
		return cfg.Log.File, nil
	case "server.port":
		return fmt.Sprintf("%d", cfg.Server.Port), nil
	case "server.api_key":
		return cfg.Server.APIKey, nil
	default:
		return "", fmt.Errorf("unknown config key: %s\nRun 'chnl config get --help' to see supported keys", key)
	}
}

// unsetConfigValue clears a config value by key
func unsetConfigValue(cfg *config.Config, key string) error {
	switch key {
	case "base_url":
		cfg.BaseURL = ""
	case "stream_origin":
		cfg.StreamOrigin = ""
	case "viewer_api":
		cfg.ViewerAPI = ""
	case "headless":
		cfg.Headless = nil
	case "timeout":
		cfg.Timeout = 0
	case "browser_path":
		cfg.BrowserPath = ""
	case "user_data_dir":
		cfg.UserDataDir = ""
	case "user_agent":
		cfg.UserAgent = ""
	case "selectors.item":
		cfg.Selectors.Item = ""
	case "selectors.label":
		cfg.Selectors.Label = ""
	case "selectors.player":
		cfg.Selectors.Player = ""
	case "selectors.media":
		cfg.Selectors.Media = ""
	case "selectors.source":
		cfg.Selectors.Source = ""
	case "fallback_patterns":
		cfg.FallbackPatterns = nil
	case "log.level":
		cfg.Log.Level = ""
	case "log.json":
		cfg.Log.JSON = false
	case "log.file":
		cfg.Log.File = ""
	case "server.port":
		cfg.Server.Port = 0
	case "server.api_key":
		cfg.Server.APIKey = ""
	default:
		return fmt.Errorf("unknown config key: %s\nRun 'chnl config unset --help' to see supported keys", key)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// fileExists is used by init to refuse overwriting without --force
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
