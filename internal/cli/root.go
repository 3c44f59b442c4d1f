package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/log"
	"github.com/guiyumin/chnl/internal/core/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool

	// cfg is loaded once before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "chnl",
	Short:         "Find live stream URLs and viewer counts on the channel site",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configFile != "" {
			cfg, err = config.LoadFile(configFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.LoadOrDefault()
		}

		if err := log.Setup(cfg.Log); err != nil {
			return err
		}
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: "+config.SavePath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
}

// Execute runs the root command and reports the error the way every
// subcommand does
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error:"), err)
	}
	return err
}
