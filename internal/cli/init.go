package cli

import (
	"fmt"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create chnl config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd, initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, force bool) error {
	path := configPath()
	if fileExists(path) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveFile(config.DefaultConfig(), path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}
