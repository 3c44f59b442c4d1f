package cli

import (
	"fmt"

	"github.com/guiyumin/chnl/internal/core/version"
	"github.com/guiyumin/chnl/internal/updater"
	"github.com/spf13/cobra"
)

var updateCheck bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update chnl to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !updateCheck {
			return updater.Update(cmd.Context(), cmd.OutOrStdout())
		}

		latest, newer, err := updater.CheckUpdate(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		switch {
		case latest == nil:
			fmt.Fprintln(w, "No releases published yet")
		case newer:
			fmt.Fprintf(w, "%s is available (running v%s), run 'chnl update'\n", latest.Version(), version.Version)
		default:
			fmt.Fprintf(w, "Already up to date (v%s)\n", version.Version)
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "only report whether a newer release exists")
	rootCmd.AddCommand(updateCmd)
}
