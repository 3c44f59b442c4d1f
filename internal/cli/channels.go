package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/spf13/cobra"
)

var channelsJSON bool

var channelsCmd = &cobra.Command{
	Use:     "channels",
	Aliases: []string{"ls"},
	Short:   "List the channels shown on the site",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChannels(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	channelsCmd.Flags().BoolVar(&channelsJSON, "json", false, "print the list as JSON")
	rootCmd.AddCommand(channelsCmd)
}

func runChannels(ctx context.Context, w io.Writer) error {
	open := extractor.BrowserOpener(extractor.BrowserOptionsFromConfig(cfg))
	opts := extractor.OptionsFromConfig(cfg)

	names, err := runWithSpinner(ctx, "Loading channels", func(ctx context.Context) ([]string, error) {
		var names []string
		err := extractor.WithClient(ctx, open, opts, func(c *extractor.Client) error {
			var err error
			names, err = c.Channels(ctx)
			return err
		})
		return names, err
	})
	if err != nil {
		return err
	}

	if channelsJSON {
		return writeJSON(w, names)
	}
	if len(names) == 0 {
		fmt.Fprintln(w, hintStyle.Render("No channels listed."))
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}
