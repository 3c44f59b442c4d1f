package cli

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/guiyumin/chnl/internal/core/snapshot"
	"github.com/spf13/cobra"
)

const snapshotTimeout = 500 * time.Millisecond

var inspectChannel string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.html>",
	Short: "Run the extraction over a saved page",
	Long: `Run the extraction over a page saved from the browser, without
launching one. Useful to check selectors and fallback patterns after the
site changes its markup.

By default the page is read as a channel page. With --channel the page is
read as the listing first and the named entry must be present on it.

Examples:
  chnl inspect spark.html
  chnl inspect home.html --channel spark --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectChannel, "channel", "", "locate this channel in the page's listing first")
	inspectCmd.Flags().BoolVar(&streamJSON, "json", false, "print the result as JSON")
	inspectCmd.Flags().BoolVar(&streamLegacy, "legacy", false, "print the flat legacy mapping")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(ctx context.Context, w io.Writer, path string) error {
	s, err := snapshot.FromFile(path)
	if err != nil {
		return err
	}
	open := func(context.Context) (dom.Session, error) { return s, nil }

	// a saved page never changes, so waiting longer cannot help
	opts := extractor.OptionsFromConfig(cfg)
	opts.Timeout = snapshotTimeout

	var res *extractor.StreamResult
	err = extractor.WithClient(ctx, open, opts, func(c *extractor.Client) error {
		var err error
		if inspectChannel != "" {
			res, err = c.Resolve(ctx, inspectChannel)
		} else {
			res, err = c.ExtractCurrent(ctx, filepath.Base(path))
		}
		return err
	})
	if err != nil {
		return explain(err)
	}
	return writeResult(w, res)
}
