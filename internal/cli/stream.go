package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/guiyumin/chnl/internal/core/log"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const maxSuggestions = 3

var (
	streamVisible bool
	streamTimeout int
	streamJSON    bool
	streamLegacy  bool
	streamNoCheck bool
)

var streamCmd = &cobra.Command{
	Use:   "stream <channel>",
	Short: "Print the stream URLs of a channel",
	Long: `Open the channel site in a browser, select the channel by its name and
print the stream URLs found in its player.

Examples:
  chnl stream spark
  chnl stream "Tide Pool" --json
  chnl stream spark --legacy --visible`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeChannels,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStream(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	streamCmd.Flags().BoolVar(&streamVisible, "visible", false, "show browser window (for debugging)")
	streamCmd.Flags().IntVarP(&streamTimeout, "timeout", "t", 0, "seconds to wait for each page element")
	streamCmd.Flags().BoolVar(&streamJSON, "json", false, "print the result as JSON")
	streamCmd.Flags().BoolVar(&streamLegacy, "legacy", false, "print the flat legacy mapping (implies --json)")
	streamCmd.Flags().BoolVar(&streamNoCheck, "no-check", false, "skip the online check against the viewer API")

	rootCmd.AddCommand(streamCmd)
}

func runStream(ctx context.Context, w io.Writer, name string) error {
	if streamTimeout > 0 {
		cfg.Timeout = streamTimeout
	}
	if streamVisible {
		headless := false
		cfg.Headless = &headless
	}

	if !streamNoCheck {
		if err := checkOnline(ctx, name); err != nil {
			return err
		}
	}

	open := extractor.BrowserOpener(extractor.BrowserOptionsFromConfig(cfg))
	opts := extractor.OptionsFromConfig(cfg)

	res, err := runWithSpinner(ctx, "Extracting "+name, func(ctx context.Context) (*extractor.StreamResult, error) {
		var res *extractor.StreamResult
		err := extractor.WithClient(ctx, open, opts, func(c *extractor.Client) error {
			var err error
			res, err = c.Resolve(ctx, name)
			return err
		})
		return res, err
	})
	if err != nil {
		return explain(err)
	}

	return writeResult(w, res)
}

// checkOnline asks the viewer API first. It only fails when the API says the
// channel is offline; any lookup problem is logged and ignored.
func checkOnline(ctx context.Context, name string) error {
	slug := viewers.Slug(name)
	ch, err := viewers.New(cfg.ViewerAPI, viewers.WithUserAgent(cfg.UserAgent)).BySlug(ctx, slug)
	switch {
	case err != nil:
		log.Warnf("online check skipped: %v", err)
	case ch == nil:
		log.Infof("%s is not listed by the viewer API", slug)
	case !ch.Online:
		return fmt.Errorf("%s is offline (use --no-check to try anyway)", ch.Name)
	default:
		log.Infof("%s is online with %d viewers", ch.Name, ch.Viewers)
	}
	return nil
}

// explain adds suggestions to a not-found error
func explain(err error) error {
	var nf *extractor.ChannelNotFoundError
	if !errors.As(err, &nf) {
		return err
	}
	if s := extractor.Suggest(nf.Name, nf.Available, maxSuggestions); len(s) > 0 {
		return fmt.Errorf("channel %q not found, did you mean %s?", nf.Name, strings.Join(quoteAll(s), " or "))
	}
	if len(nf.Available) > 0 {
		return fmt.Errorf("channel %q not found (run 'chnl channels' to list %d channels)", nf.Name, len(nf.Available))
	}
	return fmt.Errorf("channel %q not found", nf.Name)
}

func quoteAll(ss []string) []string {
	return lo.Map(ss, func(s string, _ int) string { return fmt.Sprintf("%q", s) })
}

func writeResult(w io.Writer, res *extractor.StreamResult) error {
	switch {
	case streamLegacy:
		return writeJSON(w, res.LegacyView())
	case streamJSON:
		return writeJSON(w, res)
	}
	printResult(w, res)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *extractor.StreamResult) {
	fmt.Fprintf(w, "\n  %s %s\n\n", doneStyle.Render("✓"), res.ChannelName)

	for _, f := range res.Formats() {
		fmt.Fprintf(w, "  %s %s\n", keyStyle.Render(fmt.Sprintf("%-8s", f)), res.URL(f))
	}
	if res.PosterURL != "" {
		fmt.Fprintf(w, "  %s %s\n", keyStyle.Render(fmt.Sprintf("%-8s", "poster")), res.PosterURL)
	}
	if res.BlobURL != "" {
		fmt.Fprintf(w, "  %s %s %s\n", keyStyle.Render(fmt.Sprintf("%-8s", "blob")), res.BlobURL, hintStyle.Render("(browser only)"))
	}

	if len(res.Sources) > 0 {
		fmt.Fprintf(w, "\n  Sources (%d):\n", len(res.Sources))
		for _, s := range res.Sources {
			if s.Type != "" {
				fmt.Fprintf(w, "    • %s %s\n", s.URL, hintStyle.Render(s.Type))
			} else {
				fmt.Fprintf(w, "    • %s\n", s.URL)
			}
		}
	}

	if len(res.Metadata) > 0 {
		keys := lo.Keys(res.Metadata)
		slices.Sort(keys)
		pairs := lo.Map(keys, func(k string, _ int) string { return k + "=" + res.Metadata[k] })
		fmt.Fprintf(w, "\n  %s\n", hintStyle.Render(strings.Join(pairs, " ")))
	}
	fmt.Fprintln(w)
}
