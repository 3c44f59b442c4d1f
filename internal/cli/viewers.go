package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/spf13/cobra"
)

var (
	viewersOnline  bool
	viewersOffline bool
	viewersTotal   bool
	viewersJSON    bool
)

var viewersCmd = &cobra.Command{
	Use:   "viewers [slug]",
	Short: "Show viewer counts from the viewer API",
	Long: `Show viewer counts from the viewer API.

Examples:
  chnl viewers              # summary of all channels
  chnl viewers --online     # online channels only
  chnl viewers --total      # total viewers across online channels
  chnl viewers spark        # one channel`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeChannels,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := viewers.New(cfg.ViewerAPI, viewers.WithUserAgent(cfg.UserAgent))
		if len(args) == 1 {
			return runViewer(cmd.Context(), cmd.OutOrStdout(), client, args[0])
		}
		return runViewers(cmd.Context(), cmd.OutOrStdout(), client)
	},
}

func init() {
	viewersCmd.Flags().BoolVar(&viewersOnline, "online", false, "only online channels")
	viewersCmd.Flags().BoolVar(&viewersOffline, "offline", false, "only offline channels")
	viewersCmd.Flags().BoolVar(&viewersTotal, "total", false, "only print the total viewer count")
	viewersCmd.Flags().BoolVar(&viewersJSON, "json", false, "print as JSON")
	viewersCmd.MarkFlagsMutuallyExclusive("online", "offline")

	rootCmd.AddCommand(viewersCmd)
}

func runViewers(ctx context.Context, w io.Writer, client *viewers.Client) error {
	channels, err := client.Channels(ctx)
	if err != nil {
		return err
	}

	if viewersTotal {
		fmt.Fprintln(w, viewers.TotalViewers(channels))
		return nil
	}

	switch {
	case viewersOnline:
		channels = viewers.Online(channels)
	case viewersOffline:
		channels = viewers.Offline(channels)
	}

	if viewersJSON {
		return writeJSON(w, channels)
	}
	printViewerSummary(w, channels)
	return nil
}

func runViewer(ctx context.Context, w io.Writer, client *viewers.Client, slug string) error {
	ch, err := client.BySlug(ctx, viewers.Slug(slug))
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("channel %q is not listed by the viewer API", slug)
	}
	if viewersJSON {
		return writeJSON(w, ch)
	}
	printChannel(w, *ch)
	return nil
}

func printViewerSummary(w io.Writer, channels []viewers.Channel) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	online := viewers.Online(channels)
	offline := viewers.Offline(channels)

	bold.Fprintf(w, "Total viewers: ")
	cyan.Fprintln(w, viewers.TotalViewers(channels))
	fmt.Fprintf(w, "Channels: %d online, %d offline\n", len(online), len(offline))

	if len(online) > 0 {
		// busiest first
		slices.SortStableFunc(online, func(a, b viewers.Channel) int { return cmp.Compare(b.Viewers, a.Viewers) })
		fmt.Fprintln(w)
		bold.Fprintln(w, "Online:")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, ch := range online {
			printChannel(w, ch)
		}
	}

	if len(offline) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Offline:")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, ch := range offline {
			printChannel(w, ch)
		}
	}
}

func printChannel(w io.Writer, ch viewers.Channel) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if ch.Online {
		green.Fprint(w, "● ")
		fmt.Fprintf(w, "%-24s %6d viewers  (%s)\n", ch.Name, ch.Viewers, ch.Slug)
		return
	}
	yellow.Fprint(w, "○ ")
	fmt.Fprintf(w, "%-24s %6s          (%s)\n", ch.Name, "-", ch.Slug)
}
