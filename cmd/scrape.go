package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/export"
	"github.com/sells-group/bookmark-cli/internal/scrape"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scroll the bookmarks feed and sync new posts",
	Long: "Drives the bookmarks timeline until it stops growing, classifies each new post and syncs every batch.\n" +
		"With --frames the feed is replayed from saved HTML snapshots instead of a live browser.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		frames, _ := cmd.Flags().GetStringSlice("frames")
		all, _ := cmd.Flags().GetBool("all")
		noSync, _ := cmd.Flags().GetBool("no-sync")

		snap, ext, closeSnap, mode, err := openSnapshot(ctx, frames)
		if err != nil {
			return err
		}
		defer closeSnap()

		cls, err := env.classifier(ctx)
		if err != nil {
			return err
		}

		opts := []scrape.Option{
			scrape.WithConfig(loopConfig(mode)),
			scrape.WithLocalMirror(env.Store),
			scrape.WithSeenMirror(env.seenMirror()),
			scrape.WithRunLog(env.Store),
		}
		if !noSync {
			opts = append(opts, scrape.WithSyncer(env.Gateway))
		}
		loop := scrape.New(snap, ext, cls, opts...)

		if all {
			records, err := loop.ScrapeAll(ctx)
			if err != nil {
				return eris.Wrap(err, "scrape all")
			}
			return export.WriteJSON(os.Stdout, records)
		}

		stats, err := loop.Run(ctx)
		zap.L().Info("scrape finished",
			zap.String("session", stats.ID),
			zap.String("reason", string(stats.Reason)),
			zap.Int("cycles", stats.Cycles),
			zap.Int("found", stats.Found),
			zap.Int("synced", stats.Synced),
		)
		fmt.Fprintf(os.Stdout, "Scan complete: %d bookmarks (%d synced, %d skipped, %s)\n",
			stats.Found, stats.Synced, stats.Skipped, stats.Reason)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringSlice("frames", nil, "saved HTML frames to replay instead of a live browser")
	scrapeCmd.Flags().Bool("all", false, "collect every bookmarked post once and print it as JSON without syncing")
	scrapeCmd.Flags().Bool("no-sync", false, "keep batches local")
	rootCmd.AddCommand(scrapeCmd)
}
