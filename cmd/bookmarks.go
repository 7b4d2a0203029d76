package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bookmark-cli/internal/export"
	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/internal/store"
)

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "Browse the local bookmark mirror",
}

// -- bookmarks list --

var bookmarksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored bookmarks, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		category, _ := cmd.Flags().GetString("category")
		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := listAll(ctx, env.Store)
		if err != nil {
			return err
		}
		records = export.Filter{Category: category, Query: query}.Apply(records)
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No bookmarks found.")
			return nil
		}
		formatBookmarks(os.Stdout, records)
		return nil
	},
}

// -- bookmarks categories --

var bookmarksCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories present in the mirror",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := listAll(ctx, env.Store)
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, r := range records {
			counts[export.DisplayCategory(r)]++
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, c := range export.Categories(records) {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", c, counts[c])
		}
		return w.Flush()
	},
}

// -- bookmarks check --

var bookmarksCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Ask the backend whether a post is already synced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		ok, err := env.Gateway.Exists(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "bookmarks check")
		}
		if ok {
			fmt.Fprintf(os.Stdout, "%s is synced\n", args[0])
		} else {
			fmt.Fprintf(os.Stdout, "%s is not synced\n", args[0])
		}
		return nil
	},
}

// -- runs --

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List scrape sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := env.Store.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// formatBookmarks writes a tabular list of records to out.
func formatBookmarks(out io.Writer, records []model.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tAUTHOR\tCATEGORY\tTEXT")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t----")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.ID, r.AuthorHandle, export.DisplayCategory(r), truncate(oneLine(r.Text), 60))
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tSTATUS\tREASON\tFOUND\tSYNCED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t-----\t------\t-------\t--------")
	for _, r := range runs {
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncate(r.ID, 8), r.Mode, r.Status, r.Reason, r.Found, r.Synced,
			r.StartedAt.Format("2006-01-02 15:04"), dur)
	}
	_ = w.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	bookmarksListCmd.Flags().String("category", "", "filter by category")
	bookmarksListCmd.Flags().String("query", "", "filter by text or author")
	bookmarksListCmd.Flags().Int("limit", 50, "max rows to print (0 = all)")
	runsCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	runsCmd.Flags().Int("limit", 20, "max runs to list")

	bookmarksCmd.AddCommand(bookmarksListCmd, bookmarksCategoriesCmd, bookmarksCheckCmd)
	rootCmd.AddCommand(bookmarksCmd, runsCmd)
}
