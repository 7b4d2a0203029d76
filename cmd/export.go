package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bookmark-cli/internal/export"
	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/internal/store"
)

const exportPageSize = 500

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the local bookmark mirror to a file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		out, _ := cmd.Flags().GetString("out")
		formatName, _ := cmd.Flags().GetString("format")
		category, _ := cmd.Flags().GetString("category")
		query, _ := cmd.Flags().GetString("query")

		format, err := export.ParseFormat(formatName, out)
		if err != nil {
			return err
		}
		if out == "" {
			out = export.DefaultJSONFile
			if format != export.FormatJSON {
				out = "twitter_bookmarks." + string(format)
			}
		}

		records, err := listAll(ctx, env.Store)
		if err != nil {
			return err
		}
		records = export.Filter{Category: category, Query: query}.Apply(records)

		if err := export.WriteFile(out, format, records); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d bookmarks to %s\n", len(records), out)
		return nil
	},
}

// listAll pages through the whole local mirror.
func listAll(ctx context.Context, st store.Store) ([]model.Record, error) {
	var all []model.Record
	for offset := 0; ; offset += exportPageSize {
		page, err := st.ListBookmarks(ctx, store.BookmarkFilter{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "list bookmarks")
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "output file (default "+export.DefaultJSONFile+")")
	exportCmd.Flags().String("format", "", "json, csv or xlsx (default from the file extension)")
	exportCmd.Flags().String("category", "", "only export this category")
	exportCmd.Flags().String("query", "", "only export posts whose text or author matches")
	rootCmd.AddCommand(exportCmd)
}
