package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bookmark-cli/internal/background"
	"github.com/sells-group/bookmark-cli/internal/classify"
	"github.com/sells-group/bookmark-cli/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Print the category of a post text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "classify")
		if err != nil {
			return err
		}
		defer env.Close()

		var cls classify.Classifier = classify.NewKeyword()
		if local, _ := cmd.Flags().GetBool("local"); !local {
			if cls, err = env.classifier(ctx); err != nil {
				return err
			}
		}

		text := strings.Join(args, " ")
		fmt.Fprintln(os.Stdout, classify.OrDefault(ctx, cls, text, model.CategoryUncategorized))
		return nil
	},
}

var validateKeyCmd = &cobra.Command{
	Use:   "validate-key [api-key]",
	Short: "Check that a Gemini API key works",
	Long:  "Classifies a fixed test text with the key. Without an argument the saved key is checked.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "classify")
		if err != nil {
			return err
		}
		defer env.Close()

		key := ""
		if len(args) == 1 {
			key = args[0]
		} else if key, err = env.geminiKey(ctx); err != nil {
			return err
		}

		svc := background.New(env.Gateway, env.Session, func(k string) classify.Classifier { return env.Factory.Gemini(k) })
		res := svc.ValidateAPIKey(ctx, key)
		if !res.Valid {
			return eris.Errorf("invalid key: %s", res.Error)
		}
		fmt.Fprintln(os.Stdout, "API key is valid.")
		return nil
	},
}

func init() {
	classifyCmd.Flags().Bool("local", false, "use the keyword classifier only")
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(validateKeyCmd)
}
