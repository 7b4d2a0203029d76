package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bookmark-cli/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the backend session",
}

var authLoginCmd = &cobra.Command{
	Use:   "login <google-id-token>",
	Short: "Exchange a Google ID token for a backend session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		email, _ := cmd.Flags().GetString("email")
		creds, err := env.Session.Login(ctx, args[0], email)
		if err != nil {
			return eris.Wrap(err, "auth login")
		}
		fmt.Fprintf(os.Stdout, "Logged in as %s\n", displayName(creds))
		return nil
	},
}

var authSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Store a backend token directly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		email, _ := cmd.Flags().GetString("email")
		picture, _ := cmd.Flags().GetString("picture")
		return env.Session.SetCredentials(ctx, auth.Credentials{
			Token:             args[0],
			UserEmail:         email,
			ProfilePictureURL: picture,
		})
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the backend session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Session.Clear(ctx); err != nil {
			return eris.Wrap(err, "auth logout")
		}
		fmt.Fprintln(os.Stdout, "Logged out.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored identity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		creds, err := env.Session.Credentials(ctx)
		if err != nil {
			return err
		}
		if !creds.Authenticated() {
			fmt.Fprintln(os.Stdout, "Not Connected")
			return nil
		}
		fmt.Fprintln(os.Stdout, displayName(creds))
		return nil
	},
}

func displayName(c auth.Credentials) string {
	if c.UserEmail != "" {
		return c.UserEmail
	}
	return "Connected"
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage persisted settings",
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <gemini-api-key>",
	Short: "Save the Gemini API key used for classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "state")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Session.SetGeminiAPIKey(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Settings saved!")
		return nil
	},
}

func init() {
	authLoginCmd.Flags().String("email", "", "email to show for this session")
	authSetCmd.Flags().String("email", "", "user email")
	authSetCmd.Flags().String("picture", "", "profile picture URL")

	authCmd.AddCommand(authLoginCmd, authSetCmd, authLogoutCmd, authStatusCmd)
	configCmd.AddCommand(configSetKeyCmd)
	rootCmd.AddCommand(authCmd, configCmd)
}
