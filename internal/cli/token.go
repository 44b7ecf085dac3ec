package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shopopti/extension-gateway/internal/store"
)

// TokenOptions holds flags for the token subcommands.
type TokenOptions struct {
	DBPath string
	Scopes []string
	Plan   string
	TTL    time.Duration
}

// NewTokenCommand creates the token command group for operator use: issuing
// and revoking extension tokens without going through the HTTP surface.
func NewTokenCommand(root *RootOptions) *cobra.Command {
	opts := &TokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage extension tokens",
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "gateway.db", "database path")

	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue a token pair for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			t, err := st.IssueToken(cmd.Context(), args[0], opts.Scopes, opts.Plan, opts.TTL)
			if err != nil {
				return WrapExitError(ExitFailure, "issue token", err)
			}

			out := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]any{
				"token":        t.Token,
				"refreshToken": t.RefreshToken,
				"expiresAt":    t.ExpiresAt.UTC().Format(time.RFC3339),
				"scopes":       t.Scopes,
				"plan":         t.Plan,
			})
		},
	}
	issue.Flags().StringSliceVar(&opts.Scopes, "scopes", []string{"products:import", "sync:stock", "sync:price"}, "scopes to grant")
	issue.Flags().StringVar(&opts.Plan, "plan", "free", "plan to attach (free|pro|ultra_pro)")
	issue.Flags().DurationVar(&opts.TTL, "ttl", 30*24*time.Hour, "token lifetime")

	revoke := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			if err := st.RevokeToken(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "revoke token", err)
			}

			out := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]any{"revoked": true})
		},
	}

	cmd.AddCommand(issue)
	cmd.AddCommand(revoke)
	return cmd
}
