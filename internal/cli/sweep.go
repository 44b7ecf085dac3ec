package cli

import (
	"github.com/spf13/cobra"

	"github.com/shopopti/extension-gateway/internal/store"
)

// NewSweepCommand creates the sweep command: a one-shot purge of expired
// replay and idempotency records, for operators running without the server's
// periodic sweeper (e.g. against a copied database).
func NewSweepCommand(root *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired replay and idempotency records",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			removed, err := st.Sweep(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "sweep", err)
			}

			out := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]any{"removed": removed})
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "gateway.db", "database path")

	return cmd
}
