// -- cmd/history.go --
package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/uipilot/internal/config"
	"github.com/xkilldash9x/uipilot/internal/observability"
	"github.com/xkilldash9x/uipilot/internal/store"
)

// newHistoryCmd creates the `history` command, listing past sessions
// from the database.
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists recent automation sessions from the history store",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is not configured (UIPILOT_DATABASE_URL)")
			}

			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			history, err := store.New(ctx, pool, logger)
			if err != nil {
				return err
			}

			sessions, err := history.RecentSessions(ctx, viper.GetInt("limit"))
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("No sessions recorded yet.")
				return nil
			}

			for _, s := range sessions {
				line := fmt.Sprintf("%s  %-20s %-10s %s",
					s.StartedAt.Format("2006-01-02 15:04:05"), s.Scenario, s.State, s.ID)
				if s.Error != "" {
					line += "  (" + s.Error + ")"
				}
				cmd.Println(line)
			}
			return nil
		},
	}

	historyCmd.Flags().Int("limit", 20, "Maximum number of sessions to list")

	return historyCmd
}
