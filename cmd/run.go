// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uipilot/api/schemas"
	"github.com/xkilldash9x/uipilot/internal/config"
	"github.com/xkilldash9x/uipilot/internal/observability"
	"github.com/xkilldash9x/uipilot/internal/orchestrator"
	"github.com/xkilldash9x/uipilot/internal/scenario"
	"github.com/xkilldash9x/uipilot/internal/scheduler"
	"github.com/xkilldash9x/uipilot/internal/store"
)

// newRunCmd creates the `run` command, which executes a named scenario.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Runs an automation scenario until it completes or is interrupted",
		Long: `Runs one of the built-in scenarios:

  taming   keep an unconscious creature fed and sedated
  gather   harvest a resource and deposit when encumbered
  craft    queue an item on a fixed cadence
  status   watch the HUD and log alerts

The scenario runs until its --duration elapses or the process receives
an interrupt.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bound here rather than at construction so sibling commands
			// with the same flag name don't steal the key.
			if err := viper.BindPFlag("capture.replay_dir", cmd.Flags().Lookup("replay-dir")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			params := scenarioParams{
				creature: viper.GetString("creature"),
				resource: viper.GetString("resource"),
				item:     viper.GetString("item"),
				duration: viper.GetDuration("duration"),
				// Harvest swings land on the crosshair, the middle of
				// the capture region.
				aim: schemas.Point{
					X: float64(cfg.Capture.X) + float64(cfg.Capture.W)/2,
					Y: float64(cfg.Capture.Y) + float64(cfg.Capture.H)/2,
				},
			}

			var opts []orchestrator.Option
			var pool *pgxpool.Pool
			if cfg.Database.URL != "" {
				history, p, err := openHistory(ctx, cfg, logger)
				if err != nil {
					return err
				}
				pool = p
				opts = append(opts, orchestrator.WithHistory(history))
			}
			if pool != nil {
				defer pool.Close()
			}

			rt, err := orchestrator.New(cfg, logger, opts...)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := rt.Close(); closeErr != nil {
					logger.Warn("Error during runtime shutdown", zap.Error(closeErr))
				}
			}()

			sc, summarize, err := buildScenario(rt.Automation(), args[0], params, logger)
			if err != nil {
				return err
			}

			logger.Info("Running scenario",
				zap.String("scenario", sc.Name),
				zap.Duration("duration", sc.Duration))

			session, err := rt.RunScenario(ctx, sc)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Scenario aborted by user signal")
					return err
				}
				logger.Error("Scenario failed", zap.Error(err))
				return err
			}

			printSessionSummary(cmd, session)
			if summarize != nil {
				summarize(cmd)
			}
			return nil
		},
	}

	runCmd.Flags().String("creature", "trike", "Creature being tamed (taming scenario)")
	runCmd.Flags().String("resource", "wood", "Resource to harvest (gather scenario)")
	runCmd.Flags().String("item", "", "Recipe label to craft (craft scenario)")
	runCmd.Flags().Duration("duration", 0, "How long to run; 0 runs until interrupted")
	runCmd.Flags().String("replay-dir", "", "Feed frames from a directory of PNGs instead of a live capture")

	return runCmd
}

// craftInterval spaces out craft attempts so each batch has time to
// finish before the next one is queued.
const craftInterval = 30 * time.Second

// scenarioParams carries the per-scenario flag values into buildScenario.
type scenarioParams struct {
	creature string
	resource string
	item     string
	duration time.Duration
	aim      schemas.Point
}

// buildScenario maps a scenario name to its task bundle. The optional
// summarize callback prints scenario-specific counters after the run.
func buildScenario(auto scenario.Automation, name string, p scenarioParams, logger *zap.Logger) (scenario.Scenario, func(*cobra.Command), error) {
	switch name {
	case "taming":
		monitor := scenario.NewTamingMonitor(auto, p.creature, logger)
		sc := monitor.Scenario(p.duration)
		summarize := func(cmd *cobra.Command) {
			feeds, narcotics, warnings := monitor.Summary()
			cmd.Printf("Feeds: %d  Narcotics: %d  Warnings: %d\n", feeds, narcotics, warnings)
		}
		return sc, summarize, nil

	case "gather":
		gatherer, err := scenario.NewGatherer(auto, p.resource, p.aim, logger)
		if err != nil {
			return scenario.Scenario{}, nil, err
		}
		sc := gatherer.Scenario(p.duration)
		summarize := func(cmd *cobra.Command) {
			swings, deposits := gatherer.Summary()
			cmd.Printf("Swings: %d  Deposits: %d\n", swings, deposits)
		}
		return sc, summarize, nil

	case "craft":
		if p.item == "" {
			return scenario.Scenario{}, nil, fmt.Errorf("craft scenario needs --item")
		}
		crafting := scenario.NewCrafting(auto, logger)
		sc := scenario.Scenario{
			Name:     "craft-" + p.item,
			Duration: p.duration,
			Tasks: []scheduler.Task{{
				Name:     "craft-item",
				Interval: craftInterval,
				Run: func(ctx context.Context) error {
					return crafting.CraftItem(ctx, p.item)
				},
			}},
		}
		return sc, nil, nil

	case "status":
		status := scenario.NewStatus(auto, logger)
		sc := scenario.Scenario{
			Name:     "status-watch",
			Duration: p.duration,
			Tasks: []scheduler.Task{{
				Name:     "status-check",
				Interval: 5 * time.Second,
				Run: func(ctx context.Context) error {
					_, err := status.Check(ctx)
					return err
				},
			}},
		}
		return sc, nil, nil

	default:
		return scenario.Scenario{}, nil, fmt.Errorf("unknown scenario %q (expected 'taming', 'gather', 'craft' or 'status')", name)
	}
}

// openHistory connects the session history store.
func openHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	history, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := history.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return history, pool, nil
}

func printSessionSummary(cmd *cobra.Command, session *scheduler.Session) {
	cmd.Printf("\nSession %s finished: %s\n", session.ID(), session.State())
	for _, st := range session.Stats() {
		cmd.Printf("  %-16s every %-8s fired %d times\n", st.Name, st.Interval, st.Fired)
	}
}
