// -- cmd/detect.go --
package cmd

import (
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/uipilot/internal/config"
	"github.com/xkilldash9x/uipilot/internal/observability"
	"github.com/xkilldash9x/uipilot/internal/orchestrator"
)

// newDetectCmd creates the `detect` command: a single capture-detect
// cycle whose results are dumped as JSON. Useful for checking the
// detector and capture region before trusting a scenario to them.
func newDetectCmd() *cobra.Command {
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Runs one detection cycle and prints what the model sees",
		PreRunE: func(cmd *cobra.Command, args []string) error {
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
			// One-shot inspection has no use for a background loop.
			cfg.Detection.Background = false

			rt, err := orchestrator.New(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			snapshot, err := rt.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("detection cycle failed: %w", err)
			}

			out, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}

	detectCmd.Flags().String("replay-dir", "", "Feed frames from a directory of PNGs instead of a live capture")

	return detectCmd
}
