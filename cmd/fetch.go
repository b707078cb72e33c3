package cmd

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
)

type fetchOutput struct {
	Flags               map[string]model.Value `json:"flags"`
	SessionReplayActive bool                   `json:"sessionReplayActive"`
}

// fetchCmd loads flags once and prints them
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Load flags once and print them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		logger := log.WithField("command", "fetch")

		id, err := identity()
		if err != nil {
			return err
		}
		evaluator, err := newEvaluator(ctx, logger)
		if err != nil {
			return err
		}

		if err := <-evaluator.LoadFeatureFlagsAsync(ctx, id.DistinctID, id.AnonymousID, id.Groups); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fetchOutput{
			Flags:               evaluator.GetFeatureFlags(),
			SessionReplayActive: evaluator.IsSessionReplayFlagActive(),
		})
	},
}

func init() {
	addClientFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
