package cmd

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/worldcoin/posthog-ios/pkg/runtime"
	"github.com/worldcoin/posthog-ios/pkg/service"
)

const (
	portFlagName           = "port"
	reloadScheduleFlagName = "reload-schedule"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Load flags, keep them fresh and serve them over HTTP",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger := log.WithField("command", "start")

		id, err := identity()
		if err != nil {
			return err
		}
		evaluator, err := newEvaluator(ctx, logger)
		if err != nil {
			return err
		}

		rt := &runtime.Runtime{
			Evaluator: evaluator,
			Service: &service.HTTPService{
				HTTPServiceConfiguration: &service.HTTPServiceConfiguration{
					Port: viper.GetInt32(portFlagName),
				},
			},
			Identity:       id,
			ReloadSchedule: viper.GetString(reloadScheduleFlagName),
			Logger:         logger,
		}
		return rt.Start(ctx)
	},
}

func init() {
	addClientFlags(startCmd)
	startCmd.Flags().Int32P(portFlagName, "p", 8080, "Port to listen on")
	startCmd.Flags().String(reloadScheduleFlagName, runtime.DefaultReloadSchedule, "Cron schedule for reloading flags")
	rootCmd.AddCommand(startCmd)
}
