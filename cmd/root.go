package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	logLevelFlagName = "log-level"
	envPrefix        = "POSTHOG_FLAGS"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "posthog-flags",
	Short: "Fetch, cache and evaluate feature flags",
	Long:  ``,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// bind per command, start and fetch declare the same flag names
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		level, err := log.ParseLevel(viper.GetString(logLevelFlagName))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.posthog-flags.yaml)")
	rootCmd.PersistentFlags().String(logLevelFlagName, "info", "Log level e.g. debug, info, warn")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".posthog-flags")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
