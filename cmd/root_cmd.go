package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

var configFile = ""

var rootCmd = cobra.Command{
	Use:   "securex",
	Short: "SecureX WS-Security SOAP connector",
	Run: func(cmd *cobra.Command, args []string) {
		execWithConfig(cmd, serve)
	},
}

// RootCommand will setup and return the root command
func RootCommand() *cobra.Command {
	rootCmd.AddCommand(&serveCmd, submitCmd(), verifyCmd(), &versionCmd)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "the config file to use")

	return &rootCmd
}

func execWithConfig(cmd *cobra.Command, fn func(cmd *cobra.Command, config *conf.GlobalConfiguration)) {
	config, err := conf.LoadGlobal(configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %+v", err)
	}
	if err := observability.ConfigureLogging(&config.Logging); err != nil {
		logrus.WithError(err).Fatal("unable to configure logging")
	}

	fn(cmd, config)
}
