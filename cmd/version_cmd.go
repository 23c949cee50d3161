package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the git commit or release tag the binary was built from.
var Version = "dev"

var versionCmd = cobra.Command{
	Run: showVersion,
	Use: "version",
}

func showVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), Version)
}
