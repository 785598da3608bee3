package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "gatekeeper",
	Short:         "Token-gated access to a private Telegram group",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger().Error("command failed", "error", err)
		os.Exit(1)
	}
}
