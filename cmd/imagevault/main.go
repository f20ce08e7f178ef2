package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imagevault/pkg/logger"
)

// Version is injected at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	cfgFile  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "imagevault",
		Short: "Image catalog backed by an object store and a metadata store",
		// Running the binary without a subcommand starts the server.
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("imagevault %s\n", Version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.LogFatal("%v", err)
	}
}
