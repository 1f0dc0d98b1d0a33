package main

import (
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "httpd",
	Short: "Event-loop HTTP server with example routes",
	Long: `httpd serves a small set of example routes (echo, sleep, login,
upload and file download) on top of an event-loop dispatcher.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
}
