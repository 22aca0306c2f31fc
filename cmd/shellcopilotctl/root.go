package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addrFlag string

var rootCmd = &cobra.Command{
	Use:   "shellcopilotctl",
	Short: "Command-line client for the shell co-pilot server",
	Long:  "shellcopilotctl talks to a running shell co-pilot server over HTTP: create sessions, open SSH connections, send keystrokes, execute and read commands, inspect and end sessions.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", envOr("SHELLCOPILOT_ADDR", "http://localhost:3000"), "base URL of the shell co-pilot server")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(endCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
