package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createCmdFlag  string
	createArgsFlag []string
	createJSONFlag bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session (spawns the AI CLI under a PTY)",
	Args:  cobra.NoArgs,
	RunE:  runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createCmdFlag, "cmd", "", "AI CLI command to spawn (defaults to the server's configured command)")
	createCmd.Flags().StringSliceVar(&createArgsFlag, "arg", nil, "argument to pass the AI CLI command (repeatable)")
	createCmd.Flags().BoolVar(&createJSONFlag, "json", false, "print the full response as JSON")
}

func runCreate(cmd *cobra.Command, args []string) error {
	c := newClient(addrFlag)
	env, err := c.CreateSession(createCmdFlag, createArgsFlag)
	if err != nil {
		return err
	}

	if createJSONFlag {
		out, _ := json.MarshalIndent(env, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("session_id: %s\n", env.SessionID)
	fmt.Printf("mcp_url:    %s\n", env.MCPURL)
	return nil
}
