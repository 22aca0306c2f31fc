package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var infoJSONFlag bool

var infoCmd = &cobra.Command{
	Use:   "info <session_id>",
	Short: "Show a session's lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSONFlag, "json", false, "print as JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	c := newClient(addrFlag)
	result, err := c.Inspect(id)
	if err != nil {
		return err
	}

	if infoJSONFlag {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Session:           %s\n", result.SessionID)
	fmt.Printf("Created:           %s\n", result.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last activity:     %s\n", result.LastActivityAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("SSH connected:     %t\n", result.SSHConnected)
	fmt.Printf("Pending approvals: %d\n", result.PendingApprovals)
	return nil
}
