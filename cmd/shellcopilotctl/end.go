package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var endCmd = &cobra.Command{
	Use:   "end <session_id>",
	Short: "End a session and tear down its AI CLI, SSH shell, and output buffer",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnd,
}

func runEnd(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	c := newClient(addrFlag)
	if _, err := c.EndSession(id); err != nil {
		return err
	}
	fmt.Printf("session %s ended\n", id)
	return nil
}
