package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var readLinesFlag int

var readCmd = &cobra.Command{
	Use:   "read <session_id>",
	Short: "Read the tail of the session's SSH output buffer",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func init() {
	readCmd.Flags().IntVar(&readLinesFlag, "lines", 50, "number of trailing lines to read (clamped to 1-500 server-side)")
}

type readParams struct {
	Lines int `json:"lines,omitempty"`
}

func runRead(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	c := newClient(addrFlag)
	result, err := c.ToolCall(id, "ssh_read_output", readParams{Lines: readLinesFlag})
	if err != nil {
		return err
	}

	var out struct {
		Status string `json:"status"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return err
	}
	fmt.Println(out.Output)
	return nil
}
