package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	execTimeoutFlag int
	execNoWaitFlag  bool
)

var execCmd = &cobra.Command{
	Use:   "exec <session_id> <command>",
	Short: "Request execution of a command on the session's SSH shell",
	Long:  "exec submits a command for approval, waits for a client of the session's approval stream to decide, and on approval writes the command and samples output until it settles.",
	Args:  cobra.ExactArgs(2),
	RunE:  runExec,
}

func init() {
	execCmd.Flags().IntVar(&execTimeoutFlag, "timeout", 30, "seconds to wait for approval and for output to settle")
	execCmd.Flags().BoolVar(&execNoWaitFlag, "no-wait", false, "return immediately after the command is written, without sampling output")
}

type execParams struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	WaitForOutput  *bool  `json:"wait_for_output,omitempty"`
}

func runExec(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	wait := !execNoWaitFlag
	c := newClient(addrFlag)
	result, err := c.ToolCall(id, "ssh_execute", execParams{
		Command:        args[1],
		TimeoutSeconds: execTimeoutFlag,
		WaitForOutput:  &wait,
	})
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

	fmt.Printf("status: %s\n", out.Status)
	if out.Output != "" {
		fmt.Println(out.Output)
	}
	return nil
}
