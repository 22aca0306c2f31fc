package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/schovi/shellcopilot/internal/escape"
)

var sendSSHFlag bool

var sendCmd = &cobra.Command{
	Use:   "send <session_id> <input>...",
	Short: "Send keystrokes to a session's AI terminal (or SSH terminal with --ssh)",
	Long:  "Each input argument is run through the same backslash-escape interpreter as a shell's echo -e (\\n, \\r, \\t, \\e, \\xNN) before being written, so control characters like \\x03 (Ctrl+C) can be sent.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().BoolVar(&sendSSHFlag, "ssh", false, "send to the SSH terminal stream instead of the AI terminal")
}

func runSend(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	path := "/ws/ai-terminal/"
	if sendSSHFlag {
		path = "/ws/ssh-terminal/"
	}
	wsURL := toWebsocketURL(addrFlag) + path + id.String()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	var sent int
	for _, raw := range args[1:] {
		interpreted, err := escape.Interpret(raw)
		if err != nil {
			return fmt.Errorf("interpreting %q: %w", raw, err)
		}
		frame, _ := json.Marshal(map[string]string{"kind": "input", "data": interpreted})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
		sent += len(interpreted)
	}

	fmt.Printf("sent %d bytes\n", sent)
	return nil
}

func toWebsocketURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "https://"):
		return "wss://" + strings.TrimPrefix(addr, "https://")
	case strings.HasPrefix(addr, "http://"):
		return "ws://" + strings.TrimPrefix(addr, "http://")
	default:
		return addr
	}
}
