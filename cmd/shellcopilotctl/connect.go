package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	connectHostFlag       string
	connectPortFlag       int
	connectUsernameFlag   string
	connectPasswordFlag   string
	connectKeyFlag        string
	connectPassphraseFlag string
)

var connectCmd = &cobra.Command{
	Use:   "connect <session_id>",
	Short: "Open an SSH connection on a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectHostFlag, "host", "", "SSH host (required)")
	connectCmd.Flags().IntVar(&connectPortFlag, "port", 22, "SSH port")
	connectCmd.Flags().StringVar(&connectUsernameFlag, "username", "", "SSH username (required)")
	connectCmd.Flags().StringVar(&connectPasswordFlag, "password", "", "SSH password")
	connectCmd.Flags().StringVar(&connectKeyFlag, "private-key", "", "path to a PEM-encoded private key")
	connectCmd.Flags().StringVar(&connectPassphraseFlag, "passphrase", "", "passphrase for --private-key")
	connectCmd.MarkFlagRequired("host")
	connectCmd.MarkFlagRequired("username")
}

type connectParams struct {
	Host       string `json:"host"`
	Port       int    `json:"port,omitempty"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

func runConnect(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	privateKey := ""
	if connectKeyFlag != "" {
		data, err := readFile(connectKeyFlag)
		if err != nil {
			return fmt.Errorf("reading --private-key: %w", err)
		}
		privateKey = data
	}

	c := newClient(addrFlag)
	result, err := c.ToolCall(id, "ssh_connect", connectParams{
		Host:       connectHostFlag,
		Port:       connectPortFlag,
		Username:   connectUsernameFlag,
		Password:   connectPasswordFlag,
		PrivateKey: privateKey,
		Passphrase: connectPassphraseFlag,
	})
	if err != nil {
		return err
	}

	var out map[string]any
	json.Unmarshal(result, &out)
	fmt.Printf("status: %v\n", out["status"])
	return nil
}
