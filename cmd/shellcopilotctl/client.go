package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// client is a thin HTTP client for the server's /api and /mcp surface.
//
// Grounded on the teacher's internal/daemon/client.go request/response
// JSON idiom, retargeted from Unix-socket dialing to plain HTTP against
// the new server (no EnsureDaemon/auto-spawn concept: the server is a
// long-running process started independently, not spawned per CLI call).
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(addr string) *client {
	return &client{baseURL: addr, http: &http.Client{Timeout: 35 * time.Second}}
}

type apiEnvelope struct {
	Success   bool      `json:"success"`
	SessionID uuid.UUID `json:"session_id"`
	MCPURL    string    `json:"mcp_url"`
	Error     string    `json:"error"`
	Kind      string    `json:"kind"`
}

func (c *client) post(path string, body any) (apiEnvelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return apiEnvelope{}, err
		}
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apiEnvelope{}, fmt.Errorf("decode response from %s: %w", path, err)
	}
	if !env.Success {
		return env, fmt.Errorf("%s: %s (%s)", path, env.Error, env.Kind)
	}
	return env, nil
}

func (c *client) CreateSession(aiCLICommand string, aiCLIArgs []string) (apiEnvelope, error) {
	return c.post("/api/session/create", map[string]any{
		"ai_cli_command": aiCLICommand,
		"ai_cli_args":    aiCLIArgs,
	})
}

func (c *client) EndSession(id uuid.UUID) (apiEnvelope, error) {
	return c.post(fmt.Sprintf("/api/session/%s/end", id), nil)
}

type inspectResult struct {
	SessionID        uuid.UUID `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	SSHConnected     bool      `json:"ssh_connected"`
	PendingApprovals int       `json:"pending_approvals"`
}

func (c *client) Inspect(id uuid.UUID) (inspectResult, error) {
	resp, err := c.http.Get(c.baseURL + "/api/session/" + id.String())
	if err != nil {
		return inspectResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return inspectResult{}, fmt.Errorf("GET /api/session/%s: %s: %s", id, resp.Status, string(body))
	}

	var out inspectResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return inspectResult{}, err
	}
	return out, nil
}

// rpcResponse mirrors the fields of internal/toolservice.Response that this
// client decodes; it is declared here rather than imported.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolCall issues one JSON-RPC 2.0 call against /mcp/{session_id}.
func (c *client) ToolCall(sessionID uuid.UUID, method string, params any) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  json.RawMessage(paramsJSON),
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}

	resp, err := c.http.Post(c.baseURL+"/mcp/"+sessionID.String(), "application/json", &buf)
	if err != nil {
		return nil, fmt.Errorf("tool call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode tool response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}
