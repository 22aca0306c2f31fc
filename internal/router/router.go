// Package router wires the HTTP surface in SPEC_FULL.md §6: session
// lifecycle REST endpoints, the Tool Service's JSON-RPC endpoint, the
// Event Gateway's SSE and WebSocket upgrades, and the liveness probe.
//
// Grounded on gluk-w-claworc/control-plane's main.go chi wiring
// (chi.NewRouter, middleware.Logger/Recoverer/RealIP, r.Route groups,
// chi.URLParam) and its internal/handlers package's JSON response idiom.
package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/schovi/shellcopilot/internal/apperr"
	"github.com/schovi/shellcopilot/internal/config"
	"github.com/schovi/shellcopilot/internal/gateway"
	"github.com/schovi/shellcopilot/internal/session"
	"github.com/schovi/shellcopilot/internal/sshshell"
	"github.com/schovi/shellcopilot/internal/toolservice"
)

// New builds the root http.Handler for the server.
func New(reg *session.Registry, cfg *config.Config, log *slog.Logger) http.Handler {
	gw := gateway.NewHandler(reg, log)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))

	r.Get("/healthz", handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/session/create", handleCreateSession(reg, cfg))
		r.Post("/ssh/connect", handleSSHConnect(reg, cfg))
		r.Get("/session/{id}", handleInspectSession(reg))
		r.Post("/session/{id}/end", handleEndSession(reg))
	})

	r.Post("/mcp/{session_id}", handleToolCall(reg, cfg))
	r.Get("/mcp/{session_id}/events", func(w http.ResponseWriter, req *http.Request) {
		gw.SSE(w, req, chi.URLParam(req, "session_id"))
	})

	r.Get("/ws/ai-terminal/{session_id}", func(w http.ResponseWriter, req *http.Request) {
		gw.AITerminal(w, req, chi.URLParam(req, "session_id"))
	})
	r.Get("/ws/ssh-terminal/{session_id}", func(w http.ResponseWriter, req *http.Request) {
		gw.SSHTerminal(w, req, chi.URLParam(req, "session_id"))
	})
	r.Get("/ws/commands/{session_id}", func(w http.ResponseWriter, req *http.Request) {
		gw.Approvals(w, req, chi.URLParam(req, "session_id"))
	})

	snapshotRoutes(r, reg)

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Duration("elapsed", time.Since(start)),
				)
			}
		})
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

type jsonEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, apperr.HTTPStatus(kind), jsonEnvelope{Success: false, Error: err.Error(), Kind: string(kind)})
}

type createSessionRequest struct {
	AICLICommand string   `json:"ai_cli_command"`
	AICLIArgs    []string `json:"ai_cli_args"`
}

type createSessionResponse struct {
	Success   bool      `json:"success"`
	SessionID uuid.UUID `json:"session_id"`
	MCPURL    string    `json:"mcp_url"`
}

func handleCreateSession(reg *session.Registry, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createSessionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid JSON body", Kind: string(apperr.InvalidArgument)})
				return
			}
		}

		command := body.AICLICommand
		if command == "" {
			command = cfg.AICLICommand
		}
		args := body.AICLIArgs
		if args == nil {
			args = cfg.AICLIArgs
		}

		sess, err := reg.Create(command, args)
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, createSessionResponse{
			Success:   true,
			SessionID: sess.ID,
			MCPURL:    "/mcp/" + sess.ID.String(),
		})
	}
}

// handleSSHConnect is the distilled routes table's "ssh-connect (POST) →
// Tool Service's ssh_connect logic" entry point, for clients that prefer
// a plain REST call carrying session_id in the body over a JSON-RPC
// envelope. It re-marshals the body as an ssh_connect tool call and
// dispatches it through the same Service the JSON-RPC endpoint uses, so
// the two entry points share one implementation.
func handleSSHConnect(reg *session.Registry, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID uuid.UUID `json:"session_id"`
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid JSON body", Kind: string(apperr.InvalidArgument)})
			return
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid JSON body", Kind: string(apperr.InvalidArgument)})
			return
		}

		sess, ok := reg.Get(body.SessionID)
		if !ok {
			writeAppError(w, apperr.New(apperr.SessionNotFound, "no such session"))
			return
		}

		svc := newToolService(sess, cfg)
		resp := svc.Dispatch(r.Context(), toolservice.Request{
			JSONRPC: toolservice.ProtocolVersion,
			Method:  "ssh_connect",
			Params:  raw,
		})
		if resp.Error != nil {
			kind := rpcCodeToKind(resp.Error.Code)
			writeJSON(w, apperr.HTTPStatus(kind), jsonEnvelope{Success: false, Error: resp.Error.Message, Kind: string(kind)})
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success   bool      `json:"success"`
			SessionID uuid.UUID `json:"session_id"`
		}{Success: true, SessionID: sess.ID})
	}
}

// rpcCodeToKind reverses apperr.RPCCode for the subset of codes the
// ssh_connect path can produce, so the REST wrapper reports the same HTTP
// status the JSON-RPC path would.
func rpcCodeToKind(code int) apperr.Kind {
	switch code {
	case -32602:
		return apperr.InvalidArgument
	case -32002:
		return apperr.AuthFailed
	case -32003:
		return apperr.HostUnreachable
	case -32004:
		return apperr.TransportFailed
	case -32005:
		return apperr.ConnectTimeout
	default:
		return apperr.Internal
	}
}

type inspectSessionResponse struct {
	SessionID        uuid.UUID `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	SSHConnected     bool      `json:"ssh_connected"`
	PendingApprovals int       `json:"pending_approvals"`
}

func handleInspectSession(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid session id", Kind: string(apperr.InvalidArgument)})
			return
		}
		sess, ok := reg.Get(id)
		if !ok {
			writeAppError(w, apperr.New(apperr.SessionNotFound, "no such session"))
			return
		}

		_, connected := sess.SSH()
		writeJSON(w, http.StatusOK, inspectSessionResponse{
			SessionID:        sess.ID,
			CreatedAt:        sess.CreatedAt,
			LastActivityAt:   sess.LastActivity(),
			SSHConnected:     connected,
			PendingApprovals: sess.Approval.PendingCount(),
		})
	}
}

func handleEndSession(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid session id", Kind: string(apperr.InvalidArgument)})
			return
		}
		if err := reg.End(id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jsonEnvelope{Success: true})
	}
}

func handleToolCall(reg *session.Registry, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "session_id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid session id", Kind: string(apperr.InvalidArgument)})
			return
		}
		sess, ok := reg.Get(id)
		if !ok {
			writeAppError(w, apperr.New(apperr.SessionNotFound, "no such session"))
			return
		}

		var req toolservice.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, jsonEnvelope{Success: false, Error: "invalid JSON-RPC request", Kind: string(apperr.InvalidArgument)})
			return
		}

		svc := newToolService(sess, cfg)
		resp := svc.Dispatch(r.Context(), req)
		writeJSON(w, http.StatusOK, resp)
	}
}

func newToolService(sess *session.Session, cfg *config.Config) *toolservice.Service {
	return toolservice.New(sess, func() (ssh.HostKeyCallback, error) {
		return sshshell.HostKeyCallback(cfg)
	})
}
