package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/onnwee/guild-tally/backend/commands"
	"github.com/onnwee/guild-tally/backend/crypto"
	"github.com/onnwee/guild-tally/backend/discordapi"
	"github.com/onnwee/guild-tally/backend/store"
	"github.com/onnwee/guild-tally/backend/telemetry"
)

// maxInteractionBody caps webhook payload reads; Discord interactions are
// well under this.
const maxInteractionBody = 1 << 20

// Handlers holds the dependencies shared across HTTP handlers.
type Handlers struct {
	store    *store.Store
	cmds     *commands.Handler
	verifier crypto.Verifier
	started  time.Time
}

func NewHandlers(s *store.Store, cmds *commands.Handler, verifier crypto.Verifier) *Handlers {
	return &Handlers{store: s, cmds: cmds, verifier: verifier, started: time.Now()}
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus reports what the bot currently manages.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	guilds, counters := h.store.Counts()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"guilds":         guilds,
		"counters":       counters,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// HandleInteractions is the Discord interactions webhook. Every request is
// signature-checked before parsing; Discord probes the endpoint with both
// valid pings and deliberately invalid signatures, and expects a 401 for
// the latter.
func (h *Handlers) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInteractionBody))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	timestamp := r.Header.Get("X-Signature-Timestamp")
	signature := r.Header.Get("X-Signature-Ed25519")
	if h.verifier == nil || !h.verifier.Verify(timestamp, body, signature) {
		telemetry.LoggerWithCorr(r.Context()).Warn("interaction signature rejected",
			slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var in discordapi.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	resp := h.cmds.Handle(r.Context(), &in)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("interaction response write failed", slog.Any("err", err))
	}
}
