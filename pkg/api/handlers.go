package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/internal/metrics"
	"github.com/yourusername/lhbot/internal/positionid"
	"github.com/yourusername/lhbot/pkg/archive"
	"github.com/yourusername/lhbot/pkg/engine"
	"github.com/yourusername/lhbot/pkg/policy"
	"github.com/yourusername/lhbot/pkg/session"
)

// Session is the view of the session machine served by the API.
type Session interface {
	ClientID() string
	Snapshot() engine.GameSession
	Ready() <-chan struct{}
	Subscribe() (<-chan session.Event, func())
}

// Deps are the collaborators of the handlers. Any of them may be nil;
// the endpoints that need a missing one answer with an error.
type Deps struct {
	Session Session
	Policy  policy.Policy
	Archive archive.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	deps    Deps
	version string
	pool    *WorkerPool
	log     *zap.Logger
}

// NewHandlers creates the handlers. pool may be nil, in which case policy
// queries are not bounded.
func NewHandlers(deps Deps, version string, pool *WorkerPool) *Handlers {
	return &Handlers{
		deps:    deps,
		version: version,
		pool:    pool,
		log:     logger.OrNop(deps.Logger),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.deps.Session != nil {
		select {
		case <-h.deps.Session.Ready():
			resp.Ready = true
		default:
		}
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	if h.deps.Session == nil {
		writeError(w, http.StatusServiceUnavailable, "no session machine", "NO_SESSION")
		return
	}
	s := h.deps.Session.Snapshot()
	writeJSON(w, http.StatusOK, statusFromSession(h.deps.Session.ClientID(), s))
}

func statusFromSession(clientID string, s engine.GameSession) StatusResponse {
	resp := StatusResponse{
		ClientID:  clientID,
		SessionID: s.SessionID,
		Phase:     s.Phase.String(),
		Role:      s.Self.String(),
		Opponent:  s.Opponent,
		Current:   s.Current.String(),
		Moves:     s.Moves,
		Position:  positionid.PositionID(s),
		Board:     strings.Split(strings.TrimSuffix(s.Board.String(), "\n"), "\n"),
	}
	for _, p := range []engine.Player{engine.PlayerOne, engine.PlayerTwo} {
		inv := s.InventoryOf(p)
		resp.Inventories[p] = InventoryResponse{Light: inv.Light, Heavy: inv.Heavy}
	}
	return resp
}

// Choose handles POST /api/choose
func (h *Handlers) Choose(w http.ResponseWriter, r *http.Request) {
	if h.deps.Policy == nil {
		writeError(w, http.StatusServiceUnavailable, "no policy configured", "NO_POLICY")
		return
	}

	var req ChooseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "INVALID_JSON")
		return
	}

	s, err := sessionFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_POSITION")
		return
	}

	if h.pool != nil {
		if err := h.pool.Acquire(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "server busy", "BUSY")
			return
		}
		defer h.pool.Release()
	}

	obs := engine.Encode(s)
	id, elapsed, err := policy.Choose(r.Context(), h.deps.Policy, obs)
	h.deps.Metrics.ObservePolicy(elapsed)
	if err != nil {
		h.log.Warn("policy query failed", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_ACTION")
		return
	}

	a, _ := engine.DecodeAction(id)
	writeJSON(w, http.StatusOK, ChooseResponse{
		Action:    id,
		Column:    a.Column,
		Type:      a.Class.String(),
		Legal:     engine.LegalActions(s),
		Position:  positionid.PositionID(s),
		ElapsedMs: float64(elapsed) / float64(time.Millisecond),
	})
}

func sessionFromRequest(req ChooseRequest) (engine.GameSession, error) {
	switch {
	case req.Position != "":
		s, err := positionid.SessionFromPositionID(req.Position)
		if err != nil {
			return s, fmt.Errorf("invalid position ID: %w", err)
		}
		return s, nil
	case req.Observation != nil:
		if len(req.Observation) != engine.ObservationSize {
			return engine.GameSession{}, fmt.Errorf("observation has %d values, want %d", len(req.Observation), engine.ObservationSize)
		}
		var obs engine.Observation
		copy(obs[:], req.Observation)
		return engine.Decode(obs)
	}
	return engine.GameSession{}, fmt.Errorf("position or observation is required")
}

// Games handles GET /api/games?limit=N
func (h *Handlers) Games(w http.ResponseWriter, r *http.Request) {
	if h.deps.Archive == nil {
		writeError(w, http.StatusNotFound, "archive not configured", "NO_ARCHIVE")
		return
	}
	limit := parseIntParam(r.URL.Query().Get("limit"), 20)
	games, err := h.deps.Archive.List(r.Context(), limit)
	if err != nil {
		h.log.Error("listing archive", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive unavailable", "ARCHIVE_ERROR")
		return
	}
	if games == nil {
		games = []*archive.Record{}
	}
	writeJSON(w, http.StatusOK, GamesResponse{Games: games})
}

// parseIntParam parses an integer from a string with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	var val int
	if _, err := fmt.Sscanf(s, "%d", &val); err != nil {
		return defaultVal
	}
	return val
}
