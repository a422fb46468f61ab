// Package api serves the bot's HTTP status interface: health, session
// status, a live event stream, one-shot policy queries, archived games
// and Prometheus metrics.
package api

import "github.com/yourusername/lhbot/pkg/archive"

// ============================================================================
// Request Types
// ============================================================================

// ChooseRequest is the request body for a policy query. Exactly one of
// Position and Observation is used; Position wins when both are set.
type ChooseRequest struct {
	Position    string    `json:"position,omitempty"`    // Position ID
	Observation []float32 `json:"observation,omitempty"` // Encoded observation
}

// ============================================================================
// Response Types
// ============================================================================

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	Ready   bool       `json:"ready"` // session machine subscribed
	Pool    *PoolStats `json:"pool,omitempty"`
}

// InventoryResponse is the remaining pieces of one player.
type InventoryResponse struct {
	Light int `json:"light"`
	Heavy int `json:"heavy"`
}

// StatusResponse is the response for GET /api/status.
type StatusResponse struct {
	ClientID    string               `json:"clientId"`
	SessionID   string               `json:"sessionId,omitempty"`
	Phase       string               `json:"phase"`
	Role        string               `json:"role"`
	Opponent    string               `json:"opponent,omitempty"`
	Current     string               `json:"current"`
	Moves       int                  `json:"moves"`
	Position    string               `json:"position"`
	Inventories [2]InventoryResponse `json:"inventories"` // [one, two]
	Board       []string             `json:"board"`       // top row first
}

// ChooseResponse is the response for POST /api/choose.
type ChooseResponse struct {
	Action    int     `json:"action"`
	Column    int     `json:"col"`
	Type      string  `json:"type"`
	Legal     []int   `json:"legal"`
	Position  string  `json:"position"`
	ElapsedMs float64 `json:"elapsed_ms"`
}

// GamesResponse is the response for GET /api/games.
type GamesResponse struct {
	Games []*archive.Record `json:"games"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
