// Package gateway exposes the sweeper's HTTP surface: a manual sweep
// trigger, an authenticated admin payout trigger, a read-only reverse
// proxy onto the external result service, and a health endpoint.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/internal/settlement"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/sweep"
)

// Handler wires the HTTP surface to the sweeper and settler.
type Handler struct {
	sweeper    *sweep.Sweeper
	settler    *settlement.Settler
	adminToken string
	proxy      *ResultsProxy
}

func NewHandler(sw *sweep.Sweeper, set *settlement.Settler, adminToken string, proxy *ResultsProxy) *Handler {
	return &Handler{sweeper: sw, settler: set, adminToken: adminToken, proxy: proxy}
}

// Router builds the full mux with CORS applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sweep", h.HandleSweep)
	mux.HandleFunc("/api/admin/payout", h.HandleAdminPayout)
	if h.proxy != nil {
		mux.HandleFunc("/api/results/", h.proxy.Handle)
	}
	mux.HandleFunc("/health", h.HandleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}

// HandleSweep runs one sweep pass immediately and reports what it did.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.sweeper.RunSweep(r.Context())
	writeJSON(w, http.StatusOK, report)
}

type payoutRequest struct {
	DraftID string `json:"draft_id"`
}

type payoutResponse struct {
	DraftID string             `json:"draft_id"`
	Applied bool               `json:"applied"`
	Winner  string             `json:"winner,omitempty"`
	Amount  float64            `json:"amount,omitempty"`
	Refunds map[string]float64 `json:"refunds,omitempty"`
}

// HandleAdminPayout settles one draft on demand. Requires the configured
// admin bearer token; every failure path leaves the draft untouched.
func (h *Handler) HandleAdminPayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if h.adminToken == "" || token != h.adminToken {
		writeError(w, http.StatusForbidden, "not authorized for payouts")
		return
	}

	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.DraftID) == "" {
		writeError(w, http.StatusBadRequest, "draft_id is required")
		return
	}

	out, err := h.settler.SettleDraft(r.Context(), req.DraftID, settlement.MethodManual)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "draft not found")
		return
	case errors.Is(err, settlement.ErrWinnerNotRecorded):
		writeError(w, http.StatusPreconditionFailed, "overall winner not recorded")
		return
	case err != nil:
		log.Error().Err(err).Str("draft_id", req.DraftID).Msg("manual payout failed")
		writeError(w, http.StatusInternalServerError, "settlement failed")
		return
	}

	writeJSON(w, http.StatusOK, payoutResponse{
		DraftID: req.DraftID,
		Applied: out.Applied,
		Winner:  out.Winner,
		Amount:  out.Amount,
		Refunds: out.Refunds,
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
