package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pokiface/api/internal/artwork"
	"pokiface/api/internal/match/types"
)

func (h *Handle) Artwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "GET only"})
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	writeJSON(w, http.StatusOK, types.ArtworkResponse{
		Name:       name,
		Slug:       artwork.Slug(name),
		ArtworkURL: h.artwork.Resolve(r.Context(), name),
	})
}

// ValidateCredential probes the provider with a caller-supplied key. Nothing is stored.
func (h *Handle) ValidateCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	if h.prober == nil {
		writeJSON(w, http.StatusNotImplemented, types.ValidateCredentialResponse{Error: "credential probe is not configured"})
		return
	}
	var req types.ValidateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ValidateCredentialResponse{Error: "bad json: " + err.Error()})
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, types.ValidateCredentialResponse{Error: "Please enter your Gemini API key"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := h.prober.Probe(ctx, key); err != nil {
		h.logger(r).Info("credential rejected", zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, types.ValidateCredentialResponse{
			Error: "Invalid API key. Please check and try again.",
		})
		return
	}
	writeJSON(w, http.StatusOK, types.ValidateCredentialResponse{Valid: true})
}

func (h *Handle) Matches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "GET only"})
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "match history is not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger(r).Error("recent matches", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
