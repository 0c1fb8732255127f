package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pokiface/api/internal/match/types"
	"pokiface/api/internal/upload"
)

const msgMissingFields = "Please pass an image and mimeType in the request body"

// GetPokemonTwin is the proxy function: image in, match out, provider key stays server-side.
func (h *Handle) GetPokemonTwin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	log := h.logger(r)

	var req types.TwinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*upload.MaxSize)).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, upload.Message(upload.ErrTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, msgMissingFields, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Image) == "" || strings.TrimSpace(req.MimeType) == "" {
		http.Error(w, msgMissingFields, http.StatusBadRequest)
		return
	}

	f, err := upload.Decode(req.Image, req.MimeType)
	if err != nil {
		http.Error(w, "bad image: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := upload.Accept(f); err != nil {
		http.Error(w, upload.Message(err), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	m, err := h.matcher.Match(ctx, "", f.Data, f.MIMEType)
	if err != nil {
		log.Error("match failed", zap.Error(err))
		http.Error(w, "Error calling AI service: "+err.Error(), http.StatusInternalServerError)
		return
	}
	log.Info("match", zap.String("pokemon", m.CreatureName), zap.Bool("fallback", m.Fallback))
	writeJSON(w, http.StatusOK, m)
}
